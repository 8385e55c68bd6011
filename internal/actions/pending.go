package actions

import (
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// PendingTTL is how long a submitted settle, finalize or claim blocks a repeat
// of the same operation on the same market. It should cover the time the
// ledger takes to include the transaction and the next reconciliation pass.
const PendingTTL = 2 * time.Minute

type pendingKey struct {
	op     string
	market string
}

// pending remembers submissions that leave no optimistic row behind, so a
// double click does not send the same transaction twice.
type pending struct {
	mu    sync.Mutex
	until map[pendingKey]time.Time
}

func newPending() *pending {
	return &pending{until: make(map[pendingKey]time.Time)}
}

func (p *pending) check(op, market string, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := pendingKey{op, market}
	until, ok := p.until[k]
	if !ok {
		return nil
	}
	if !now.Before(until) {
		delete(p.until, k)
		return nil
	}
	return &domain.StateViolation{
		Op:     op,
		Reason: fmt.Sprintf("%s already submitted, waiting for the ledger (%s left)", op, until.Sub(now).Round(time.Second)),
	}
}

func (p *pending) mark(op, market string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.until[pendingKey{op, market}] = now.Add(PendingTTL)
}
