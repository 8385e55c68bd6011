package reconciler_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

var t0 = time.Unix(1_700_000_000, 0).UTC()

// fakeMarket is everything the fake ledger knows about one market.
type fakeMarket struct {
	identity     domain.MarketIdentity
	lifecycle    domain.LifecycleState
	question     domain.QuestionText
	proposal     *domain.Proposal
	guard        string
	veto         *domain.VetoStatus
	rebate       *domain.Payout
	reward       *domain.Payout
	participants []domain.Participant
}

// fakeLedger implements ports.LedgerReader and ports.ParticipantHistory.
// fail maps "method:address" (or "identity:<index>") to an error returned
// for the first n calls; n < 0 fails forever.
type fakeLedger struct {
	markets  []fakeMarket
	countErr error

	mu       sync.Mutex
	failures map[string]*failure
	calls    map[string]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	// block, when set, makes MarketCount wait until it is closed or ctx ends.
	block chan struct{}
}

type failure struct {
	err error
	n   int
}

func newFakeLedger(markets ...fakeMarket) *fakeLedger {
	return &fakeLedger{
		markets:  markets,
		failures: make(map[string]*failure),
		calls:    make(map[string]int),
	}
}

func (f *fakeLedger) failN(key string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = &failure{err: err, n: n}
}

func (f *fakeLedger) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeLedger) enter(ctx context.Context, key string) error {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	defer f.inFlight.Add(-1)
	time.Sleep(time.Millisecond)

	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if fl, ok := f.failures[key]; ok && fl.n != 0 {
		if fl.n > 0 {
			fl.n--
		}
		return fl.err
	}
	return nil
}

func (f *fakeLedger) byAddress(addr string) (fakeMarket, error) {
	for _, m := range f.markets {
		if m.identity.Address == addr {
			return m, nil
		}
	}
	return fakeMarket{}, fmt.Errorf("%s: %w", addr, domain.ErrNotAvailable)
}

func (f *fakeLedger) MarketCount(ctx context.Context) (int64, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := f.enter(ctx, "count"); err != nil {
		return 0, err
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.markets)), nil
}

func (f *fakeLedger) MarketIdentity(ctx context.Context, index int64) (domain.MarketIdentity, error) {
	if err := f.enter(ctx, fmt.Sprintf("identity:%d", index)); err != nil {
		return domain.MarketIdentity{}, err
	}
	return f.markets[index].identity, nil
}

func (f *fakeLedger) LifecycleState(ctx context.Context, address string) (domain.LifecycleState, error) {
	if err := f.enter(ctx, "lifecycle:"+address); err != nil {
		return domain.LifecycleState{}, err
	}
	m, err := f.byAddress(address)
	return m.lifecycle, err
}

func (f *fakeLedger) QuestionText(ctx context.Context, address string) (domain.QuestionText, error) {
	if err := f.enter(ctx, "question:"+address); err != nil {
		return domain.QuestionText{}, err
	}
	m, err := f.byAddress(address)
	return m.question, err
}

func (f *fakeLedger) CurrentProposal(ctx context.Context, address string) (domain.Proposal, error) {
	if err := f.enter(ctx, "proposal:"+address); err != nil {
		return domain.Proposal{}, err
	}
	m, err := f.byAddress(address)
	if err != nil {
		return domain.Proposal{}, err
	}
	if m.proposal == nil {
		return domain.Proposal{}, domain.ErrNotAvailable
	}
	return *m.proposal, nil
}

func (f *fakeLedger) VetoGuardRef(ctx context.Context, master, address string) (string, error) {
	if err := f.enter(ctx, "guard:"+address); err != nil {
		return "", err
	}
	m, err := f.byAddress(address)
	return m.guard, err
}

func (f *fakeLedger) VetoStatus(ctx context.Context, guard string) (domain.VetoStatus, error) {
	if err := f.enter(ctx, "veto:"+guard); err != nil {
		return domain.VetoStatus{}, err
	}
	for _, m := range f.markets {
		if m.guard == guard && m.veto != nil {
			return *m.veto, nil
		}
	}
	return domain.VetoStatus{}, domain.ErrNotAvailable
}

func (f *fakeLedger) CreatorRebate(ctx context.Context, address string) (domain.Payout, error) {
	if err := f.enter(ctx, "rebate:"+address); err != nil {
		return domain.Payout{}, err
	}
	m, err := f.byAddress(address)
	if err != nil || m.rebate == nil {
		return domain.Payout{}, domain.ErrNotAvailable
	}
	return *m.rebate, nil
}

func (f *fakeLedger) ResolverReward(ctx context.Context, address string) (domain.Payout, error) {
	if err := f.enter(ctx, "reward:"+address); err != nil {
		return domain.Payout{}, err
	}
	m, err := f.byAddress(address)
	if err != nil || m.reward == nil {
		return domain.Payout{}, domain.ErrNotAvailable
	}
	return *m.reward, nil
}

func (f *fakeLedger) Participants(ctx context.Context, address string) ([]domain.Participant, error) {
	if err := f.enter(ctx, "participants:"+address); err != nil {
		return nil, err
	}
	m, err := f.byAddress(address)
	return m.participants, err
}

// --- market builders ---

func openFake(i int) fakeMarket {
	addr := fmt.Sprintf("EQm%d", i)
	return fakeMarket{
		identity:  domain.MarketIdentity{Address: addr, CreatedAt: t0.Add(-48 * time.Hour), Creator: "EQcreator"},
		lifecycle: domain.LifecycleState{State: domain.LedgerStateOpen, ResolutionDeadline: t0.Add(24 * time.Hour)},
		question:  domain.QuestionText{Question: fmt.Sprintf("Will BTC close above %dk?", 100+i)},
	}
}

func challengedFake(i int) fakeMarket {
	m := openFake(i)
	m.lifecycle = domain.LifecycleState{State: domain.LedgerStateChallenged, EscalationCount: 1, TotalBonds: 30_000, ResolutionDeadline: t0.Add(-2 * time.Hour)}
	m.proposal = &domain.Proposal{Answer: false, Bond: 20_000, ProposedAt: t0, ChallengeDeadline: t0.Add(4 * time.Hour)}
	return m
}

func votingFake(i int) fakeMarket {
	m := challengedFake(i)
	m.lifecycle.State = domain.LedgerStateVoting
	m.lifecycle.EscalationCount = 3
	m.guard = fmt.Sprintf("EQguard%d", i)
	m.veto = &domain.VetoStatus{VetoEnd: t0.Add(48 * time.Hour), CurrentAnswer: false, VetoCount: 4, SupportCount: 1}
	return m
}

func resolvedFake(i int) fakeMarket {
	m := challengedFake(i)
	m.lifecycle.State = domain.LedgerStateResolved
	m.rebate = &domain.Payout{Account: "EQcreator", Amount: 25_000}
	m.reward = &domain.Payout{Account: "EQsettler", Amount: 5_000, Claimed: true}
	m.participants = []domain.Participant{
		{MarketAddress: m.identity.Address, ParticipantAddress: "EQa", Action: domain.ActionPropose, Answer: true, BondAmount: 10_000, Timestamp: t0.Add(-time.Hour)},
		{MarketAddress: m.identity.Address, ParticipantAddress: "EQb", Action: domain.ActionChallenge, Answer: false, BondAmount: 20_000, EscalationLevel: 1, Timestamp: t0},
	}
	return m
}
