package reconciler

import (
	"sync"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/ports"
)

// progressTracker holds the (loaded, total, message) triple of the current
// pass. Updates from a superseded pass are ignored; loaded never decreases
// within a pass and is clamped to total.
//
// onChange runs under the tracker lock so subscribers observe updates in
// order; it must not call back into the tracker.
type progressTracker struct {
	mu         sync.Mutex
	cur        ports.Progress
	gen        uint64
	resetDelay time.Duration
	reset      *time.Timer
	onChange   func(ports.Progress)
}

func newProgressTracker(resetDelay time.Duration, onChange func(ports.Progress)) *progressTracker {
	return &progressTracker{resetDelay: resetDelay, onChange: onChange}
}

func (t *progressTracker) snapshot() ports.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

func (t *progressTracker) start(gen uint64, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopReset()
	t.gen = gen
	t.set(ports.Progress{Message: msg, Active: true})
}

func (t *progressTracker) setTotal(gen uint64, total int, msg string) {
	t.update(gen, func(p *ports.Progress) {
		if total > p.Total {
			p.Total = total
		}
		p.Message = msg
	})
}

func (t *progressTracker) advance(gen uint64, n int, msg string) {
	t.update(gen, func(p *ports.Progress) {
		p.Loaded = min(p.Loaded+n, p.Total)
		if msg != "" {
			p.Message = msg
		}
	})
}

// finish completes the pass and schedules the reset to idle.
func (t *progressTracker) finish(gen uint64, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || !t.cur.Active {
		return
	}
	done := t.cur
	done.Loaded = done.Total
	done.Message = msg
	t.set(done)

	if t.resetDelay <= 0 {
		t.set(ports.Progress{})
		return
	}
	t.reset = time.AfterFunc(t.resetDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen != gen {
			return
		}
		t.reset = nil
		t.set(ports.Progress{})
	})
}

func (t *progressTracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopReset()
}

func (t *progressTracker) update(gen uint64, fn func(p *ports.Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || !t.cur.Active {
		return
	}
	next := t.cur
	fn(&next)
	t.set(next)
}

// set and stopReset expect t.mu held.
func (t *progressTracker) set(p ports.Progress) {
	t.cur = p
	if t.onChange != nil {
		t.onChange(p)
	}
}

func (t *progressTracker) stopReset() {
	if t.reset != nil {
		t.reset.Stop()
		t.reset = nil
	}
}
