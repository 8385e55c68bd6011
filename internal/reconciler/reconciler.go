package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

// Each market contributes two progress units: identity and detail.
const unitsPerMarket = 2

// Config contiene la configuración del reconciler.
type Config struct {
	Network       domain.NetworkConfig
	Protocol      domain.Protocol
	Interval      time.Duration
	PublicBatch   BatchPolicy
	KeyedBatch    BatchPolicy
	Retry         RetryPolicy
	ProgressReset time.Duration
	// Once makes Run return after the first pass.
	Once       bool
	OnProgress func(ports.Progress)
	Now        func() time.Time
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig(network domain.NetworkConfig) Config {
	return Config{
		Network:       network,
		Protocol:      domain.DefaultProtocol(),
		Interval:      time.Minute,
		PublicBatch:   PublicBatch,
		KeyedBatch:    KeyedBatch,
		Retry:         DefaultRetryPolicy(),
		ProgressReset: 3 * time.Second,
	}
}

// Deps are the collaborators of a Reconciler. History, Participants and
// Notifier are optional.
type Deps struct {
	Ledger       ports.LedgerReader
	History      ports.ParticipantHistory
	Cache        ports.CacheStore
	Participants ports.ParticipantStore
	Notifier     ports.Notifier
}

// Result summarizes one reconciliation pass.
type Result struct {
	PassID     string
	Discovered int
	Markets    []domain.Market
	Failed     int
	// Stale lists cached markets this pass could not refresh.
	Stale    []int64
	Duration time.Duration
}

// Reconciler refreshes the local cache of one network from the ledger.
// A new pass cancels the one in flight; results of a superseded pass are
// discarded.
type Reconciler struct {
	cfg      Config
	deps     Deps
	batch    BatchPolicy
	progress *progressTracker

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// New crea un Reconciler con todas las dependencias inyectadas.
func New(cfg Config, deps Deps) *Reconciler {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{
		cfg:      cfg,
		deps:     deps,
		batch:    SelectBatchPolicy(cfg.Network, cfg.PublicBatch, cfg.KeyedBatch),
		progress: newProgressTracker(cfg.ProgressReset, cfg.OnProgress),
	}
}

// Progress returns the current (loaded, total, message) of the running pass,
// or the idle value.
func (r *Reconciler) Progress() ports.Progress {
	return r.progress.snapshot()
}

// BatchPolicy returns the policy selected for the configured network.
func (r *Reconciler) BatchPolicy() BatchPolicy {
	return r.batch
}

// Run ejecuta pases de reconciliación hasta que el contexto se cancele.
// Si cfg.Once está activo, solo ejecuta un pase.
func (r *Reconciler) Run(ctx context.Context) error {
	slog.Info("reconciler starting",
		"network", r.cfg.Network.Network,
		"interval", r.cfg.Interval,
		"batch_size", r.batch.Size,
		"batch_delay", r.batch.Delay,
		"once", r.cfg.Once,
	)
	defer r.progress.stop()

	if err := r.runCycle(ctx); err != nil {
		slog.Error("reconciliation pass failed", "err", err)
		if r.cfg.Once {
			return err
		}
	}
	if r.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if err := r.runCycle(ctx); err != nil {
				slog.Error("reconciliation pass failed", "err", err)
			}
		}
	}
}

// runCycle ejecuta un pase y notifica el estado de la cache.
func (r *Reconciler) runCycle(ctx context.Context) error {
	if _, err := r.RunOnce(ctx); err != nil {
		if errors.Is(err, domain.ErrSuperseded) {
			slog.Debug("pass superseded")
			return nil
		}
		return err
	}
	if r.deps.Notifier == nil {
		return nil
	}
	rows, err := r.deps.Cache.Query(ctx, r.cfg.Network.Network, domain.CacheFilter{})
	if err != nil {
		return fmt.Errorf("reconciler.runCycle: query cache: %w", err)
	}
	if err := r.deps.Notifier.Notify(ctx, rows); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	return nil
}

// RunOnce runs a full pass: discovery, identity fetch, detail fetch and cache
// upsert. Per-market failures only drop that market. A discovery failure
// returns an error and leaves the cache untouched. If another pass starts
// meanwhile, RunOnce returns domain.ErrSuperseded and writes nothing.
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	passStart := r.cfg.Now()
	passCtx, gen := r.beginPass(ctx)
	defer r.endPass(gen)

	res := Result{PassID: uuid.NewString()}
	log := slog.With("network", r.cfg.Network.Network, "pass", res.PassID)
	log.Info("reconciliation pass starting")
	r.progress.start(gen, "discovering markets")

	count, err := Do(passCtx, r.cfg.Retry, "market count", r.deps.Ledger.MarketCount)
	if err != nil {
		return res, r.passError(ctx, gen, fmt.Errorf("reconciler.RunOnce: discover: %w", err))
	}
	res.Discovered = int(count)
	r.progress.setTotal(gen, res.Discovered*unitsPerMarket, fmt.Sprintf("found %d markets", count))

	identities, err := r.fetchIdentities(passCtx, gen, count)
	if err != nil {
		return res, r.passError(ctx, gen, fmt.Errorf("reconciler.RunOnce: identities: %w", err))
	}

	fetched, err := r.fetchDetails(passCtx, gen, identities)
	if err != nil {
		return res, r.passError(ctx, gen, fmt.Errorf("reconciler.RunOnce: details: %w", err))
	}

	if !r.current(gen) {
		return res, domain.ErrSuperseded
	}

	for _, f := range fetched {
		if f == nil {
			res.Failed++
			continue
		}
		if err := r.store(ctx, res.PassID, f); err != nil {
			log.Warn("cache write failed", "market_id", f.market.ID, "err", err)
			res.Failed++
			continue
		}
		res.Markets = append(res.Markets, f.market)
	}

	stale, err := r.deps.Cache.Stale(ctx, r.cfg.Network.Network, passStart)
	if err != nil {
		log.Warn("stale lookup failed", "err", err)
	} else if len(stale) > 0 {
		res.Stale = stale
		log.Info("cached markets not refreshed this pass", "count", len(stale), "ids", stale)
	}

	res.Duration = time.Since(start)
	r.progress.finish(gen, fmt.Sprintf("loaded %d of %d markets", len(res.Markets), res.Discovered))
	log.Info("reconciliation pass complete",
		"discovered", res.Discovered,
		"loaded", len(res.Markets),
		"failed", res.Failed,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// indexedIdentity pairs a factory index with its identity record.
type indexedIdentity struct {
	index    int64
	identity domain.MarketIdentity
}

func (r *Reconciler) fetchIdentities(ctx context.Context, gen uint64, count int64) ([]*indexedIdentity, error) {
	indices := make([]int64, count)
	for i := range indices {
		indices[i] = int64(i)
	}

	out := make([]*indexedIdentity, count)
	err := runBatched(ctx, r.batch, indices, func(ctx context.Context, i int, index int64) error {
		id, err := Do(ctx, r.cfg.Retry, "market identity", func(ctx context.Context) (domain.MarketIdentity, error) {
			return r.deps.Ledger.MarketIdentity(ctx, index)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Log(ctx, softFailureLevel(err), "market identity unavailable", "index", index, "err", err)
			r.progress.advance(gen, unitsPerMarket, "")
			return nil
		}
		out[i] = &indexedIdentity{index: index, identity: id}
		r.progress.advance(gen, 1, "fetching markets")
		return nil
	})
	return out, err
}

// fetchedMarket is the outcome of one successful detail fetch.
type fetchedMarket struct {
	market       domain.Market
	participants []domain.Participant
	fetchedAt    time.Time
}

func (r *Reconciler) fetchDetails(ctx context.Context, gen uint64, identities []*indexedIdentity) ([]*fetchedMarket, error) {
	found := make([]*indexedIdentity, 0, len(identities))
	for _, id := range identities {
		if id != nil {
			found = append(found, id)
		}
	}

	out := make([]*fetchedMarket, len(found))
	err := runBatched(ctx, r.batch, found, func(ctx context.Context, i int, id *indexedIdentity) error {
		f, err := r.fetchMarket(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Log(ctx, softFailureLevel(err), "market detail unavailable",
				"market_id", id.index, "address", id.identity.Address, "err", err)
		} else {
			out[i] = f
		}
		r.progress.advance(gen, 1, "fetching details")
		return nil
	})
	if err != nil {
		return nil, err
	}

	// markets whose identity failed count as failed too
	for i := 0; i < len(identities)-len(found); i++ {
		out = append(out, nil)
	}
	return out, nil
}

// fetchMarket reads lifecycle and question, then the extra records the
// market's status calls for, and shapes them into a Market.
func (r *Reconciler) fetchMarket(ctx context.Context, id *indexedIdentity) (*fetchedMarket, error) {
	fetchedAt := r.cfg.Now()
	addr := id.identity.Address
	retry := r.cfg.Retry

	lifecycle, err := Do(ctx, retry, "lifecycle state", func(ctx context.Context) (domain.LifecycleState, error) {
		return r.deps.Ledger.LifecycleState(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	question, err := Do(ctx, retry, "question text", func(ctx context.Context) (domain.QuestionText, error) {
		return r.deps.Ledger.QuestionText(ctx, addr)
	})
	if err != nil {
		return nil, err
	}

	status, ok := domain.StatusFromLedger(lifecycle.State)
	if !ok {
		return nil, fmt.Errorf("unknown state code %d: %w", lifecycle.State, domain.ErrMalformedReply)
	}

	detail := domain.MarketDetail{Identity: id.identity, Lifecycle: lifecycle, Question: question}
	var participants []domain.Participant

	switch status {
	case domain.StatusProposed, domain.StatusChallenged:
		p, err := Do(ctx, retry, "current proposal", func(ctx context.Context) (domain.Proposal, error) {
			return r.deps.Ledger.CurrentProposal(ctx, addr)
		})
		if err != nil {
			return nil, err
		}
		detail.Proposal = &p
	case domain.StatusVoting, domain.StatusResolved:
		// The veto guard carries the answer once the dispute left the
		// challenge ladder; the proposal record may already be cleared.
		if detail.Proposal, err = optional(ctx, retry, "current proposal", addr, r.deps.Ledger.CurrentProposal); err != nil {
			return nil, err
		}
	}

	if status == domain.StatusVoting || status == domain.StatusResolved {
		guard, err := Do(ctx, retry, "veto guard", func(ctx context.Context) (string, error) {
			return r.deps.Ledger.VetoGuardRef(ctx, r.cfg.Network.VetoMasterAddress, addr)
		})
		if err != nil {
			return nil, err
		}
		if guard == "" && status == domain.StatusVoting {
			return nil, fmt.Errorf("voting market without veto guard: %w", domain.ErrNotAvailable)
		}
		if guard != "" {
			detail.VetoGuard = guard
			v, err := Do(ctx, retry, "veto status", func(ctx context.Context) (domain.VetoStatus, error) {
				return r.deps.Ledger.VetoStatus(ctx, guard)
			})
			if err != nil {
				return nil, err
			}
			detail.Veto = &v
		}
	}

	if status == domain.StatusResolved {
		if detail.CreatorRebate, err = optional(ctx, retry, "creator rebate", addr, r.deps.Ledger.CreatorRebate); err != nil {
			return nil, err
		}
		if detail.ResolverReward, err = optional(ctx, retry, "resolver reward", addr, r.deps.Ledger.ResolverReward); err != nil {
			return nil, err
		}
		if r.deps.History != nil {
			ps, err := Do(ctx, retry, "participants", func(ctx context.Context) ([]domain.Participant, error) {
				return r.deps.History.Participants(ctx, addr)
			})
			if err != nil && !errors.Is(err, domain.ErrNotAvailable) {
				return nil, err
			}
			participants = ps
		}
	}

	m, err := domain.BuildMarket(r.cfg.Network.Network, id.index, detail, r.cfg.Protocol)
	if err != nil {
		return nil, err
	}
	return &fetchedMarket{market: m, participants: participants, fetchedAt: fetchedAt}, nil
}

// optional reads a record that may legitimately not exist yet; ErrNotAvailable
// yields nil instead of dropping the market.
func optional[T any](ctx context.Context, retry RetryPolicy, op, addr string, fn func(context.Context, string) (T, error)) (*T, error) {
	v, err := Do(ctx, retry, op, func(ctx context.Context) (T, error) {
		return fn(ctx, addr)
	})
	if errors.Is(err, domain.ErrNotAvailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Reconciler) store(ctx context.Context, passID string, f *fetchedMarket) error {
	row := domain.CacheRow{
		Market:    f.market,
		Source:    domain.SourceLedger,
		WriteID:   passID,
		CachedAt:  r.cfg.Now(),
		UpdatedAt: f.fetchedAt,
	}
	if err := r.deps.Cache.Upsert(ctx, row); err != nil {
		return err
	}
	if r.deps.Participants != nil && len(f.participants) > 0 {
		if err := r.deps.Participants.SaveParticipants(ctx, f.market.Network, f.participants); err != nil {
			return err
		}
	}
	return nil
}

// beginPass cancels the in-flight pass, if any, and registers a new one.
func (r *Reconciler) beginPass(ctx context.Context) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		slog.Debug("superseding in-flight pass", "network", r.cfg.Network.Network)
		r.cancel()
	}
	passCtx, cancel := context.WithCancel(ctx)
	r.gen++
	r.cancel = cancel
	return passCtx, r.gen
}

func (r *Reconciler) endPass(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen == gen && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Reconciler) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}

// passError maps a cancelled pass onto ErrSuperseded when a newer pass
// caused the cancellation. Otherwise the pass ends with err.
func (r *Reconciler) passError(parent context.Context, gen uint64, err error) error {
	if parent.Err() == nil && !r.current(gen) {
		return domain.ErrSuperseded
	}
	r.progress.finish(gen, "pass failed")
	return err
}

// softFailureLevel logs exhausted retries louder than records that simply
// are not there yet.
func softFailureLevel(err error) slog.Level {
	if domain.IsRetryable(err) {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
