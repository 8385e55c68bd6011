package actions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oraclesync/internal/actions"
	"github.com/alejandrodnm/oraclesync/internal/adapters/storage"
	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

type harness struct {
	svc     *actions.Service
	store   *storage.MemoryStore
	sender  *fakeSender
	staking *fakeStaking
	clock   time.Time
}

func newHarness(t *testing.T, markets ...domain.Market) *harness {
	t.Helper()
	h := &harness{clock: t0}
	now := func() time.Time { return h.clock }
	store := storage.NewMemoryStore(storage.Options{Now: now})
	for _, m := range markets {
		require.NoError(t, store.Upsert(context.Background(), domain.CacheRow{
			Market:    m,
			Source:    domain.SourceLedger,
			CachedAt:  t0.Add(-time.Minute),
			UpdatedAt: t0.Add(-time.Minute),
		}))
	}

	p := domain.DefaultProtocol()
	h.store = store
	h.sender = &fakeSender{}
	h.staking = &fakeStaking{
		supply: 1_000_000,
		stakes: map[string]domain.Stake{
			"EQstaker": {Amount: 50_000, LockedAt: t0.Add(-48 * time.Hour)},
			"EQfresh":  {Amount: 50_000, LockedAt: t0.Add(-time.Hour)},
		},
	}
	h.svc = actions.New(domain.NetworkTestnet, p, actions.Deps{
		Sender:       h.sender,
		Staking:      h.staking,
		Cache:        store,
		Participants: store,
		Votes:        store,
	}, now)
	return h
}

func (h *harness) cached(t *testing.T, id int64) domain.CacheRow {
	t.Helper()
	row, err := h.store.Get(context.Background(), domain.NetworkTestnet, id)
	require.NoError(t, err)
	return row
}

func TestPropose_SubmitsAndWritesOptimistic(t *testing.T) {
	h := newHarness(t, openMarket(1))

	next, err := h.svc.Propose(context.Background(), "EQalice", 1, true, 10_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProposed, next.Status)
	assert.Equal(t, []string{"propose:EQm1/YES/10000"}, h.sender.submitted())

	row := h.cached(t, 1)
	assert.Equal(t, domain.SourceOptimistic, row.Source)
	assert.Equal(t, domain.StatusProposed, row.Market.Status)
	assert.NotEmpty(t, row.WriteID)
}

func TestPropose_ViolationNeverSubmits(t *testing.T) {
	h := newHarness(t, openMarket(1), proposedMarket(2, 0))

	_, err := h.svc.Propose(context.Background(), "EQalice", 1, true, 9_999)
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	_, err = h.svc.Propose(context.Background(), "EQalice", 2, true, 10_000)
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	assert.Empty(t, h.sender.submitted())
	assert.Equal(t, domain.SourceLedger, h.cached(t, 1).Source)
}

func TestPropose_UnknownMarket(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Propose(context.Background(), "EQalice", 42, true, 10_000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPropose_SenderErrorSurfacesUnchanged(t *testing.T) {
	h := newHarness(t, openMarket(1))
	rejected := errors.New("wallet rejected the request")
	h.sender.err = rejected

	_, err := h.svc.Propose(context.Background(), "EQalice", 1, true, 10_000)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, domain.StatusOpen, h.cached(t, 1).Market.Status, "no optimistic write on failure")
}

func TestPropose_ReadOnly(t *testing.T) {
	store := storage.NewMemoryStore(storage.Options{Now: func() time.Time { return t0 }})
	require.NoError(t, store.Upsert(context.Background(), domain.CacheRow{Market: openMarket(1), UpdatedAt: t0.Add(-time.Minute)}))
	svc := actions.New(domain.NetworkTestnet, domain.DefaultProtocol(), actions.Deps{Cache: store}, func() time.Time { return t0 })

	_, err := svc.Propose(context.Background(), "EQalice", 1, true, 10_000)
	assert.ErrorIs(t, err, actions.ErrReadOnly)
}

func TestChallenge_EscalatesAndHandsToVote(t *testing.T) {
	h := newHarness(t, proposedMarket(1, 0), proposedMarket(2, 3))

	next, err := h.svc.Challenge(context.Background(), "EQbob", 1, false, 20_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusChallenged, next.Status)
	assert.Equal(t, 1, next.EscalationCount)

	next, err = h.svc.Challenge(context.Background(), "EQbob", 2, false, 160_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoting, next.Status)
	assert.Equal(t, domain.StatusVoting, h.cached(t, 2).Market.Status)

	_, err = h.svc.Challenge(context.Background(), "EQbob", 1, false, 20_000)
	assert.ErrorIs(t, err, domain.ErrStateViolation, "same answer as the optimistic proposal")
	assert.Len(t, h.sender.submitted(), 2)
}

func TestSettle(t *testing.T) {
	m := proposedMarket(1, 0)
	m.ChallengeDeadline = timePtr(t0.Add(-time.Minute))
	h := newHarness(t, m, proposedMarket(2, 0))

	require.NoError(t, h.svc.Settle(context.Background(), "EQanyone", 1))
	assert.Equal(t, domain.SourceLedger, h.cached(t, 1).Source, "resolution is left to the ledger")

	assert.ErrorIs(t, h.svc.Settle(context.Background(), "EQanyone", 2), domain.ErrStateViolation)
	assert.Equal(t, []string{"settle:EQm1"}, h.sender.submitted())
}

func TestVote_MarksAndRejectsSecondVote(t *testing.T) {
	h := newHarness(t, votingMarket(1))
	ctx := context.Background()

	next, err := h.svc.CastVeto(ctx, "EQstaker", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.Veto.VetoCount)
	assert.Equal(t, int64(1), h.cached(t, 1).Market.Veto.VetoCount)

	voted, err := h.store.HasVoted(ctx, domain.NetworkTestnet, "EQm1", "EQstaker")
	require.NoError(t, err)
	assert.True(t, voted)

	_, err = h.svc.CounterVeto(ctx, "EQstaker", 1)
	require.ErrorIs(t, err, domain.ErrStateViolation)
	assert.Contains(t, err.Error(), domain.ErrAlreadyVoted.Error())
	assert.Equal(t, []string{"veto:EQguard"}, h.sender.submitted())
}

func TestVote_Eligibility(t *testing.T) {
	h := newHarness(t, votingMarket(1))

	_, err := h.svc.CounterVeto(context.Background(), "EQfresh", 1)
	assert.ErrorIs(t, err, domain.ErrStateViolation, "stake still locking")

	_, err = h.svc.CastVeto(context.Background(), "EQnobody", 1)
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	assert.Empty(t, h.sender.submitted())
}

func TestVote_ClosedVote(t *testing.T) {
	m := votingMarket(1)
	m.Veto.End = t0.Add(-time.Second)
	h := newHarness(t, m)

	_, err := h.svc.CastVeto(context.Background(), "EQstaker", 1)
	assert.ErrorIs(t, err, domain.ErrStateViolation)
}

func TestFinalizeVeto(t *testing.T) {
	ended := votingMarket(1)
	ended.Veto.End = t0.Add(-time.Second)
	h := newHarness(t, ended, votingMarket(2))

	require.NoError(t, h.svc.FinalizeVeto(context.Background(), "EQanyone", 1))
	assert.ErrorIs(t, h.svc.FinalizeVeto(context.Background(), "EQanyone", 2), domain.ErrStateViolation)
	assert.Equal(t, []string{"finalize:EQguard"}, h.sender.submitted())
}

func TestFinalizeVeto_RepeatWaitsForLedger(t *testing.T) {
	ended := votingMarket(1)
	ended.Veto.End = t0.Add(-time.Second)
	h := newHarness(t, ended)
	ctx := context.Background()

	require.NoError(t, h.svc.FinalizeVeto(ctx, "EQanyone", 1))

	h.clock = t0.Add(30 * time.Second)
	err := h.svc.FinalizeVeto(ctx, "EQother", 1)
	require.ErrorIs(t, err, domain.ErrStateViolation)
	assert.Contains(t, err.Error(), "already submitted")
	assert.Equal(t, []string{"finalize:EQguard"}, h.sender.submitted())

	// The ledger never reported the market resolved: allow a resend.
	h.clock = t0.Add(actions.PendingTTL)
	require.NoError(t, h.svc.FinalizeVeto(ctx, "EQanyone", 1))
	assert.Equal(t, []string{"finalize:EQguard", "finalize:EQguard"}, h.sender.submitted())
}

func TestSettle_RepeatWaitsForLedger(t *testing.T) {
	m := proposedMarket(1, 0)
	m.ChallengeDeadline = timePtr(t0.Add(-time.Minute))
	h := newHarness(t, m)
	ctx := context.Background()

	h.sender.err = errors.New("wallet rejected")
	require.Error(t, h.svc.Settle(ctx, "EQanyone", 1))

	h.sender.err = nil
	require.NoError(t, h.svc.Settle(ctx, "EQanyone", 1), "a failed submit leaves no marker")
	assert.ErrorIs(t, h.svc.Settle(ctx, "EQanyone", 1), domain.ErrStateViolation)
	assert.Len(t, h.sender.submitted(), 1)
}

func TestPreviewVote(t *testing.T) {
	m := votingMarket(1)
	m.Veto.VetoCount, m.Veto.SupportCount = 4, 4
	h := newHarness(t, m)

	pred, err := h.svc.PreviewVote(context.Background(), 1, domain.VoteVeto)
	require.NoError(t, err)
	assert.True(t, pred.Flips)
	assert.False(t, pred.Outcome)
	assert.Empty(t, h.sender.submitted())
	assert.Equal(t, int64(4), h.cached(t, 1).Market.Veto.VetoCount)
}

func TestCreateMarket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	split, err := h.svc.CreateMarket(ctx, "EQcreator", ports.CreateMarketRequest{
		Question:           "Will it snow in Madrid in May?",
		ResolutionDeadline: t0.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), split.Total())
	assert.Equal(t, int64(25_000), split.CreatorRebate)

	_, err = h.svc.CreateMarket(ctx, "EQcreator", ports.CreateMarketRequest{ResolutionDeadline: t0.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	_, err = h.svc.CreateMarket(ctx, "EQcreator", ports.CreateMarketRequest{Question: "late?", ResolutionDeadline: t0})
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	_, err = h.svc.CreateMarket(ctx, "EQcreator", ports.CreateMarketRequest{Question: "cheap?", ResolutionDeadline: t0.Add(time.Hour), Fee: 1})
	assert.ErrorIs(t, err, domain.ErrStateViolation)

	assert.Len(t, h.sender.submitted(), 1)
}
