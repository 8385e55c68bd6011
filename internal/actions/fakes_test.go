package actions_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

var t0 = time.Unix(1_700_000_000, 0).UTC()

// fakeSender records submitted calls as "method:target".
type fakeSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSender) record(method, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, method+":"+target)
	return nil
}

func (f *fakeSender) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSender) CreateMarket(_ context.Context, _ string, req ports.CreateMarketRequest) error {
	return f.record("create", req.Question)
}

func (f *fakeSender) ProposeOutcome(_ context.Context, _, market string, answer bool, bond int64) error {
	return f.record("propose", fmt.Sprintf("%s/%s/%d", market, domain.AnswerLabel(answer), bond))
}

func (f *fakeSender) ChallengeOutcome(_ context.Context, _, market string, answer bool, bond int64) error {
	return f.record("challenge", fmt.Sprintf("%s/%s/%d", market, domain.AnswerLabel(answer), bond))
}

func (f *fakeSender) Settle(_ context.Context, _, market string) error {
	return f.record("settle", market)
}

func (f *fakeSender) ClaimReward(_ context.Context, _, market string) error {
	return f.record("claim", market)
}

func (f *fakeSender) ClaimCreatorRebate(_ context.Context, _, market string) error {
	return f.record("rebate", market)
}

func (f *fakeSender) ClaimResolverReward(_ context.Context, _, market string) error {
	return f.record("reward", market)
}

func (f *fakeSender) CastVeto(_ context.Context, _, guard string) error {
	return f.record("veto", guard)
}

func (f *fakeSender) CounterVeto(_ context.Context, _, guard string) error {
	return f.record("support", guard)
}

func (f *fakeSender) FinalizeVeto(_ context.Context, _, guard string) error {
	return f.record("finalize", guard)
}

type fakeStaking struct {
	stakes map[string]domain.Stake
	supply int64
}

func (f *fakeStaking) StakeInfo(_ context.Context, account string) (domain.Stake, error) {
	return f.stakes[account], nil
}

func (f *fakeStaking) TotalSupply(context.Context) (int64, error) {
	return f.supply, nil
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func openMarket(id int64) domain.Market {
	return domain.Market{
		ID:                 id,
		Address:            fmt.Sprintf("EQm%d", id),
		Network:            domain.NetworkTestnet,
		Creator:            "EQcreator",
		Question:           "Will TON close above $5?",
		ResolutionDeadline: t0.Add(-2 * time.Hour),
		ProposalStartTime:  t0.Add(-time.Hour),
		Status:             domain.StatusOpen,
	}
}

func proposedMarket(id int64, escalation int) domain.Market {
	p := domain.DefaultProtocol()
	m := openMarket(id)
	m.Status = domain.StatusProposed
	if escalation > 0 {
		m.Status = domain.StatusChallenged
	}
	m.EscalationCount = escalation
	m.ProposedOutcome = boolPtr(true)
	m.CurrentBond = p.BondAtLevel(escalation)
	m.ProposedAt = timePtr(t0.Add(-time.Hour))
	m.ChallengeDeadline = timePtr(t0.Add(3 * time.Hour))
	return m
}

func votingMarket(id int64) domain.Market {
	m := proposedMarket(id, 3)
	m.Status = domain.StatusVoting
	m.Veto = &domain.VetoState{GuardAddress: "EQguard", End: t0.Add(time.Hour)}
	return m
}

func resolvedMarket(id int64, answer bool) domain.Market {
	m := proposedMarket(id, 1)
	m.Status = domain.StatusResolved
	m.CurrentAnswer = boolPtr(answer)
	m.Settlement = &domain.Settlement{
		RebateCreator:   "EQcreator",
		RebateAmount:    25_000,
		ResolverAddress: "EQresolver",
		ResolverReward:  5_000,
	}
	return m
}
