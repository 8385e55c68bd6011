// Package actions validates user operations against the cached market state
// before handing them to the wallet, then records the expected effect in the
// cache so the UI reflects it before the next reconciliation pass.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

// ErrReadOnly is returned by submitting operations when no sender is wired.
var ErrReadOnly = errors.New("no transaction sender configured")

// Deps are the ports the service works against. Sender may be nil for a
// read-only service (previews and winners).
type Deps struct {
	Sender       ports.TransactionSender
	Staking      ports.StakingReader
	Cache        ports.CacheStore
	Participants ports.ParticipantStore
	Votes        ports.VoteMarkerStore
}

// Service runs user actions for one network.
type Service struct {
	network  domain.Network
	protocol domain.Protocol
	deps     Deps
	now      func() time.Time
	pending  *pending
}

// New builds a Service. now defaults to time.Now.
func New(network domain.Network, p domain.Protocol, deps Deps, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{network: network, protocol: p, deps: deps, now: now, pending: newPending()}
}

// Propose submits the first bonded answer of an open market.
func (s *Service) Propose(ctx context.Context, from string, marketID int64, answer bool, bond int64) (domain.Market, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("actions.Propose: %w", err)
	}
	now := s.now()
	next, _, err := m.Propose(s.protocol, from, answer, bond, now)
	if err != nil {
		return domain.Market{}, err
	}
	if err := s.submit(func(tx ports.TransactionSender) error {
		return tx.ProposeOutcome(ctx, from, m.Address, answer, bond)
	}); err != nil {
		return domain.Market{}, fmt.Errorf("actions.Propose: submit: %w", err)
	}
	s.writeOptimistic(ctx, next, now)
	return next, nil
}

// Challenge disputes the standing proposal with the opposite answer.
func (s *Service) Challenge(ctx context.Context, from string, marketID int64, answer bool, bond int64) (domain.Market, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("actions.Challenge: %w", err)
	}
	now := s.now()
	next, _, err := m.Challenge(s.protocol, from, answer, bond, now)
	if err != nil {
		return domain.Market{}, err
	}
	if err := s.submit(func(tx ports.TransactionSender) error {
		return tx.ChallengeOutcome(ctx, from, m.Address, answer, bond)
	}); err != nil {
		return domain.Market{}, fmt.Errorf("actions.Challenge: submit: %w", err)
	}
	s.writeOptimistic(ctx, next, now)
	return next, nil
}

// Settle resolves a proposal whose challenge window has expired. Resolution
// is left for the ledger to report; no optimistic row is written, so a repeat
// within PendingTTL is rejected instead.
func (s *Service) Settle(ctx context.Context, from string, marketID int64) error {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return fmt.Errorf("actions.Settle: %w", err)
	}
	if _, err := m.Settle(s.now()); err != nil {
		return err
	}
	if err := s.submitOnce("settle", m.Address, func(tx ports.TransactionSender) error {
		return tx.Settle(ctx, from, m.Address)
	}); err != nil {
		return fmt.Errorf("actions.Settle: submit: %w", err)
	}
	return nil
}

// CastVeto votes to flip the proposed answer.
func (s *Service) CastVeto(ctx context.Context, voter string, marketID int64) (domain.Market, error) {
	return s.vote(ctx, voter, marketID, domain.VoteVeto)
}

// CounterVeto votes to keep the proposed answer.
func (s *Service) CounterVeto(ctx context.Context, voter string, marketID int64) (domain.Market, error) {
	return s.vote(ctx, voter, marketID, domain.VoteSupport)
}

func (s *Service) vote(ctx context.Context, voter string, marketID int64, choice domain.VoteChoice) (domain.Market, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("actions.Vote: %w", err)
	}
	now := s.now()

	// Market state first: eligibility reads are pointless on a closed vote.
	if _, err := m.CastVote(choice, false, now); err != nil {
		return domain.Market{}, err
	}

	voted, err := s.deps.Votes.HasVoted(ctx, s.network, m.Address, voter)
	if err != nil {
		return domain.Market{}, fmt.Errorf("actions.Vote: vote marker: %w", err)
	}
	if err := s.checkEligibility(ctx, voter, now); err != nil {
		return domain.Market{}, err
	}
	next, err := m.CastVote(choice, voted, now)
	if err != nil {
		return domain.Market{}, err
	}

	guard := m.Veto.GuardAddress
	if guard == "" {
		return domain.Market{}, &domain.StateViolation{Op: "vote", Reason: "veto guard not reconciled yet"}
	}
	if err := s.submit(func(tx ports.TransactionSender) error {
		if choice == domain.VoteVeto {
			return tx.CastVeto(ctx, voter, guard)
		}
		return tx.CounterVeto(ctx, voter, guard)
	}); err != nil {
		return domain.Market{}, fmt.Errorf("actions.Vote: submit: %w", err)
	}

	if err := s.deps.Votes.MarkVoted(ctx, s.network, m.Address, voter, choice); err != nil {
		slog.Warn("vote submitted but marker not saved", "market_id", m.ID, "voter", voter, "err", err)
	}
	s.writeOptimistic(ctx, next, now)
	return next, nil
}

func (s *Service) checkEligibility(ctx context.Context, voter string, now time.Time) error {
	if s.deps.Staking == nil {
		return fmt.Errorf("actions.Vote: no staking reader configured")
	}
	stake, err := s.deps.Staking.StakeInfo(ctx, voter)
	if err != nil {
		return fmt.Errorf("actions.Vote: stake info: %w", err)
	}
	supply, err := s.deps.Staking.TotalSupply(ctx)
	if err != nil {
		return fmt.Errorf("actions.Vote: total supply: %w", err)
	}
	return s.protocol.CheckEligibility(stake, supply, now)
}

// FinalizeVeto closes a DAO vote whose period has ended. Like Settle it is
// guarded against repeats within PendingTTL.
func (s *Service) FinalizeVeto(ctx context.Context, from string, marketID int64) error {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return fmt.Errorf("actions.FinalizeVeto: %w", err)
	}
	if _, err := m.FinalizeVeto(s.now()); err != nil {
		return err
	}
	guard := m.Veto.GuardAddress
	if guard == "" {
		return &domain.StateViolation{Op: "finalize", Reason: "veto guard not reconciled yet"}
	}
	if err := s.submitOnce("finalize", m.Address, func(tx ports.TransactionSender) error {
		return tx.FinalizeVeto(ctx, from, guard)
	}); err != nil {
		return fmt.Errorf("actions.FinalizeVeto: submit: %w", err)
	}
	return nil
}

// PreviewVote projects the vote outcome if the caller casts choice. Nothing
// is submitted or stored.
func (s *Service) PreviewVote(ctx context.Context, marketID int64, choice domain.VoteChoice) (domain.VotePrediction, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return domain.VotePrediction{}, fmt.Errorf("actions.PreviewVote: %w", err)
	}
	return domain.PredictVote(m, choice)
}

// CreateMarket deploys a new market and returns how its fee will be split.
func (s *Service) CreateMarket(ctx context.Context, from string, req ports.CreateMarketRequest) (domain.FeeSplit, error) {
	if strings.TrimSpace(req.Question) == "" {
		return domain.FeeSplit{}, &domain.StateViolation{Op: "create", Reason: "question is empty"}
	}
	if !req.ResolutionDeadline.After(s.now()) {
		return domain.FeeSplit{}, &domain.StateViolation{Op: "create", Reason: "resolution deadline must be in the future"}
	}
	if req.Fee == 0 {
		req.Fee = s.protocol.CreationFee
	}
	if req.Fee < s.protocol.CreationFee {
		return domain.FeeSplit{}, &domain.StateViolation{
			Op:     "create",
			Reason: fmt.Sprintf("fee %d is below the creation fee %d", req.Fee, s.protocol.CreationFee),
		}
	}
	if err := s.submit(func(tx ports.TransactionSender) error {
		return tx.CreateMarket(ctx, from, req)
	}); err != nil {
		return domain.FeeSplit{}, fmt.Errorf("actions.CreateMarket: submit: %w", err)
	}
	return domain.SplitCreationFee(req.Fee), nil
}

// market loads the effective cached row of marketID.
func (s *Service) market(ctx context.Context, marketID int64) (domain.Market, error) {
	row, err := s.deps.Cache.Get(ctx, s.network, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %d: %w", marketID, err)
	}
	return row.Market, nil
}

func (s *Service) submit(fn func(tx ports.TransactionSender) error) error {
	if s.deps.Sender == nil {
		return ErrReadOnly
	}
	return fn(s.deps.Sender)
}

// submitOnce is submit for operations that write no optimistic row. The
// marker is set only once the sender accepted the transaction.
func (s *Service) submitOnce(op, market string, fn func(tx ports.TransactionSender) error) error {
	if err := s.pending.check(op, market, s.now()); err != nil {
		return err
	}
	if err := s.submit(fn); err != nil {
		return err
	}
	s.pending.mark(op, market, s.now())
	return nil
}

// writeOptimistic layers next over the cache. The transaction is already
// submitted, so a rejected write is only logged.
func (s *Service) writeOptimistic(ctx context.Context, next domain.Market, now time.Time) {
	row := domain.CacheRow{
		Market:    next,
		Source:    domain.SourceOptimistic,
		WriteID:   uuid.New().String(),
		CachedAt:  now,
		UpdatedAt: now,
	}
	if err := s.deps.Cache.UpsertOptimistic(ctx, row); err != nil {
		slog.Warn("optimistic cache write skipped", "market_id", next.ID, "status", next.Status, "err", err)
	}
}
