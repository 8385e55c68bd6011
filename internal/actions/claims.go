package actions

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

// Winner is the WinnerResolver result for one resolved market.
type Winner struct {
	Market   domain.Market
	Winnings domain.Winnings
	Found    bool
}

// Winners resolves the winner of every cached resolved market from the stored
// participant history.
func (s *Service) Winners(ctx context.Context, limit int) ([]Winner, error) {
	rows, err := s.deps.Cache.Query(ctx, s.network, domain.CacheFilter{
		Statuses: []domain.Status{domain.StatusResolved},
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("actions.Winners: query: %w", err)
	}

	out := make([]Winner, 0, len(rows))
	for _, row := range rows {
		w, ok, err := s.winner(ctx, row.Market)
		if err != nil {
			return nil, fmt.Errorf("actions.Winners: market %d: %w", row.Market.ID, err)
		}
		out = append(out, Winner{Market: row.Market, Winnings: w, Found: ok})
	}
	return out, nil
}

func (s *Service) winner(ctx context.Context, m domain.Market) (domain.Winnings, bool, error) {
	ps, err := s.deps.Participants.Participants(ctx, s.network, m.Address)
	if err != nil {
		return domain.Winnings{}, false, fmt.Errorf("participants: %w", err)
	}
	return domain.ResolveMarketWinner(m, ps, s.protocol)
}

// ClaimReward collects the bonds and bonus of a resolved market. Only the
// resolved winner may claim.
func (s *Service) ClaimReward(ctx context.Context, from string, marketID int64) (domain.Winnings, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return domain.Winnings{}, fmt.Errorf("actions.ClaimReward: %w", err)
	}
	w, ok, err := s.winner(ctx, m)
	if err != nil {
		return domain.Winnings{}, fmt.Errorf("actions.ClaimReward: %w", err)
	}
	if !ok {
		return domain.Winnings{}, &domain.StateViolation{Op: "claim", Reason: "no participant backed the final answer"}
	}
	if w.Winner.ParticipantAddress != from {
		return domain.Winnings{}, &domain.StateViolation{Op: "claim", Reason: fmt.Sprintf("%s is not the winner of market %d", from, m.ID)}
	}
	if err := s.submitOnce("claim", m.Address, func(tx ports.TransactionSender) error {
		return tx.ClaimReward(ctx, from, m.Address)
	}); err != nil {
		return domain.Winnings{}, fmt.Errorf("actions.ClaimReward: submit: %w", err)
	}
	return w, nil
}

// ClaimCreatorRebate collects the creator's share of the creation fee.
func (s *Service) ClaimCreatorRebate(ctx context.Context, from string, marketID int64) (int64, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("actions.ClaimCreatorRebate: %w", err)
	}
	st, err := settled(m, "claim rebate")
	if err != nil {
		return 0, err
	}
	creator := st.RebateCreator
	if creator == "" {
		creator = m.Creator
	}
	switch {
	case creator != from:
		return 0, &domain.StateViolation{Op: "claim rebate", Reason: fmt.Sprintf("%s is not the creator of market %d", from, m.ID)}
	case st.RebateClaimed:
		return 0, &domain.StateViolation{Op: "claim rebate", Reason: "rebate already claimed"}
	}
	if err := s.submitOnce("claim rebate", m.Address, func(tx ports.TransactionSender) error {
		return tx.ClaimCreatorRebate(ctx, from, m.Address)
	}); err != nil {
		return 0, fmt.Errorf("actions.ClaimCreatorRebate: submit: %w", err)
	}
	return st.RebateAmount, nil
}

// ClaimResolverReward collects the reward of whoever settled the market.
func (s *Service) ClaimResolverReward(ctx context.Context, from string, marketID int64) (int64, error) {
	m, err := s.market(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("actions.ClaimResolverReward: %w", err)
	}
	st, err := settled(m, "claim resolver reward")
	if err != nil {
		return 0, err
	}
	switch {
	case st.ResolverAddress != from:
		return 0, &domain.StateViolation{Op: "claim resolver reward", Reason: fmt.Sprintf("%s did not resolve market %d", from, m.ID)}
	case st.ResolverClaimed:
		return 0, &domain.StateViolation{Op: "claim resolver reward", Reason: "reward already claimed"}
	}
	if err := s.submitOnce("claim resolver reward", m.Address, func(tx ports.TransactionSender) error {
		return tx.ClaimResolverReward(ctx, from, m.Address)
	}); err != nil {
		return 0, fmt.Errorf("actions.ClaimResolverReward: submit: %w", err)
	}
	return st.ResolverReward, nil
}

func settled(m domain.Market, op string) (domain.Settlement, error) {
	if m.Status != domain.StatusResolved {
		return domain.Settlement{}, &domain.StateViolation{Op: op, Reason: fmt.Sprintf("market is %s, payouts exist only once resolved", m.Status)}
	}
	if m.Settlement == nil {
		return domain.Settlement{}, &domain.StateViolation{Op: op, Reason: "settlement not reconciled yet"}
	}
	return *m.Settlement, nil
}
