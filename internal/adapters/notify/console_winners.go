package notify

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// WinnerRow es el resultado de WinnerResolver para un mercado resuelto.
type WinnerRow struct {
	Market   domain.Market
	Winnings domain.Winnings
	Found    bool
}

// PrintWinners imprime quién se lleva los bonds de cada mercado resuelto.
func (c *Console) PrintWinners(rows []WinnerRow) {
	fmt.Fprintf(c.out, "\n── WINNERS (%d resolved) ──\n", len(rows))
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Market", "Answer", "Winner", "Returned", "Won", "Bonus", "Total")
	for _, r := range rows {
		answer := "-"
		if r.Market.CurrentAnswer != nil {
			answer = domain.AnswerLabel(*r.Market.CurrentAnswer)
		}
		q := domain.TruncateQuestion(r.Market.Question, r.Market.Address, 30)
		if !r.Found {
			table.Append(fmt.Sprintf("%d", r.Market.ID), q, answer, "no winner", "-", "-", "-", "-")
			continue
		}
		w := r.Winnings
		table.Append(
			fmt.Sprintf("%d", r.Market.ID),
			q,
			answer,
			w.Winner.ParticipantAddress,
			c.amount(w.BondReturned),
			c.amount(w.BondsWon),
			c.amount(w.Bonus),
			c.amount(w.Total),
		)
	}
	table.Render()
}

// PrintFeeSplit imprime el reparto de la fee de creación.
func (c *Console) PrintFeeSplit(fee int64) {
	split := domain.SplitCreationFee(fee)
	fmt.Fprintf(c.out, "\n── CREATION FEE %s ──\n", c.amount(fee))
	parts := []struct {
		label string
		bps   int64
		value int64
	}{
		{"stakers", domain.StakersShareBps, split.Stakers},
		{"creator rebate", domain.CreatorRebateShareBps, split.CreatorRebate},
		{"treasury", domain.TreasuryShareBps, split.Treasury},
		{"resolver reward", domain.ResolverRewardBps, split.ResolverReward},
	}
	for _, p := range parts {
		fmt.Fprintf(c.out, "  %-16s %6s%%  %s\n",
			p.label, decimal.New(p.bps, -2).StringFixed(1), c.amount(p.value))
	}
}
