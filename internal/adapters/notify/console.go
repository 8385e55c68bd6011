package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

const questionWidth = 40

var _ ports.Notifier = (*Console)(nil)

// Console implementa ports.Notifier escribiendo tablas en texto.
type Console struct {
	out      io.Writer
	protocol domain.Protocol
	decimals int32
	now      func() time.Time
}

// NewConsole crea un notificador que escribe a stdout. decimals es la
// precisión del token: los importes del ledger se dividen por 10^decimals.
func NewConsole(p domain.Protocol, decimals int32) *Console {
	return &Console{out: os.Stdout, protocol: p, decimals: decimals, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests con reloj fijo.
func NewConsoleWriter(w io.Writer, p domain.Protocol, now func() time.Time) *Console {
	return &Console{out: w, protocol: p, now: now}
}

// Notify imprime el resumen por status y la tabla de mercados.
func (c *Console) Notify(_ context.Context, rows []domain.CacheRow) error {
	now := c.now()
	if len(rows) == 0 {
		fmt.Fprintf(c.out, "[%s] no markets cached\n", now.Format("15:04:05"))
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d markets — %s\n", now.Format("15:04:05"), len(rows), statusSummary(rows))
	c.printMarkets(rows, now)
	return nil
}

func (c *Console) printMarkets(rows []domain.CacheRow, now time.Time) {
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Status", "Cat", "Market", "Answer", "Bond", "Esc", "Deadline", "Urgency")

	for _, r := range rows {
		m := r.Market
		status := string(m.Status)
		if r.Source == domain.SourceOptimistic {
			status += "*"
		}

		deadline, urgency := "-", "-"
		if cd, ok := m.ActiveCountdown(now, c.protocol); ok {
			deadline = cd.String()
			urgency = urgencyLabel(cd.Urgency)
		}

		table.Append(
			fmt.Sprintf("%d", m.ID),
			status,
			string(m.Category),
			domain.TruncateQuestion(m.Question, m.Address, questionWidth),
			answerColumn(m),
			c.amount(m.CurrentBond),
			fmt.Sprintf("%d/%d", m.EscalationCount, c.protocol.MaxEscalation),
			deadline,
			urgency,
		)
	}

	table.Render()
	fmt.Fprintln(c.out, "  * = pending confirmation (optimistic write)")
}

// PrintProgress imprime una línea de progreso del reconciler. No imprime nada en idle.
func (c *Console) PrintProgress(p ports.Progress) {
	if !p.Active {
		return
	}
	pct := decimal.Zero
	if p.Total > 0 {
		pct = decimal.NewFromInt(int64(p.Loaded)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(p.Total))).
			Round(0)
	}
	fmt.Fprintf(c.out, "  [%s] %d/%d (%s%%) %s\n",
		progressBar(p.Loaded, p.Total, 20), p.Loaded, p.Total, pct.String(), p.Message)
}

// amount formatea un importe del ledger en unidades de token.
func (c *Console) amount(v int64) string {
	if v == 0 {
		return "-"
	}
	return decimal.New(v, -c.decimals).String()
}

func answerColumn(m domain.Market) string {
	switch {
	case m.CurrentAnswer != nil:
		return domain.AnswerLabel(*m.CurrentAnswer)
	case m.ProposedOutcome != nil:
		return domain.AnswerLabel(*m.ProposedOutcome) + "?"
	}
	return "-"
}

func urgencyLabel(u domain.Urgency) string {
	switch u {
	case domain.UrgencySafe:
		return "🟢 safe"
	case domain.UrgencyWarning:
		return "🟡 warning"
	case domain.UrgencyUrgent:
		return "🔴 urgent"
	}
	return "⚫ expired"
}

var statusOrder = []domain.Status{
	domain.StatusOpen, domain.StatusProposed, domain.StatusChallenged,
	domain.StatusVoting, domain.StatusResolved,
}

func statusSummary(rows []domain.CacheRow) string {
	counts := make(map[domain.Status]int, len(statusOrder))
	for _, r := range rows {
		counts[r.Market.Status]++
	}
	parts := make([]string, 0, len(statusOrder))
	for _, s := range statusOrder {
		parts = append(parts, fmt.Sprintf("%s:%d", s, counts[s]))
	}
	return strings.Join(parts, " ")
}

func progressBar(loaded, total, width int) string {
	filled := 0
	if total > 0 {
		filled = loaded * width / total
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}
