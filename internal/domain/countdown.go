package domain

import (
	"fmt"
	"time"
)

// Urgency clasifica un countdown por la fracción de ventana que queda.
type Urgency string

const (
	UrgencySafe    Urgency = "safe"    // > 50% restante
	UrgencyWarning Urgency = "warning" // 12.5% – 50%
	UrgencyUrgent  Urgency = "urgent"  // < 12.5%
	UrgencyExpired Urgency = "expired"
)

// Countdown es una proyección pura de un deadline respecto a now.
type Countdown struct {
	Deadline  time.Time
	Remaining time.Duration
	Total     time.Duration
	Urgency   Urgency
}

// Expired indica si el deadline ya llegó.
func (c Countdown) Expired() bool { return c.Remaining <= 0 }

// String muestra el tiempo restante, p. ej. "3h12m" o "expired".
func (c Countdown) String() string {
	if c.Expired() {
		return "expired"
	}
	d := c.Remaining.Round(time.Minute)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(c.Remaining.Seconds()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		return fmt.Sprintf("%dd%dh", h/24, h%24)
	}
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// NewCountdown calcula el countdown de la ventana [start, deadline] en now.
func NewCountdown(now, start, deadline time.Time) Countdown {
	c := Countdown{
		Deadline:  deadline,
		Remaining: deadline.Sub(now),
		Total:     deadline.Sub(start),
	}
	if c.Remaining <= 0 {
		c.Remaining = 0
		c.Urgency = UrgencyExpired
		return c
	}
	c.Urgency = UrgencyFor(c.Remaining, c.Total)
	return c
}

// UrgencyFor clasifica remaining/total.
func UrgencyFor(remaining, total time.Duration) Urgency {
	if remaining <= 0 {
		return UrgencyExpired
	}
	if total <= 0 {
		return UrgencyUrgent
	}
	ratio := float64(remaining) / float64(total)
	switch {
	case ratio > 0.5:
		return UrgencySafe
	case ratio >= 0.125:
		return UrgencyWarning
	default:
		return UrgencyUrgent
	}
}

// ProposalCountdown cuenta hasta que se abren las propuestas.
func (m Market) ProposalCountdown(now time.Time) (Countdown, bool) {
	if m.Status != StatusOpen || m.ProposalStartTime.IsZero() {
		return Countdown{}, false
	}
	return NewCountdown(now, m.CreatedAt, m.ProposalStartTime), true
}

// ChallengeCountdown cuenta la ventana de challenge abierta.
func (m Market) ChallengeCountdown(now time.Time) (Countdown, bool) {
	if !m.Status.Disputed() || m.ProposedAt == nil || m.ChallengeDeadline == nil {
		return Countdown{}, false
	}
	return NewCountdown(now, *m.ProposedAt, *m.ChallengeDeadline), true
}

// VetoCountdown cuenta la votación de la DAO.
func (m Market) VetoCountdown(now time.Time, p Protocol) (Countdown, bool) {
	if m.Status != StatusVoting || m.Veto == nil {
		return Countdown{}, false
	}
	return NewCountdown(now, m.Veto.End.Add(-p.VotePeriod), m.Veto.End), true
}

// ActiveCountdown devuelve el countdown que aplica al status del mercado.
func (m Market) ActiveCountdown(now time.Time, p Protocol) (Countdown, bool) {
	switch m.Status {
	case StatusOpen:
		return m.ProposalCountdown(now)
	case StatusProposed, StatusChallenged:
		return m.ChallengeCountdown(now)
	case StatusVoting:
		return m.VetoCountdown(now, p)
	}
	return Countdown{}, false
}
