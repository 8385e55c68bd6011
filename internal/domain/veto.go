package domain

import (
	"time"
)

// VoteChoice es el lado que elige un staker en la votación de la DAO.
type VoteChoice string

const (
	VoteVeto    VoteChoice = "veto"    // invertir la respuesta propuesta
	VoteSupport VoteChoice = "support" // counter-veto: mantener la respuesta propuesta
)

// Valid indica si c es una opción conocida.
func (c VoteChoice) Valid() bool {
	return c == VoteVeto || c == VoteSupport
}

// Tally cuenta los votos de una disputa.
type Tally struct {
	Vetoes   int64
	Supports int64
}

// NetEffect es vetos menos supports.
func (t Tally) NetEffect() int64 {
	return t.Vetoes - t.Supports
}

// Flips indica si la respuesta propuesta se invierte al finalizar.
// Un empate la mantiene.
func (t Tally) Flips() bool {
	return t.NetEffect() > 0
}

// Outcome devuelve la respuesta que queda dada la propuesta.
func (t Tally) Outcome(proposed bool) bool {
	if t.Flips() {
		return !proposed
	}
	return proposed
}

// With devuelve el recuento con un voto más. El receiver es un valor, el
// recuento real no se toca.
func (t Tally) With(choice VoteChoice) Tally {
	switch choice {
	case VoteVeto:
		t.Vetoes++
	case VoteSupport:
		t.Supports++
	}
	return t
}

// VotePrediction es la proyección "si votas" que se muestra antes de votar.
type VotePrediction struct {
	Choice         VoteChoice
	Current        Tally
	Projected      Tally
	NetEffect      int64
	ProposedAnswer bool
	Outcome        bool
	Flips          bool
}

// PredictVote proyecta el resultado de la votación de m si se vota choice.
func PredictVote(m Market, choice VoteChoice) (VotePrediction, error) {
	if !choice.Valid() {
		return VotePrediction{}, violation("predict", "unknown vote choice %q", choice)
	}
	if m.Status != StatusVoting || m.Veto == nil || m.ProposedOutcome == nil {
		return VotePrediction{}, violation("predict", "market is %s, not in a DAO vote", m.Status)
	}
	current := m.Veto.Tally()
	projected := current.With(choice)
	return VotePrediction{
		Choice:         choice,
		Current:        current,
		Projected:      projected,
		NetEffect:      projected.NetEffect(),
		ProposedAnswer: *m.ProposedOutcome,
		Outcome:        projected.Outcome(*m.ProposedOutcome),
		Flips:          projected.Flips(),
	}, nil
}

// VetoThreshold es el stake mínimo para votar dado el supply total.
func (p Protocol) VetoThreshold(totalSupply int64) int64 {
	return totalSupply * p.VetoThresholdBps / bpsDenominator
}

// CheckEligibility verifica que stake puede votar en now: debe llegar al
// umbral y llevar bloqueado al menos StakeLockPeriod.
func (p Protocol) CheckEligibility(stake Stake, totalSupply int64, now time.Time) error {
	threshold := p.VetoThreshold(totalSupply)
	if stake.Amount <= 0 || stake.Amount < threshold {
		return violation("vote", "staked amount %d is below the voting threshold %d", stake.Amount, threshold)
	}
	seasoned := stake.LockedAt.Add(p.StakeLockPeriod)
	if now.Before(seasoned) {
		return violation("vote", "stake becomes eligible at %s", seasoned.UTC().Format(time.RFC3339))
	}
	return nil
}

// CastVote valida un voto sobre m y devuelve el mercado con el voto contado.
// alreadyVoted viene del vote marker store; el ledger es quien lo impone.
func (m Market) CastVote(choice VoteChoice, alreadyVoted bool, now time.Time) (Market, error) {
	if !choice.Valid() {
		return Market{}, violation("vote", "unknown vote choice %q", choice)
	}
	if m.Status != StatusVoting || m.Veto == nil {
		return Market{}, violation("vote", "market is %s, not in a DAO vote", m.Status)
	}
	if !now.Before(m.Veto.End) {
		return Market{}, violation("vote", "vote closed at %s", m.Veto.End.UTC().Format(time.RFC3339))
	}
	if alreadyVoted {
		return Market{}, &StateViolation{Op: "vote", Reason: ErrAlreadyVoted.Error()}
	}

	next := m
	veto := *m.Veto
	tally := veto.Tally().With(choice)
	veto.VetoCount, veto.SupportCount = tally.Vetoes, tally.Supports
	next.Veto = &veto
	return next, nil
}
