package domain

import (
	"fmt"
	"time"
)

// BuildMarket convierte las respuestas crudas del ledger en un Market.
// Devuelve ErrMalformedReply si las respuestas se contradicen.
func BuildMarket(network Network, id int64, d MarketDetail, p Protocol) (Market, error) {
	status, ok := StatusFromLedger(d.Lifecycle.State)
	if !ok {
		return Market{}, fmt.Errorf("market %d: unknown state code %d: %w", id, d.Lifecycle.State, ErrMalformedReply)
	}
	if d.Identity.Address == "" {
		return Market{}, fmt.Errorf("market %d: empty address: %w", id, ErrMalformedReply)
	}

	m := Market{
		ID:                 id,
		Address:            d.Identity.Address,
		Network:            network,
		Creator:            d.Identity.Creator,
		CreatedAt:          d.Identity.CreatedAt,
		Question:           d.Question.Question,
		Rules:              d.Question.Rules,
		ResolutionSource:   d.Question.ResolutionSource,
		Category:           InferCategory(d.Question.Question),
		ResolutionDeadline: d.Lifecycle.ResolutionDeadline,
		ProposalStartTime:  d.Lifecycle.ResolutionDeadline.Add(p.ProposalGrace),
		Status:             status,
		EscalationCount:    d.Lifecycle.EscalationCount,
		TotalBonds:         d.Lifecycle.TotalBonds,
	}

	if d.Proposal != nil && status != StatusOpen {
		if d.Proposal.ChallengeDeadline.Before(d.Proposal.ProposedAt) {
			return Market{}, fmt.Errorf("market %d: challenge deadline before proposal: %w", id, ErrMalformedReply)
		}
		m.ProposedOutcome = boolPtr(d.Proposal.Answer)
		m.CurrentBond = d.Proposal.Bond
		m.ProposedAt = timePtr(d.Proposal.ProposedAt)
		m.ChallengeDeadline = timePtr(d.Proposal.ChallengeDeadline)
	}

	if d.Veto != nil && (status == StatusVoting || status == StatusResolved) {
		m.Veto = &VetoState{
			GuardAddress: d.VetoGuard,
			End:          d.Veto.VetoEnd,
			VetoCount:    d.Veto.VetoCount,
			SupportCount: d.Veto.SupportCount,
		}
		m.CurrentAnswer = boolPtr(d.Veto.CurrentAnswer)
		if m.ProposedOutcome == nil && status == StatusVoting {
			m.ProposedOutcome = boolPtr(d.Veto.CurrentAnswer)
		}
	}

	if status == StatusResolved {
		if m.CurrentAnswer == nil && m.ProposedOutcome != nil {
			m.CurrentAnswer = boolPtr(*m.ProposedOutcome)
		}
		if d.CreatorRebate != nil || d.ResolverReward != nil {
			m.Settlement = &Settlement{}
		}
		if r := d.CreatorRebate; r != nil {
			m.Settlement.RebateCreator = r.Account
			m.Settlement.RebateAmount = r.Amount
			m.Settlement.RebateClaimed = r.Claimed
		}
		if r := d.ResolverReward; r != nil {
			m.Settlement.ResolverAddress = r.Account
			m.Settlement.ResolverReward = r.Amount
			m.Settlement.ResolverClaimed = r.Claimed
		}
	}

	return m, nil
}

// CanProposeNow indica si se acepta una primera propuesta en now.
func (m Market) CanProposeNow(now time.Time) bool {
	return m.Status == StatusOpen && !now.Before(m.ProposalStartTime)
}

// CanSettle indica si la propuesta vigente se puede liquidar en now.
func (m Market) CanSettle(now time.Time) bool {
	return m.Status.Disputed() && m.ChallengeDeadline != nil && !now.Before(*m.ChallengeDeadline)
}

// CanFinalizeVeto indica si la votación de la DAO se puede cerrar en now.
func (m Market) CanFinalizeVeto(now time.Time) bool {
	return m.Status == StatusVoting && m.Veto != nil && !now.Before(m.Veto.End)
}

// Propose aplica la primera propuesta con bond. El receiver nunca se
// modifica; ante error se devuelven zero values.
func (m Market) Propose(p Protocol, proposer string, answer bool, bond int64, now time.Time) (Market, Participant, error) {
	if m.Status != StatusOpen {
		return Market{}, Participant{}, violation("propose", "market is %s, proposals are only accepted while open", m.Status)
	}
	if now.Before(m.ProposalStartTime) {
		return Market{}, Participant{}, violation("propose", "proposals open at %s", m.ProposalStartTime.UTC().Format(time.RFC3339))
	}
	if err := p.ValidateProposal(bond); err != nil {
		return Market{}, Participant{}, err
	}

	next := m
	next.Status = StatusProposed
	next.ProposedOutcome = boolPtr(answer)
	next.EscalationCount = 0
	next.CurrentBond = p.BondAtLevel(0)
	next.TotalBonds = m.TotalBonds + bond
	next.ProposedAt = timePtr(now)
	next.ChallengeDeadline = timePtr(now.Add(p.ChallengePeriodAt(0)))

	return next, Participant{
		MarketAddress:      m.Address,
		ParticipantAddress: proposer,
		Action:             ActionPropose,
		Answer:             answer,
		BondAmount:         bond,
		EscalationLevel:    0,
		Timestamp:          now,
	}, nil
}

// Challenge disputa la propuesta vigente con la respuesta contraria. Con el
// tope de escalado alcanzado, el challenge pasa la disputa a la votación de
// la DAO en vez de abrir otra ventana.
func (m Market) Challenge(p Protocol, challenger string, answer bool, bond int64, now time.Time) (Market, Participant, error) {
	if !m.Status.Disputed() {
		return Market{}, Participant{}, violation("challenge", "market is %s, only proposed or challenged markets can be challenged", m.Status)
	}
	if m.ChallengeDeadline != nil && !now.Before(*m.ChallengeDeadline) {
		return Market{}, Participant{}, violation("challenge", "challenge window closed at %s", m.ChallengeDeadline.UTC().Format(time.RFC3339))
	}
	if err := p.ValidateChallenge(m, answer, bond); err != nil {
		return Market{}, Participant{}, err
	}

	next := m
	next.TotalBonds = m.TotalBonds + bond
	participant := Participant{
		MarketAddress:      m.Address,
		ParticipantAddress: challenger,
		Action:             ActionChallenge,
		Answer:             answer,
		BondAmount:         bond,
		EscalationLevel:    m.EscalationCount + 1,
		Timestamp:          now,
	}

	if m.EscalationCount >= p.MaxEscalation {
		// La propuesta en disputa es la que vota la DAO. El participante queda
		// con nivel MaxEscalation+1: ese nivel marca el paso a votación, el
		// EscalationCount del mercado se queda en el tope.
		next.Status = StatusVoting
		next.Veto = &VetoState{End: now.Add(p.VotePeriod)}
		return next, participant, nil
	}

	next.Status = StatusChallenged
	next.EscalationCount = m.EscalationCount + 1
	next.CurrentBond = p.BondAtLevel(next.EscalationCount)
	next.ProposedOutcome = boolPtr(answer)
	next.ProposedAt = timePtr(now)
	next.ChallengeDeadline = timePtr(now.Add(p.ChallengePeriodAt(next.EscalationCount)))
	return next, participant, nil
}

// Settle resuelve una propuesta no disputada cuando vence su ventana.
func (m Market) Settle(now time.Time) (Market, error) {
	if !m.Status.Disputed() {
		return Market{}, violation("settle", "market is %s, only proposed or challenged markets can be settled", m.Status)
	}
	if m.ChallengeDeadline == nil || m.ProposedOutcome == nil {
		return Market{}, violation("settle", "market has no standing proposal")
	}
	if now.Before(*m.ChallengeDeadline) {
		return Market{}, violation("settle", "challenge window is open until %s", m.ChallengeDeadline.UTC().Format(time.RFC3339))
	}

	next := m
	next.Status = StatusResolved
	next.CurrentAnswer = boolPtr(*m.ProposedOutcome)
	return next, nil
}

// FinalizeVeto cierra la votación de la DAO. Un mercado finalizado queda
// resolved, así que otra llamada se rechaza en vez de aplicarse dos veces.
func (m Market) FinalizeVeto(now time.Time) (Market, error) {
	if m.Status == StatusResolved {
		return Market{}, violation("finalize", "veto already finalized")
	}
	if m.Status != StatusVoting || m.Veto == nil {
		return Market{}, violation("finalize", "market is %s, not in a DAO vote", m.Status)
	}
	if now.Before(m.Veto.End) {
		return Market{}, violation("finalize", "vote is open until %s", m.Veto.End.UTC().Format(time.RFC3339))
	}
	if m.ProposedOutcome == nil {
		return Market{}, violation("finalize", "market has no proposal under vote")
	}

	next := m
	veto := *m.Veto
	next.Veto = &veto
	next.Status = StatusResolved
	next.CurrentAnswer = boolPtr(m.Veto.Tally().Outcome(*m.ProposedOutcome))
	return next, nil
}
