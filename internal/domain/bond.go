package domain

// Reparto del fee de creación en basis points. Deben sumar 10000.
const (
	StakersShareBps       int64 = 6000
	CreatorRebateShareBps int64 = 2500
	TreasuryShareBps      int64 = 1000
	ResolverRewardBps     int64 = 500

	bpsDenominator int64 = 10_000
)

// BondAtLevel devuelve el bond del nivel k: minimumBond × 2^k.
func (p Protocol) BondAtLevel(k int) int64 {
	if k < 0 {
		k = 0
	}
	return p.MinimumBond << uint(k)
}

// RequiredChallengeBond es el bond mínimo de un challenge contra m.
func (p Protocol) RequiredChallengeBond(m Market) int64 {
	return p.BondAtLevel(m.EscalationCount + 1)
}

// ValidateProposal valida el bond de la primera propuesta.
func (p Protocol) ValidateProposal(bond int64) error {
	if bond < p.BondAtLevel(0) {
		return violation("propose", "bond %d is below the minimum bond %d", bond, p.BondAtLevel(0))
	}
	return nil
}

// ValidateChallenge valida un challenge contra la propuesta vigente: la
// respuesta debe ser la contraria y el bond al menos el doble del actual.
func (p Protocol) ValidateChallenge(m Market, answer bool, bond int64) error {
	if m.ProposedOutcome == nil {
		return violation("challenge", "market has no standing proposal")
	}
	if answer == *m.ProposedOutcome {
		return violation("challenge", "challenge must answer %s, the opposite of the current proposal",
			AnswerLabel(!*m.ProposedOutcome))
	}
	if required := p.RequiredChallengeBond(m); bond < required {
		return violation("challenge", "bond %d is below the required %d", bond, required)
	}
	return nil
}

// FeeSplit es el reparto del fee de creación, calculado una sola vez.
type FeeSplit struct {
	Stakers        int64
	CreatorRebate  int64
	Treasury       int64
	ResolverReward int64
}

// Total suma todas las partes.
func (f FeeSplit) Total() int64 {
	return f.Stakers + f.CreatorRebate + f.Treasury + f.ResolverReward
}

// SplitCreationFee reparte el fee 60/25/10/5. El resto del redondeo entero va
// a stakers para que las partes sumen exactamente fee.
func SplitCreationFee(fee int64) FeeSplit {
	split := FeeSplit{
		CreatorRebate:  fee * CreatorRebateShareBps / bpsDenominator,
		Treasury:       fee * TreasuryShareBps / bpsDenominator,
		ResolverReward: fee * ResolverRewardBps / bpsDenominator,
	}
	split.Stakers = fee - split.CreatorRebate - split.Treasury - split.ResolverReward
	return split
}
