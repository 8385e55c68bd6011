package domain

import (
	"sort"
)

// Winnings es el desglose del pago al ganador de un mercado resuelto.
// BondReturned + BondsWon + Bonus == Total.
type Winnings struct {
	Winner       Participant
	BondReturned int64
	BondsWon     int64
	Bonus        int64
	Total        int64
}

// ResolveWinner elige al ganador para la respuesta final: el último
// participante que acertó en orden de timestamp, o sea el bonder más
// escalado. ok es false si nadie respaldó la respuesta.
func ResolveWinner(participants []Participant, answer bool, bonus int64) (Winnings, bool) {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var total int64
	winnerIdx := -1
	for i, p := range ordered {
		total += p.BondAmount
		if p.Answer == answer {
			winnerIdx = i
		}
	}
	if winnerIdx < 0 {
		return Winnings{}, false
	}

	winner := ordered[winnerIdx]
	w := Winnings{
		Winner:       winner,
		BondReturned: winner.BondAmount,
		BondsWon:     total - winner.BondAmount,
		Bonus:        bonus,
	}
	w.Total = w.BondReturned + w.BondsWon + w.Bonus
	return w, true
}

// ResolveMarketWinner aplica ResolveWinner a un mercado resuelto.
func ResolveMarketWinner(m Market, participants []Participant, p Protocol) (Winnings, bool, error) {
	if m.Status != StatusResolved || m.CurrentAnswer == nil {
		return Winnings{}, false, violation("winner", "market is %s, winners exist only once resolved", m.Status)
	}
	w, ok := ResolveWinner(participants, *m.CurrentAnswer, p.WinnerBonus)
	return w, ok, nil
}
