package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(addr string, action Action, answer bool, bond int64, ts int64) Participant {
	return Participant{
		MarketAddress:      "EQm",
		ParticipantAddress: addr,
		Action:             action,
		Answer:             answer,
		BondAmount:         bond,
		Timestamp:          at(ts),
	}
}

func TestResolveWinner_LastMatchingWins(t *testing.T) {
	ps := []Participant{
		participant("EQa", ActionPropose, true, 10_000, 0),
		participant("EQb", ActionChallenge, false, 20_000, 100),
		participant("EQc", ActionChallenge, true, 40_000, 200),
		participant("EQd", ActionChallenge, false, 80_000, 300),
	}

	w, ok := ResolveWinner(ps, true, 2_000)
	require.True(t, ok)
	assert.Equal(t, "EQc", w.Winner.ParticipantAddress, "last YES bonder, not the first")
	assert.Equal(t, int64(40_000), w.BondReturned)
	assert.Equal(t, int64(110_000), w.BondsWon)
	assert.Equal(t, int64(2_000), w.Bonus)
	assert.Equal(t, w.BondReturned+w.BondsWon+w.Bonus, w.Total)
}

func TestResolveWinner_OrdersByTimestampNotInput(t *testing.T) {
	ps := []Participant{
		participant("EQlate", ActionChallenge, true, 10_000, 500),
		participant("EQearly", ActionPropose, true, 90_000, 0),
	}

	w, ok := ResolveWinner(ps, true, 0)
	require.True(t, ok)
	assert.Equal(t, "EQlate", w.Winner.ParticipantAddress, "largest bond does not matter")
	assert.Equal(t, "EQlate", ps[0].ParticipantAddress, "input is not reordered")
}

func TestResolveWinner_NoMatch(t *testing.T) {
	ps := []Participant{participant("EQa", ActionPropose, true, 10_000, 0)}

	w, ok := ResolveWinner(ps, false, 2_000)
	assert.False(t, ok)
	assert.Equal(t, Winnings{}, w)

	_, ok = ResolveWinner(nil, true, 2_000)
	assert.False(t, ok)
}

func TestResolveMarketWinner_RequiresResolved(t *testing.T) {
	_, _, err := ResolveMarketWinner(openMarket(), nil, DefaultProtocol())
	assert.ErrorIs(t, err, ErrStateViolation)
}
