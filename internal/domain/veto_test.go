package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func votingMarket(vetoes, supports int64) Market {
	return Market{
		ID:              9,
		Address:         "EQvoting",
		Status:          StatusVoting,
		ProposedOutcome: boolPtr(true),
		Veto:            &VetoState{GuardAddress: "EQguard", End: at(3600), VetoCount: vetoes, SupportCount: supports},
	}
}

func TestTally_BoundaryZeroStands(t *testing.T) {
	tally := Tally{Vetoes: 2, Supports: 2}
	assert.Equal(t, int64(0), tally.NetEffect())
	assert.False(t, tally.Flips())
	assert.True(t, tally.Outcome(true))
	assert.False(t, tally.Outcome(false))

	assert.True(t, Tally{Vetoes: 3, Supports: 2}.Flips())
}

func TestPredictVote_DoesNotMutate(t *testing.T) {
	m := votingMarket(2, 2)

	pred, err := PredictVote(m, VoteVeto)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pred.NetEffect)
	assert.True(t, pred.Flips)
	assert.False(t, pred.Outcome)
	assert.Equal(t, Tally{Vetoes: 2, Supports: 2}, pred.Current)

	pred, err = PredictVote(m, VoteSupport)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), pred.NetEffect)
	assert.False(t, pred.Flips)

	assert.Equal(t, int64(2), m.Veto.VetoCount)
	assert.Equal(t, int64(2), m.Veto.SupportCount)
}

func TestPredictVote_NotVoting(t *testing.T) {
	_, err := PredictVote(openMarket(), VoteVeto)
	assert.ErrorIs(t, err, ErrStateViolation)
}

func TestCheckEligibility(t *testing.T) {
	p := DefaultProtocol()
	supply := int64(1_000_000)
	threshold := p.VetoThreshold(supply)
	require.Equal(t, int64(10_000), threshold)

	now := at(0)
	seasoned := now.Add(-p.StakeLockPeriod)

	assert.NoError(t, p.CheckEligibility(Stake{Amount: threshold, LockedAt: seasoned}, supply, now))
	assert.ErrorIs(t, p.CheckEligibility(Stake{Amount: threshold - 1, LockedAt: seasoned}, supply, now), ErrStateViolation)
	assert.ErrorIs(t, p.CheckEligibility(Stake{Amount: threshold, LockedAt: seasoned.Add(time.Second)}, supply, now), ErrStateViolation,
		"freshly deposited stake must not vote")
	assert.ErrorIs(t, p.CheckEligibility(Stake{}, supply, now), ErrStateViolation)
}

func TestCastVote(t *testing.T) {
	m := votingMarket(0, 0)

	next, err := m.CastVote(VoteVeto, false, at(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.Veto.VetoCount)
	assert.Equal(t, int64(0), m.Veto.VetoCount, "original market untouched")

	_, err = m.CastVote(VoteSupport, true, at(10))
	require.ErrorIs(t, err, ErrStateViolation)
	assert.Contains(t, err.Error(), ErrAlreadyVoted.Error())

	_, err = m.CastVote(VoteVeto, false, at(3600))
	assert.ErrorIs(t, err, ErrStateViolation, "vote after vetoEnd")

	_, err = m.CastVote(VoteChoice("abstain"), false, at(10))
	assert.ErrorIs(t, err, ErrStateViolation)
}
