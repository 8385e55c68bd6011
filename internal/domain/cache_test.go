package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func row(status Status, source Source, updated int64) CacheRow {
	r := CacheRow{
		Market:    Market{ID: 1, Network: NetworkTestnet, Address: "EQm", Status: status},
		Source:    source,
		UpdatedAt: at(updated),
		CachedAt:  at(updated),
	}
	if source == SourceOptimistic {
		exp := at(updated + 120)
		r.ExpiresAt = &exp
	}
	return r
}

func TestAcceptAuthoritative(t *testing.T) {
	existing := row(StatusProposed, SourceLedger, 100)

	assert.True(t, AcceptAuthoritative(nil, existing))
	assert.True(t, AcceptAuthoritative(&existing, existing), "same snapshot re-applied")
	assert.True(t, AcceptAuthoritative(&existing, row(StatusChallenged, SourceLedger, 101)))
	assert.False(t, AcceptAuthoritative(&existing, row(StatusOpen, SourceLedger, 99)))
}

func TestAcceptOptimistic(t *testing.T) {
	base := row(StatusOpen, SourceLedger, 100)

	assert.NoError(t, AcceptOptimistic(&base, nil, row(StatusProposed, SourceOptimistic, 101), at(101)))
	assert.ErrorIs(t, AcceptOptimistic(&base, nil, row(StatusResolved, SourceOptimistic, 101), at(101)), ErrStateViolation)
	assert.ErrorIs(t, AcceptOptimistic(&base, nil, row(StatusProposed, SourceOptimistic, 100), at(100)), ErrStateViolation)

	resolved := row(StatusResolved, SourceLedger, 100)
	assert.ErrorIs(t, AcceptOptimistic(&resolved, nil, row(StatusProposed, SourceOptimistic, 200), at(200)), ErrStateViolation)

	newer := row(StatusChallenged, SourceOptimistic, 150)
	assert.ErrorIs(t, AcceptOptimistic(&base, &newer, row(StatusProposed, SourceOptimistic, 120), at(121)), ErrStateViolation)
	assert.NoError(t, AcceptOptimistic(&base, &newer, row(StatusProposed, SourceOptimistic, 120), at(300)), "expired overlay does not block")
}

func TestEffectiveRow(t *testing.T) {
	base := row(StatusOpen, SourceLedger, 100)
	overlay := row(StatusProposed, SourceOptimistic, 110)

	got, ok := EffectiveRow(&base, &overlay, at(115))
	assert.True(t, ok)
	assert.Equal(t, StatusProposed, got.Market.Status)

	got, _ = EffectiveRow(&base, &overlay, at(110).Add(2*time.Minute))
	assert.Equal(t, StatusOpen, got.Market.Status, "expired overlay falls back to ledger row")

	newerBase := row(StatusChallenged, SourceLedger, 111)
	got, _ = EffectiveRow(&newerBase, &overlay, at(112))
	assert.Equal(t, StatusChallenged, got.Market.Status)

	_, ok = EffectiveRow(nil, nil, at(0))
	assert.False(t, ok)
}

func TestCacheFilter_Matches(t *testing.T) {
	m := Market{Status: StatusVoting, Category: CategoryCrypto, Creator: "EQc"}

	assert.True(t, CacheFilter{}.Matches(m))
	assert.True(t, CacheFilter{Statuses: []Status{StatusProposed, StatusVoting}}.Matches(m))
	assert.False(t, CacheFilter{Statuses: []Status{StatusOpen}}.Matches(m))
	assert.False(t, CacheFilter{Category: CategorySports}.Matches(m))
	assert.False(t, CacheFilter{Creator: "EQother"}.Matches(m))
}
