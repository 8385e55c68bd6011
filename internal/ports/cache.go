package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// CacheStore is the local read-replica of markets keyed by (network, id).
type CacheStore interface {
	// Upsert stores an authoritative ledger row. Re-applying the same row is a
	// no-op and an older UpdatedAt never replaces a newer one. Optimistic
	// overlays not newer than the row are dropped, all of them once the row is
	// resolved.
	Upsert(ctx context.Context, row domain.CacheRow) error

	// UpsertOptimistic layers a provisional row over the authoritative one
	// until it expires or the next ledger write arrives. It returns a
	// *domain.StateViolation when the write is not allowed.
	UpsertOptimistic(ctx context.Context, row domain.CacheRow) error

	// Get returns the effective row, or domain.ErrNotFound.
	Get(ctx context.Context, network domain.Network, id int64) (domain.CacheRow, error)

	// Query returns effective rows ordered by id descending.
	Query(ctx context.Context, network domain.Network, filter domain.CacheFilter) ([]domain.CacheRow, error)

	// Stale returns the ids of authoritative rows cached before olderThan.
	Stale(ctx context.Context, network domain.Network, olderThan time.Time) ([]int64, error)

	Close() error
}

// ParticipantStore keeps the append-only participant history of markets.
type ParticipantStore interface {
	SaveParticipants(ctx context.Context, network domain.Network, participants []domain.Participant) error
	Participants(ctx context.Context, network domain.Network, marketAddress string) ([]domain.Participant, error)
}
