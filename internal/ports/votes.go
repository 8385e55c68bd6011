package ports

import (
	"context"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// VoteMarkerStore remembers which (market, voter) pairs already voted, so the
// client can refuse a second vote before the ledger does.
type VoteMarkerStore interface {
	HasVoted(ctx context.Context, network domain.Network, marketAddress, voter string) (bool, error)
	// MarkVoted records the vote; marking twice is not an error.
	MarkVoted(ctx context.Context, network domain.Network, marketAddress, voter string, choice domain.VoteChoice) error
}
