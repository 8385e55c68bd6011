package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

// VoteMarkers implements ports.VoteMarkerStore with one key per
// (network, market, voter). SETNX keeps the first recorded choice.
type VoteMarkers struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewVoteMarkers creates a store backed by c. A zero ttl keeps markers forever;
// otherwise markers expire once the dispute can no longer be voted on.
func NewVoteMarkers(c *Client, ttl time.Duration) *VoteMarkers {
	return &VoteMarkers{rdb: c.rdb, prefix: c.prefix, ttl: ttl}
}

func (v *VoteMarkers) key(network domain.Network, market, voter string) string {
	return fmt.Sprintf("%s:vote:%s:%s:%s", v.prefix, network, market, voter)
}

func (v *VoteMarkers) HasVoted(ctx context.Context, network domain.Network, marketAddress, voter string) (bool, error) {
	n, err := v.rdb.Exists(ctx, v.key(network, marketAddress, voter)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: has voted %s: %w", marketAddress, err)
	}
	return n > 0, nil
}

func (v *VoteMarkers) MarkVoted(ctx context.Context, network domain.Network, marketAddress, voter string, choice domain.VoteChoice) error {
	if err := v.rdb.SetNX(ctx, v.key(network, marketAddress, voter), string(choice), v.ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark voted %s: %w", marketAddress, err)
	}
	return nil
}

// Compile-time interface check.
var _ ports.VoteMarkerStore = (*VoteMarkers)(nil)
