package ports

import (
	"context"
	"time"
)

// CreateMarketRequest is the payload of a market deployment.
type CreateMarketRequest struct {
	Question           string
	Rules              string
	ResolutionSource   string
	ResolutionDeadline time.Time
	Fee                int64
}

// TransactionSender submits transactions to the ledger through the user's
// wallet. Calls return once the wallet accepted or rejected the request;
// confirmation is observed later through reconciliation. Errors (wallet
// rejection, revert) are surfaced to the caller unchanged.
type TransactionSender interface {
	CreateMarket(ctx context.Context, from string, req CreateMarketRequest) error
	ProposeOutcome(ctx context.Context, from, market string, answer bool, bond int64) error
	ChallengeOutcome(ctx context.Context, from, market string, answer bool, bond int64) error
	Settle(ctx context.Context, from, market string) error
	ClaimReward(ctx context.Context, from, market string) error
	ClaimCreatorRebate(ctx context.Context, from, market string) error
	ClaimResolverReward(ctx context.Context, from, market string) error
	CastVeto(ctx context.Context, from, guard string) error
	CounterVeto(ctx context.Context, from, guard string) error
	FinalizeVeto(ctx context.Context, from, guard string) error
}
