package ports

import (
	"context"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// LedgerReader runs the read-only get-methods of the oracle contracts.
// Every call is idempotent and side-effect free. Implementations return
// domain.ErrRateLimited / domain.ErrTransient for retryable failures,
// domain.ErrNotAvailable when the contract has no such record yet and
// domain.ErrMalformedReply when the reply cannot be decoded.
type LedgerReader interface {
	MarketCount(ctx context.Context) (int64, error)
	MarketIdentity(ctx context.Context, index int64) (domain.MarketIdentity, error)
	LifecycleState(ctx context.Context, address string) (domain.LifecycleState, error)
	QuestionText(ctx context.Context, address string) (domain.QuestionText, error)
	// CurrentProposal is only meaningful for proposed/challenged markets.
	CurrentProposal(ctx context.Context, address string) (domain.Proposal, error)
	// VetoGuardRef returns "" when no guard was deployed for the market.
	VetoGuardRef(ctx context.Context, masterAddress, marketAddress string) (string, error)
	VetoStatus(ctx context.Context, guardAddress string) (domain.VetoStatus, error)
	CreatorRebate(ctx context.Context, address string) (domain.Payout, error)
	ResolverReward(ctx context.Context, address string) (domain.Payout, error)
}

// ParticipantHistory lists the bonded actions recorded by a market contract.
type ParticipantHistory interface {
	Participants(ctx context.Context, address string) ([]domain.Participant, error)
}

// StakingReader exposes the staking contract state used for veto eligibility.
type StakingReader interface {
	StakeInfo(ctx context.Context, account string) (domain.Stake, error)
	TotalSupply(ctx context.Context) (int64, error)
}
