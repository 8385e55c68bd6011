package toncenter

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

// Get-methods de los contratos del oráculo.
const (
	methodMarketCount    = "get_market_count"
	methodMarket         = "get_market"
	methodLifecycle      = "get_lifecycle"
	methodQuestion       = "get_question"
	methodProposal       = "get_proposal"
	methodGuardAddress   = "get_guard_address"
	methodVetoStatus     = "get_veto_status"
	methodCreatorRebate  = "get_creator_rebate"
	methodResolverReward = "get_resolver_reward"
	methodParticipants   = "get_participants"
	methodStake          = "get_stake"
	methodTotalSupply    = "get_total_supply"
)

var (
	_ ports.LedgerReader       = (*Client)(nil)
	_ ports.ParticipantHistory = (*Client)(nil)
	_ ports.StakingReader      = (*Client)(nil)
)

// MarketCount devuelve el número de mercados desplegados por la factory.
func (c *Client) MarketCount(ctx context.Context) (int64, error) {
	r, err := c.runGetMethod(ctx, c.network.FactoryAddress, methodMarketCount)
	if err != nil {
		return 0, fmt.Errorf("toncenter.MarketCount: %w", err)
	}
	n := r.num()
	if r.err != nil {
		return 0, fmt.Errorf("toncenter.MarketCount: %w", r.err)
	}
	if n < 0 {
		return 0, fmt.Errorf("toncenter.MarketCount: %w: negative count %d", domain.ErrMalformedReply, n)
	}
	return n, nil
}

// MarketIdentity devuelve el registro de creación del mercado con índice index.
func (c *Client) MarketIdentity(ctx context.Context, index int64) (domain.MarketIdentity, error) {
	r, err := c.runGetMethod(ctx, c.network.FactoryAddress, methodMarket, numArg(index))
	if err != nil {
		return domain.MarketIdentity{}, fmt.Errorf("toncenter.MarketIdentity: %w", err)
	}
	id, err := mapIdentity(r)
	if err != nil {
		return domain.MarketIdentity{}, fmt.Errorf("toncenter.MarketIdentity: index %d: %w", index, err)
	}
	return id, nil
}

func (c *Client) LifecycleState(ctx context.Context, address string) (domain.LifecycleState, error) {
	r, err := c.runGetMethod(ctx, address, methodLifecycle)
	if err != nil {
		return domain.LifecycleState{}, fmt.Errorf("toncenter.LifecycleState: %w", err)
	}
	st, err := mapLifecycle(r)
	if err != nil {
		return domain.LifecycleState{}, fmt.Errorf("toncenter.LifecycleState: %w", err)
	}
	return st, nil
}

func (c *Client) QuestionText(ctx context.Context, address string) (domain.QuestionText, error) {
	r, err := c.runGetMethod(ctx, address, methodQuestion)
	if err != nil {
		return domain.QuestionText{}, fmt.Errorf("toncenter.QuestionText: %w", err)
	}
	q, err := mapQuestion(r)
	if err != nil {
		return domain.QuestionText{}, fmt.Errorf("toncenter.QuestionText: %w", err)
	}
	return q, nil
}

func (c *Client) CurrentProposal(ctx context.Context, address string) (domain.Proposal, error) {
	r, err := c.runGetMethod(ctx, address, methodProposal)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("toncenter.CurrentProposal: %w", err)
	}
	p, err := mapProposal(r)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("toncenter.CurrentProposal: %w", err)
	}
	return p, nil
}

// VetoGuardRef pregunta al veto master por el guard del mercado.
// Devuelve "" si todavía no se desplegó ninguno.
func (c *Client) VetoGuardRef(ctx context.Context, masterAddress, marketAddress string) (string, error) {
	if masterAddress == "" {
		masterAddress = c.network.VetoMasterAddress
	}
	r, err := c.runGetMethod(ctx, masterAddress, methodGuardAddress, addressArg(marketAddress))
	if err != nil {
		return "", fmt.Errorf("toncenter.VetoGuardRef: %w", err)
	}
	guard := r.address()
	if r.err != nil {
		return "", fmt.Errorf("toncenter.VetoGuardRef: %w", r.err)
	}
	return guard, nil
}

func (c *Client) VetoStatus(ctx context.Context, guardAddress string) (domain.VetoStatus, error) {
	r, err := c.runGetMethod(ctx, guardAddress, methodVetoStatus)
	if err != nil {
		return domain.VetoStatus{}, fmt.Errorf("toncenter.VetoStatus: %w", err)
	}
	v, err := mapVetoStatus(r)
	if err != nil {
		return domain.VetoStatus{}, fmt.Errorf("toncenter.VetoStatus: %w", err)
	}
	return v, nil
}

func (c *Client) CreatorRebate(ctx context.Context, address string) (domain.Payout, error) {
	return c.payout(ctx, "toncenter.CreatorRebate", address, methodCreatorRebate)
}

func (c *Client) ResolverReward(ctx context.Context, address string) (domain.Payout, error) {
	return c.payout(ctx, "toncenter.ResolverReward", address, methodResolverReward)
}

func (c *Client) payout(ctx context.Context, op, address, method string) (domain.Payout, error) {
	r, err := c.runGetMethod(ctx, address, method)
	if err != nil {
		return domain.Payout{}, fmt.Errorf("%s: %w", op, err)
	}
	p, err := mapPayout(r)
	if err != nil {
		return domain.Payout{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Participants devuelve el historial de acciones con bond del mercado.
func (c *Client) Participants(ctx context.Context, address string) ([]domain.Participant, error) {
	r, err := c.runGetMethod(ctx, address, methodParticipants)
	if err != nil {
		return nil, fmt.Errorf("toncenter.Participants: %w", err)
	}
	ps, err := mapParticipants(r, address)
	if err != nil {
		return nil, fmt.Errorf("toncenter.Participants: %w", err)
	}
	return ps, nil
}

// StakeInfo lee el stake de account en el contrato de staking.
func (c *Client) StakeInfo(ctx context.Context, account string) (domain.Stake, error) {
	r, err := c.runGetMethod(ctx, c.network.StakingAddress, methodStake, addressArg(account))
	if err != nil {
		return domain.Stake{}, fmt.Errorf("toncenter.StakeInfo: %w", err)
	}
	s, err := mapStake(r)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("toncenter.StakeInfo: %w", err)
	}
	return s, nil
}

func (c *Client) TotalSupply(ctx context.Context) (int64, error) {
	r, err := c.runGetMethod(ctx, c.network.StakingAddress, methodTotalSupply)
	if err != nil {
		return 0, fmt.Errorf("toncenter.TotalSupply: %w", err)
	}
	n := r.num()
	if r.err != nil {
		return 0, fmt.Errorf("toncenter.TotalSupply: %w", r.err)
	}
	return n, nil
}
