package strategy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MM0819/vega-market-maker-sub000/internal/decimals"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/metrics"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

// MaxFeeParameter caps the fee a liquidity provider may nominate.
const MaxFeeParameter = "market.liquidity.maximumLiquidityFeeFactorLevel"

// LiquidityPlanner sizes the party's liquidity commitment and its pegged ladder.
type LiquidityPlanner struct {
	deps Deps
}

// NewLiquidityPlanner builds a planner over deps.
func NewLiquidityPlanner(deps Deps) *LiquidityPlanner { return &LiquidityPlanner{deps: deps} }

// Name returns the job type served by the planner.
func (p *LiquidityPlanner) Name() string { return KindLiquidity }

// Plan submits a fresh commitment for marketID. It always submits once the gates pass.
func (p *LiquidityPlanner) Plan(ctx context.Context, marketID string) error {
	log := p.deps.Log.With().Str("job", KindLiquidity).Str("market", marketID).Logger()

	c, ok, err := p.deps.prepare(marketID, log)
	if err != nil || !ok {
		return err
	}
	cfg, err := p.deps.tradingConfig(ctx, marketID)
	if err != nil {
		return err
	}
	ref, err := p.deps.referencePrice(marketID)
	if err != nil {
		return err
	}
	md, found := p.deps.State.MarketData.Get(marketID)
	if !found {
		return fmt.Errorf("%w: market data for %s", model.ErrNotFound, marketID)
	}

	amount := c.balance.Mul(decimal.NewFromFloat(0.5)).Mul(decimal.NewFromFloat(cfg.CommitmentBalanceRatio))
	required := decimals.ToDecimal(c.asset.Decimals, md.TargetStake).Mul(decimal.NewFromFloat(1 + cfg.StakeBuffer))
	if required.GreaterThan(amount) && required.LessThan(c.balance) {
		amount = required
	}

	mid := decimal.NewFromFloat(ref.MidPrice)
	buys, sells := peggedLadder(mid, cfg, c.market.PriceDecimals)

	if lp, ok := p.deps.State.LiquidityProvision(marketID, p.deps.PartyID); ok {
		fromOthers := decimals.ToDecimal(c.asset.Decimals, md.SuppliedStake).Sub(decimals.ToDecimal(c.asset.Decimals, lp.CommitmentAmount))
		amount = amount.Sub(fromOthers)
	}
	amount = p.deps.Limits.CapCommitment(amount)

	instr := execution.LiquidityProvisionInstruction{
		MarketID:         marketID,
		PartyID:          p.deps.PartyID,
		CommitmentAmount: decimals.FromDecimal(c.asset.Decimals, amount).String(),
		Fee:              p.fee(cfg).String(),
		Buys:             buys,
		Sells:            sells,
		Reference:        uuid.NewString(),
	}
	log.Info().
		Str("balance", c.balance.String()).
		Float64("exposure", c.exposure).
		Str("commitment", amount.String()).
		Str("fee", instr.Fee).
		Msg("submitting liquidity commitment")
	if err := p.deps.Venue.SubmitLiquidityProvision(ctx, instr); err != nil {
		return fmt.Errorf("submit liquidity provision: %w", err)
	}
	metrics.LiquiditySubmissions.WithLabelValues(marketID).Inc()
	return nil
}

func (p *LiquidityPlanner) fee(cfg model.TradingConfig) decimal.Decimal {
	fee := decimal.NewFromFloat(cfg.Fee)
	param, ok := p.deps.State.NetworkParameters.Get(MaxFeeParameter)
	if !ok {
		return fee
	}
	ceiling, err := decimal.NewFromString(param.Value)
	if err != nil {
		p.deps.Log.Warn().Err(err).Str("param", MaxFeeParameter).Msg("ignoring unparsable fee cap")
		return fee
	}
	return decimal.Min(fee, ceiling)
}

// peggedLadder builds commitmentOrderCount symmetric rungs, offset i+1 spreads from the best prices.
func peggedLadder(mid decimal.Decimal, cfg model.TradingConfig, priceDecimals int32) (buys, sells []model.PeggedOrder) {
	spread := mid.Mul(decimal.NewFromFloat(cfg.CommitmentSpread))
	for i := 0; i < cfg.CommitmentOrderCount; i++ {
		offset := decimals.FromDecimal(priceDecimals, spread.Mul(decimal.NewFromInt(int64(i+1)))).String()
		buys = append(buys, model.PeggedOrder{Reference: model.PegBestBid, Offset: offset, Proportion: 1})
		sells = append(sells, model.PeggedOrder{Reference: model.PegBestAsk, Offset: offset, Proportion: 1})
	}
	return buys, sells
}
