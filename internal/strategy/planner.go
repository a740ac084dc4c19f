// Package strategy turns cached exchange state into liquidity commitments and resting quotes.
package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/decimals"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
	"github.com/MM0819/vega-market-maker-sub000/internal/risk"
)

// Planner runs one cycle for a market.
type Planner interface {
	Plan(ctx context.Context, marketID string) error
	Name() string
}

// TradingConfigs resolves the per-market trading configuration.
type TradingConfigs interface {
	TradingConfig(ctx context.Context, marketID string) (model.TradingConfig, error)
}

// Deps bundles the collaborators every planner reads from or writes to.
type Deps struct {
	State   *cache.State
	Configs TradingConfigs
	Venue   execution.Client
	PartyID string
	Limits  risk.Limits
	Log     zerolog.Logger
}

// cycle is the per-run view shared by both planners once the readiness gates have passed.
type cycle struct {
	market   model.Market
	asset    model.Asset
	balance  decimal.Decimal
	exposure float64
}

// prepare evaluates the readiness gates. ok=false with a nil error means the cycle is skipped.
func (d Deps) prepare(marketID string, log zerolog.Logger) (c cycle, ok bool, err error) {
	if !d.State.Initialized() {
		log.Warn().Msg("exchange state not initialized, skipping")
		return c, false, nil
	}
	market, found := d.State.Markets.Get(marketID)
	if !found {
		return c, false, fmt.Errorf("%w: market %s", model.ErrNotFound, marketID)
	}
	if market.State != model.MarketStateActive {
		log.Warn().Str("state", string(market.State)).Msg("market not active, skipping")
		return c, false, nil
	}
	asset, found := d.State.Assets.Get(market.SettlementAsset)
	if !found {
		return c, false, fmt.Errorf("%w: asset %s", model.ErrNotFound, market.SettlementAsset)
	}
	balance := decimals.ToDecimal(asset.Decimals, d.State.TotalBalance(d.PartyID, asset.ID))
	if !balance.IsPositive() {
		log.Info().Str("asset", asset.ID).Msg("no collateral, skipping")
		return c, false, nil
	}
	openVolume := big.NewInt(d.State.OpenVolume(marketID, d.PartyID))
	return cycle{
		market:   market,
		asset:    asset,
		balance:  balance,
		exposure: decimals.ToFloat(market.PositionDecimals, openVolume),
	}, true, nil
}

func (d Deps) tradingConfig(ctx context.Context, marketID string) (model.TradingConfig, error) {
	cfg, err := d.Configs.TradingConfig(ctx, marketID)
	if err != nil {
		return model.TradingConfig{}, fmt.Errorf("trading config for %s: %w", marketID, err)
	}
	return cfg, nil
}

func (d Deps) referencePrice(marketID string) (model.ReferencePrice, error) {
	ref, ok := d.State.ReferencePrice(marketID)
	if !ok || ref.MidPrice <= 0 {
		return model.ReferencePrice{}, fmt.Errorf("%w: reference price for %s", model.ErrNotFound, marketID)
	}
	return ref, nil
}
