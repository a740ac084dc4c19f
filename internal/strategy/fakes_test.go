package strategy

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

const (
	testMarket = "m1"
	testParty  = "party1"
	testAsset  = "usdt"
)

type recordingVenue struct {
	mu      sync.Mutex
	lps     []execution.LiquidityProvisionInstruction
	batches []execution.OrderBatchInstruction
	err     error
}

func (v *recordingVenue) SubmitOrder(context.Context, execution.OrderSubmission) error { return v.err }

func (v *recordingVenue) CancelOrder(context.Context, string, string) error { return v.err }

func (v *recordingVenue) SubmitBatch(_ context.Context, b execution.OrderBatchInstruction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.batches = append(v.batches, b)
	return v.err
}

func (v *recordingVenue) SubmitLiquidityProvision(_ context.Context, lp execution.LiquidityProvisionInstruction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lps = append(v.lps, lp)
	return v.err
}

func (v *recordingVenue) GetPosition(context.Context, string, string) (model.Position, error) {
	return model.Position{}, model.ErrNotFound
}

type configMap map[string]model.TradingConfig

func (c configMap) TradingConfig(_ context.Context, marketID string) (model.TradingConfig, error) {
	cfg, ok := c[marketID]
	if !ok {
		return model.TradingConfig{}, fmt.Errorf("%w: trading config %s", model.ErrNotFound, marketID)
	}
	return cfg, nil
}

func defaultConfig() model.TradingConfig {
	return model.TradingConfig{
		MarketID:               testMarket,
		CommitmentBalanceRatio: 0.1,
		CommitmentSpread:       0.001,
		CommitmentOrderCount:   2,
		StakeBuffer:            0.2,
		QuoteOrderCount:        5,
		BidQuoteRange:          0.02,
		AskQuoteRange:          0.02,
		Fee:                    0.001,
		BBOOffset:              0.001,
		BidSizeFactor:          1,
		AskSizeFactor:          1,
	}
}

// seededState returns an initialized state with an active market, a 100000 balance and a 20000 mid.
func seededState() *cache.State {
	s := cache.NewState()
	s.LoadSnapshot(cache.Snapshot{
		Markets: []model.Market{{
			ID: testMarket, PriceDecimals: 2, PositionDecimals: 4,
			SettlementAsset: testAsset, State: model.MarketStateActive,
		}},
		Assets:     []model.Asset{{ID: testAsset, Symbol: "USDT", Decimals: 0}},
		Accounts:   []model.AccountBalance{{PartyID: testParty, Asset: testAsset, Type: model.AccountGeneral, Balance: big.NewInt(100000)}},
		MarketData: []model.MarketData{{MarketID: testMarket, TargetStake: big.NewInt(1), SuppliedStake: big.NewInt(0)}},
	})
	s.SetReferencePrice(testMarket, model.ReferencePrice{BidPrice: 19999, AskPrice: 20001, BidSize: 1, AskSize: 1, MidPrice: 20000})
	return s
}

func newDeps(s *cache.State, v execution.Client, cfgs configMap) Deps {
	return Deps{State: s, Configs: cfgs, Venue: v, PartyID: testParty, Log: zerolog.Nop()}
}
