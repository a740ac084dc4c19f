package cache

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

func TestLoadSnapshotMarksInitialized(t *testing.T) {
	s := NewState()
	assert.False(t, s.Initialized())
	s.LoadSnapshot(Snapshot{
		Markets: []model.Market{{ID: "m1", State: model.MarketStateActive}},
		Assets:  []model.Asset{{ID: "usdt", Decimals: 6}},
	})
	assert.True(t, s.Initialized())
	m, ok := s.Markets.Get("m1")
	require.True(t, ok)
	assert.Equal(t, model.MarketStateActive, m.State)
}

func TestTotalBalanceSumsAccountTypes(t *testing.T) {
	s := NewState()
	s.Apply(Delta{Account: &model.AccountBalance{PartyID: "p", Asset: "usdt", Type: model.AccountGeneral, Balance: big.NewInt(100)}})
	s.Apply(Delta{Account: &model.AccountBalance{PartyID: "p", Asset: "usdt", Type: model.AccountMargin, Balance: big.NewInt(50)}})
	s.Apply(Delta{Account: &model.AccountBalance{PartyID: "p", Asset: "eth", Type: model.AccountGeneral, Balance: big.NewInt(7)}})
	s.Apply(Delta{Account: &model.AccountBalance{PartyID: "other", Asset: "usdt", Type: model.AccountGeneral, Balance: big.NewInt(1000)}})
	// a repeated delta for the same key replaces rather than duplicates
	s.Apply(Delta{Account: &model.AccountBalance{PartyID: "p", Asset: "usdt", Type: model.AccountGeneral, Balance: big.NewInt(120)}})

	assert.Equal(t, int64(170), s.TotalBalance("p", "usdt").Int64())
	assert.Zero(t, s.TotalBalance("nobody", "usdt").Sign())
}

func TestOrderDeltasTrackActiveOrders(t *testing.T) {
	s := NewState()
	s.Apply(Delta{Order: &model.Order{ID: "o1", MarketID: "m", PartyID: "p", Status: model.OrderStatusActive}})
	s.Apply(Delta{Order: &model.Order{ID: "o2", MarketID: "m", PartyID: "p", Status: model.OrderStatusActive}})
	s.Apply(Delta{Order: &model.Order{ID: "o3", MarketID: "other", PartyID: "p", Status: model.OrderStatusActive}})
	require.Len(t, s.ActiveOrders("m", "p"), 2)

	s.Apply(Delta{Order: &model.Order{ID: "o1", MarketID: "m", PartyID: "p", Status: model.OrderStatusFilled}})
	s.Apply(Delta{RemoveOrder: "o2"})
	assert.Empty(t, s.ActiveOrders("m", "p"))
}

func TestLiquidityProvisionRemoval(t *testing.T) {
	s := NewState()
	s.Apply(Delta{LiquidityProvision: &model.LiquidityProvision{MarketID: "m", PartyID: "p", CommitmentAmount: big.NewInt(10)}})
	_, ok := s.LiquidityProvision("m", "p")
	require.True(t, ok)

	s.Apply(Delta{RemoveLiquidityProvision: &PartyMarket{MarketID: "m", PartyID: "p"}})
	_, ok = s.LiquidityProvision("m", "p")
	assert.False(t, ok)
	// removing again is harmless
	s.Apply(Delta{RemoveLiquidityProvision: &PartyMarket{MarketID: "m", PartyID: "p"}})
}

func TestReferencePriceLastValueWins(t *testing.T) {
	s := NewState()
	_, ok := s.ReferencePrice("m")
	assert.False(t, ok)
	s.SetReferencePrice("m", model.ReferencePrice{MidPrice: 1})
	s.SetReferencePrice("m", model.ReferencePrice{MidPrice: 2})
	got, ok := s.ReferencePrice("m")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.MidPrice)
}

func TestOpenVolumeDefaultsToZero(t *testing.T) {
	s := NewState()
	assert.Zero(t, s.OpenVolume("m", "p"))
	s.Apply(Delta{Position: &model.Position{MarketID: "m", PartyID: "p", OpenVolume: -25}})
	assert.Equal(t, int64(-25), s.OpenVolume("m", "p"))
}

func TestPositionLookup(t *testing.T) {
	s := NewState()
	_, ok := s.Position("m", "p")
	assert.False(t, ok)
	s.Apply(Delta{Position: &model.Position{MarketID: "m", PartyID: "p", OpenVolume: 7}})
	p, ok := s.Position("m", "p")
	require.True(t, ok)
	assert.Equal(t, int64(7), p.OpenVolume)
}
