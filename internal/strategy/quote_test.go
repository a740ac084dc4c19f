package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
	"github.com/MM0819/vega-market-maker-sub000/internal/risk"
)

func runQuotes(t *testing.T, deps Deps) error {
	t.Helper()
	return NewQuotePlanner(deps).Plan(context.Background(), testMarket)
}

func parseInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "not an integer: %q", s)
	return v
}

// rest turns submitted orders into active resting orders, as the exchange would report them back.
func rest(s *cache.State, subs []execution.OrderSubmission) {
	for i, sub := range subs {
		price, _ := new(big.Int).SetString(sub.Price, 10)
		size, _ := new(big.Int).SetString(sub.Size, 10)
		s.Apply(cache.Delta{Order: &model.Order{
			ID: sub.Reference + "-" + string(rune('a'+i)), MarketID: sub.MarketID, PartyID: sub.PartyID,
			Side: sub.Side, Price: price, Size: size, Remaining: size,
			Status: model.OrderStatusActive, Reference: sub.Reference,
		}})
	}
}

func TestQuotesStraddleMid(t *testing.T) {
	venue := &recordingVenue{}
	require.NoError(t, runQuotes(t, newDeps(seededState(), venue, configMap{testMarket: defaultConfig()})))
	require.Len(t, venue.batches, 1)

	batch := venue.batches[0]
	assert.Empty(t, batch.Cancellations)
	require.NotEmpty(t, batch.Submissions)

	mid := big.NewInt(2000000) // 20000 at two price decimals
	var bids, asks int
	for _, s := range batch.Submissions {
		price := parseInt(t, s.Price)
		assert.Positive(t, parseInt(t, s.Size).Sign())
		assert.NotEmpty(t, s.Reference)
		switch s.Side {
		case model.Buy:
			bids++
			assert.Equal(t, -1, price.Cmp(mid), "bid %s at or above mid", s.Price)
		case model.Sell:
			asks++
			assert.Equal(t, 1, price.Cmp(mid), "ask %s at or below mid", s.Price)
		}
	}
	assert.Positive(t, bids)
	assert.Positive(t, asks)
	assert.LessOrEqual(t, bids, 5)
	assert.LessOrEqual(t, asks, 5)
}

func TestQuotesAlreadyRestingSkipsBatch(t *testing.T) {
	s := seededState()
	venue := &recordingVenue{}
	deps := newDeps(s, venue, configMap{testMarket: defaultConfig()})
	require.NoError(t, runQuotes(t, deps))
	require.Len(t, venue.batches, 1)

	rest(s, venue.batches[0].Submissions)
	require.NoError(t, runQuotes(t, deps))
	assert.Len(t, venue.batches, 1, "no second batch expected")
}

func TestQuotesCancelStaleOrders(t *testing.T) {
	s := seededState()
	s.Apply(cache.Delta{Order: &model.Order{
		ID: "stale", MarketID: testMarket, PartyID: testParty, Side: model.Buy,
		Price: big.NewInt(123), Size: big.NewInt(1), Remaining: big.NewInt(1), Status: model.OrderStatusActive,
	}})
	s.Apply(cache.Delta{Order: &model.Order{
		ID: "foreign", MarketID: testMarket, PartyID: "someone-else", Side: model.Buy,
		Price: big.NewInt(123), Size: big.NewInt(1), Remaining: big.NewInt(1), Status: model.OrderStatusActive,
	}})
	venue := &recordingVenue{}
	require.NoError(t, runQuotes(t, newDeps(s, venue, configMap{testMarket: defaultConfig()})))
	require.Len(t, venue.batches, 1)
	assert.Equal(t, []string{"stale"}, venue.batches[0].Cancellations)
	assert.NotEmpty(t, venue.batches[0].Submissions)
}

func TestQuotesNotionalLimitDropsLevels(t *testing.T) {
	venue := &recordingVenue{}
	deps := newDeps(seededState(), venue, configMap{testMarket: defaultConfig()})
	deps.Limits = risk.Limits{MaxOrderNotional: 0.01}
	require.NoError(t, runQuotes(t, deps))
	assert.Empty(t, venue.batches)
}

func TestQuotesStayWithinPriceBounds(t *testing.T) {
	s := seededState()
	m, _ := s.Markets.Get(testMarket)
	m.Risk = model.RiskModel{Mu: 0, Sigma: 1, Tau: 0.0001}
	s.Markets.Upsert(m)
	lower, upper := big.NewInt(1990000), big.NewInt(2010000)
	s.MarketData.Upsert(model.MarketData{
		MarketID: testMarket, TargetStake: big.NewInt(1), SuppliedStake: big.NewInt(0),
		Bounds: []model.PriceBounds{{Lower: lower, Upper: upper}},
	})
	venue := &recordingVenue{}
	require.NoError(t, runQuotes(t, newDeps(s, venue, configMap{testMarket: defaultConfig()})))
	require.Len(t, venue.batches, 1)
	require.NotEmpty(t, venue.batches[0].Submissions)
	for _, sub := range venue.batches[0].Submissions {
		price := parseInt(t, sub.Price)
		assert.GreaterOrEqual(t, price.Cmp(lower), 0, "price %s below bound", sub.Price)
		assert.LessOrEqual(t, price.Cmp(upper), 0, "price %s above bound", sub.Price)
	}
}

func TestQuotesZeroBalanceSkips(t *testing.T) {
	s := seededState()
	s.Accounts.Upsert(model.AccountBalance{PartyID: testParty, Asset: testAsset, Type: model.AccountGeneral, Balance: big.NewInt(0)})
	venue := &recordingVenue{}
	require.NoError(t, runQuotes(t, newDeps(s, venue, configMap{testMarket: defaultConfig()})))
	assert.Empty(t, venue.batches)
}

func TestQuotesMissingConfigIsFatal(t *testing.T) {
	venue := &recordingVenue{}
	err := runQuotes(t, newDeps(seededState(), venue, configMap{}))
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, venue.batches)
}

func TestQuotesMissingMarketIsFatal(t *testing.T) {
	venue := &recordingVenue{}
	err := NewQuotePlanner(newDeps(seededState(), venue, configMap{testMarket: defaultConfig()})).Plan(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestQuotesVenueErrorPropagates(t *testing.T) {
	venue := &recordingVenue{err: errors.New("rejected")}
	err := runQuotes(t, newDeps(seededState(), venue, configMap{testMarket: defaultConfig()}))
	assert.ErrorContains(t, err, "rejected")
}

func TestBuildPlanners(t *testing.T) {
	deps := newDeps(seededState(), &recordingVenue{}, configMap{})
	for _, kind := range Kinds {
		p, err := Build(kind, deps)
		require.NoError(t, err)
		assert.Equal(t, kind, p.Name())
	}
	p, err := Build(" LP ", deps)
	require.NoError(t, err)
	assert.Equal(t, KindLiquidity, p.Name())

	_, err = Build("momentum", deps)
	assert.Error(t, err)
}

// ladderDepth runs one quote cycle with enough order slots to keep every walked level and
// counts the submitted levels per side.
func ladderDepth(t *testing.T, openVolume int64) (bids, asks int) {
	t.Helper()
	s := seededState()
	if openVolume != 0 {
		s.Positions.Upsert(model.Position{MarketID: testMarket, PartyID: testParty, OpenVolume: openVolume})
	}
	cfg := defaultConfig()
	cfg.QuoteOrderCount = 100
	venue := &recordingVenue{}
	require.NoError(t, runQuotes(t, newDeps(s, venue, configMap{testMarket: cfg})))
	require.Len(t, venue.batches, 1)
	for _, sub := range venue.batches[0].Submissions {
		if sub.Side == model.Buy {
			bids++
		} else {
			asks++
		}
	}
	return bids, asks
}

func TestQuotesSkewTowardReducingInventory(t *testing.T) {
	// the ask pool is 50000/20000 = 2.5 base; 12500 at four position decimals is half of it
	neutralBids, neutralAsks := ladderDepth(t, 0)
	assert.InDelta(t, neutralBids, neutralAsks, 1, "flat book should quote symmetrically")

	longBids, longAsks := ladderDepth(t, 12500)
	assert.Greater(t, longAsks, longBids, "long book should quote asks denser than bids")
	assert.Less(t, longBids, neutralBids)
	assert.Greater(t, longAsks, neutralAsks)

	shortBids, shortAsks := ladderDepth(t, -12500)
	assert.Greater(t, shortBids, shortAsks, "short book should quote bids denser than asks")
	assert.Greater(t, shortBids, neutralBids)
	assert.Less(t, shortAsks, neutralAsks)
}

func TestQuotesExposureMeasuredInBaseUnits(t *testing.T) {
	// one raw position unit is 0.0001 base, a negligible share of the 2.5 base pool
	neutralBids, neutralAsks := ladderDepth(t, 0)
	bids, asks := ladderDepth(t, 1)
	assert.InDelta(t, neutralBids, bids, 1)
	assert.InDelta(t, neutralAsks, asks, 1)
}
