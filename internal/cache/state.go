package cache

import (
	"math/big"
	"sync/atomic"

	"github.com/MM0819/vega-market-maker-sub000/internal/metrics"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

// PartyMarket keys records unique per (market, party).
type PartyMarket struct {
	MarketID string
	PartyID  string
}

// AccountKey keys balances unique per (party, asset, account type).
type AccountKey struct {
	PartyID string
	Asset   string
	Type    model.AccountType
}

// Snapshot is the full state returned by an initial query against the exchange.
type Snapshot struct {
	Markets             []model.Market
	Assets              []model.Asset
	Accounts            []model.AccountBalance
	Positions           []model.Position
	Orders              []model.Order
	LiquidityProvisions []model.LiquidityProvision
	MarketData          []model.MarketData
	NetworkParameters   []model.NetworkParameter
}

// Delta is one streamed change. Set fields are upserted; RemoveLiquidityProvision and RemoveOrder delete.
type Delta struct {
	Market                   *model.Market
	Asset                    *model.Asset
	Account                  *model.AccountBalance
	Position                 *model.Position
	Order                    *model.Order
	LiquidityProvision       *model.LiquidityProvision
	MarketData               *model.MarketData
	NetworkParameter         *model.NetworkParameter
	RemoveLiquidityProvision *PartyMarket
	RemoveOrder              string
}

// State aggregates one collection per exchange entity type.
type State struct {
	Markets             *Collection[string, model.Market]
	Assets              *Collection[string, model.Asset]
	Accounts            *Collection[AccountKey, model.AccountBalance]
	Positions           *Collection[PartyMarket, model.Position]
	Orders              *Collection[string, model.Order]
	LiquidityProvisions *Collection[PartyMarket, model.LiquidityProvision]
	MarketData          *Collection[string, model.MarketData]
	NetworkParameters   *Collection[string, model.NetworkParameter]

	references  *Collection[string, referenceEntry]
	initialized atomic.Bool
}

type referenceEntry struct {
	marketID string
	price    model.ReferencePrice
}

// NewState builds an empty, uninitialized state.
func NewState() *State {
	return &State{
		Markets:  NewCollection(func(m model.Market) string { return m.ID }),
		Assets:   NewCollection(func(a model.Asset) string { return a.ID }),
		Accounts: NewCollection(func(a model.AccountBalance) AccountKey { return AccountKey{a.PartyID, a.Asset, a.Type} }),
		Positions: NewCollection(func(p model.Position) PartyMarket {
			return PartyMarket{p.MarketID, p.PartyID}
		}),
		Orders: NewCollection(func(o model.Order) string { return o.ID }),
		LiquidityProvisions: NewCollection(func(lp model.LiquidityProvision) PartyMarket {
			return PartyMarket{lp.MarketID, lp.PartyID}
		}),
		MarketData:        NewCollection(func(md model.MarketData) string { return md.MarketID }),
		NetworkParameters: NewCollection(func(p model.NetworkParameter) string { return p.Key }),
		references:        NewCollection(func(r referenceEntry) string { return r.marketID }),
	}
}

// Initialized reports whether the initial snapshot has been loaded.
func (s *State) Initialized() bool { return s.initialized.Load() }

// LoadSnapshot upserts every record of snap and marks the state initialized.
func (s *State) LoadSnapshot(snap Snapshot) {
	for _, v := range snap.Markets {
		s.Markets.Upsert(v)
	}
	for _, v := range snap.Assets {
		s.Assets.Upsert(v)
	}
	for _, v := range snap.Accounts {
		s.Accounts.Upsert(v)
	}
	for _, v := range snap.Positions {
		s.Positions.Upsert(v)
	}
	for _, v := range snap.Orders {
		s.Orders.Upsert(v)
	}
	for _, v := range snap.LiquidityProvisions {
		s.LiquidityProvisions.Upsert(v)
	}
	for _, v := range snap.MarketData {
		s.MarketData.Upsert(v)
	}
	for _, v := range snap.NetworkParameters {
		s.NetworkParameters.Upsert(v)
	}
	s.initialized.Store(true)
	s.publishSizes()
}

// Apply folds one streamed delta into the state.
func (s *State) Apply(d Delta) {
	if d.Market != nil {
		s.Markets.Upsert(*d.Market)
	}
	if d.Asset != nil {
		s.Assets.Upsert(*d.Asset)
	}
	if d.Account != nil {
		s.Accounts.Upsert(*d.Account)
	}
	if d.Position != nil {
		s.Positions.Upsert(*d.Position)
	}
	if d.Order != nil {
		if d.Order.Status == model.OrderStatusActive {
			s.Orders.Upsert(*d.Order)
		} else {
			s.Orders.Remove(d.Order.ID)
		}
	}
	if d.LiquidityProvision != nil {
		s.LiquidityProvisions.Upsert(*d.LiquidityProvision)
	}
	if d.MarketData != nil {
		s.MarketData.Upsert(*d.MarketData)
	}
	if d.NetworkParameter != nil {
		s.NetworkParameters.Upsert(*d.NetworkParameter)
	}
	if d.RemoveLiquidityProvision != nil {
		s.LiquidityProvisions.Remove(*d.RemoveLiquidityProvision)
	}
	if d.RemoveOrder != "" {
		s.Orders.Remove(d.RemoveOrder)
	}
	s.publishSizes()
}

// SetReferencePrice stores the latest external quote for a market, replacing the previous one.
func (s *State) SetReferencePrice(marketID string, price model.ReferencePrice) {
	s.references.Upsert(referenceEntry{marketID: marketID, price: price})
}

// ReferencePrice returns the latest external quote for a market.
func (s *State) ReferencePrice(marketID string) (model.ReferencePrice, bool) {
	e, ok := s.references.Get(marketID)
	return e.price, ok
}

// TotalBalance sums the party's balances of asset across every account type.
func (s *State) TotalBalance(partyID, asset string) *big.Int {
	total := new(big.Int)
	for _, acc := range s.Accounts.Filter(func(a model.AccountBalance) bool {
		return a.PartyID == partyID && a.Asset == asset
	}) {
		if acc.Balance != nil {
			total.Add(total, acc.Balance)
		}
	}
	return total
}

// OpenVolume returns the party's signed open volume on the market, zero when no position is cached.
func (s *State) OpenVolume(marketID, partyID string) int64 {
	p, ok := s.Position(marketID, partyID)
	if !ok {
		return 0
	}
	return p.OpenVolume
}

// Position returns the party's cached position on the market.
func (s *State) Position(marketID, partyID string) (model.Position, bool) {
	return s.Positions.Get(PartyMarket{marketID, partyID})
}

// ActiveOrders returns the party's resting orders on the market.
func (s *State) ActiveOrders(marketID, partyID string) []model.Order {
	return s.Orders.Filter(func(o model.Order) bool {
		return o.MarketID == marketID && o.PartyID == partyID && o.Status == model.OrderStatusActive
	})
}

// LiquidityProvision returns the party's commitment on the market.
func (s *State) LiquidityProvision(marketID, partyID string) (model.LiquidityProvision, bool) {
	return s.LiquidityProvisions.Get(PartyMarket{marketID, partyID})
}

func (s *State) publishSizes() {
	metrics.CacheEntries.WithLabelValues("markets").Set(float64(s.Markets.Len()))
	metrics.CacheEntries.WithLabelValues("assets").Set(float64(s.Assets.Len()))
	metrics.CacheEntries.WithLabelValues("accounts").Set(float64(s.Accounts.Len()))
	metrics.CacheEntries.WithLabelValues("positions").Set(float64(s.Positions.Len()))
	metrics.CacheEntries.WithLabelValues("orders").Set(float64(s.Orders.Len()))
	metrics.CacheEntries.WithLabelValues("liquidity_provisions").Set(float64(s.LiquidityProvisions.Len()))
	metrics.CacheEntries.WithLabelValues("market_data").Set(float64(s.MarketData.Len()))
	metrics.CacheEntries.WithLabelValues("network_parameters").Set(float64(s.NetworkParameters.Len()))
}
