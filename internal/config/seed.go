package config

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

// Seed describes the exchange state served by the static source in paper and dry-run modes.
// Amounts are integer strings in the owning asset's or market's decimals.
type Seed struct {
	Markets           []SeedMarket      `yaml:"markets"`
	Assets            []SeedAsset       `yaml:"assets"`
	Accounts          []SeedAccount     `yaml:"accounts"`
	Positions         []SeedPosition    `yaml:"positions"`
	NetworkParameters map[string]string `yaml:"network_parameters"`
}

// SeedMarket is one market together with its market data.
type SeedMarket struct {
	ID               string       `yaml:"id"`
	Name             string       `yaml:"name"`
	PriceDecimals    int32        `yaml:"price_decimals"`
	PositionDecimals int32        `yaml:"position_decimals"`
	SettlementAsset  string       `yaml:"settlement_asset"`
	State            string       `yaml:"state"`
	Risk             SeedRisk     `yaml:"risk"`
	TargetStake      string       `yaml:"target_stake"`
	SuppliedStake    string       `yaml:"supplied_stake"`
	BestBid          string       `yaml:"best_bid"`
	BestAsk          string       `yaml:"best_ask"`
	PriceBounds      []SeedBounds `yaml:"price_bounds"`
}

// SeedRisk carries the log-normal risk model parameters.
type SeedRisk struct {
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma"`
	Tau   float64 `yaml:"tau"`
}

// SeedBounds is one price monitoring band.
type SeedBounds struct {
	Lower string `yaml:"lower"`
	Upper string `yaml:"upper"`
}

// SeedAsset is one settlement asset.
type SeedAsset struct {
	ID       string `yaml:"id"`
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
}

// SeedAccount is one balance. An empty party means the configured party.
type SeedAccount struct {
	Party   string `yaml:"party"`
	Asset   string `yaml:"asset"`
	Type    string `yaml:"type"`
	Balance string `yaml:"balance"`
}

// SeedPosition is one open position. An empty party means the configured party.
type SeedPosition struct {
	Market     string `yaml:"market"`
	Party      string `yaml:"party"`
	OpenVolume int64  `yaml:"open_volume"`
}

// Snapshot converts the seed into the initial exchange state for partyID.
func (s Seed) Snapshot(partyID string) (cache.Snapshot, error) {
	var snap cache.Snapshot
	for _, a := range s.Assets {
		snap.Assets = append(snap.Assets, model.Asset{ID: a.ID, Symbol: a.Symbol, Decimals: a.Decimals})
	}
	for _, m := range s.Markets {
		state := model.MarketState(strings.ToUpper(m.State))
		if state == "" {
			state = model.MarketStateActive
		}
		snap.Markets = append(snap.Markets, model.Market{
			ID:               m.ID,
			Name:             m.Name,
			PriceDecimals:    m.PriceDecimals,
			PositionDecimals: m.PositionDecimals,
			SettlementAsset:  m.SettlementAsset,
			State:            state,
			Risk:             model.RiskModel{Mu: m.Risk.Mu, Sigma: m.Risk.Sigma, Tau: m.Risk.Tau},
		})
		md := model.MarketData{MarketID: m.ID}
		fields := []struct {
			name string
			raw  string
			dst  **big.Int
		}{
			{"target_stake", m.TargetStake, &md.TargetStake},
			{"supplied_stake", m.SuppliedStake, &md.SuppliedStake},
			{"best_bid", m.BestBid, &md.BestBid},
			{"best_ask", m.BestAsk, &md.BestAsk},
		}
		for _, f := range fields {
			v, err := parseInt(f.raw)
			if err != nil {
				return cache.Snapshot{}, fmt.Errorf("seed market %s %s: %w", m.ID, f.name, err)
			}
			*f.dst = v
		}
		for _, b := range m.PriceBounds {
			lower, err := parseInt(b.Lower)
			if err != nil {
				return cache.Snapshot{}, fmt.Errorf("seed market %s price bound: %w", m.ID, err)
			}
			upper, err := parseInt(b.Upper)
			if err != nil {
				return cache.Snapshot{}, fmt.Errorf("seed market %s price bound: %w", m.ID, err)
			}
			md.Bounds = append(md.Bounds, model.PriceBounds{Lower: lower, Upper: upper})
		}
		snap.MarketData = append(snap.MarketData, md)
	}
	for _, a := range s.Accounts {
		bal, err := parseInt(a.Balance)
		if err != nil {
			return cache.Snapshot{}, fmt.Errorf("seed account %s/%s: %w", a.Asset, a.Type, err)
		}
		typ := model.AccountType(strings.ToUpper(a.Type))
		if typ == "" {
			typ = model.AccountGeneral
		}
		snap.Accounts = append(snap.Accounts, model.AccountBalance{
			PartyID: orParty(a.Party, partyID),
			Asset:   a.Asset,
			Type:    typ,
			Balance: bal,
		})
	}
	for _, p := range s.Positions {
		snap.Positions = append(snap.Positions, model.Position{
			MarketID:   p.Market,
			PartyID:    orParty(p.Party, partyID),
			OpenVolume: p.OpenVolume,
		})
	}
	keys := make([]string, 0, len(s.NetworkParameters))
	for k := range s.NetworkParameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		snap.NetworkParameters = append(snap.NetworkParameters, model.NetworkParameter{Key: k, Value: s.NetworkParameters[k]})
	}
	return snap, nil
}

func orParty(p, fallback string) string {
	if p == "" {
		return fallback
	}
	return p
}

// parseInt reads an integer amount; blank means zero.
func parseInt(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return v, nil
}
