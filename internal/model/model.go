// Package model standardizes the exchange records shared between the state feed, the cache and the planners.
package model

import (
	"errors"
	"math/big"
)

// ErrNotFound marks a record the current cycle cannot proceed without.
var ErrNotFound = errors.New("not found")

// MarketState mirrors the trading lifecycle of a market on the exchange.
type MarketState string

const (
	MarketStateProposed          MarketState = "PROPOSED"
	MarketStatePending           MarketState = "PENDING"
	MarketStateActive            MarketState = "ACTIVE"
	MarketStateSuspended         MarketState = "SUSPENDED"
	MarketStateClosed            MarketState = "CLOSED"
	MarketStateTradingTerminated MarketState = "TRADING_TERMINATED"
	MarketStateSettled           MarketState = "SETTLED"
	MarketStateRejected          MarketState = "REJECTED"
	MarketStateCancelled         MarketState = "CANCELLED"
)

// Side enumerates order directions.
type Side string

const (
	// Buy rests on the bid side of the book.
	Buy Side = "BUY"
	// Sell rests on the ask side of the book.
	Sell Side = "SELL"
)

// OrderStatus tracks the exchange status of an order.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// PegReference names the book price a pegged order offsets from.
type PegReference string

const (
	PegBestBid PegReference = "BEST_BID"
	PegBestAsk PegReference = "BEST_ASK"
	PegMid     PegReference = "MID"
)

// AccountType distinguishes the ledger accounts a party holds per asset.
type AccountType string

const (
	AccountGeneral AccountType = "GENERAL"
	AccountMargin  AccountType = "MARGIN"
	AccountBond    AccountType = "BOND"
)

// RiskModel carries the log-normal parameters of a market's risk model.
type RiskModel struct {
	Mu    float64
	Sigma float64
	Tau   float64
}

// Valid reports whether the model can be used to score price levels.
func (r RiskModel) Valid() bool { return r.Sigma > 0 && r.Tau > 0 }

// Market is a tradable instrument; integer prices use PriceDecimals, sizes use PositionDecimals.
type Market struct {
	ID               string
	Name             string
	PriceDecimals    int32
	PositionDecimals int32
	SettlementAsset  string
	State            MarketState
	Risk             RiskModel
}

// Asset describes a settlement or collateral asset.
type Asset struct {
	ID       string
	Symbol   string
	Decimals int32
}

// AccountBalance is one ledger account balance in asset decimals.
type AccountBalance struct {
	PartyID string
	Asset   string
	Type    AccountType
	Balance *big.Int
}

// Position is a party's signed open volume on a market, in position decimals.
type Position struct {
	MarketID   string
	PartyID    string
	OpenVolume int64
	EntryPrice *big.Int
}

// Order is a resting limit order.
type Order struct {
	ID        string
	MarketID  string
	PartyID   string
	Side      Side
	Price     *big.Int
	Size      *big.Int
	Remaining *big.Int
	Status    OrderStatus
	Reference string
}

// PriceBounds is the price-monitoring range the exchange currently enforces, in market price decimals.
type PriceBounds struct {
	Lower *big.Int
	Upper *big.Int
}

// MarketData carries the exchange-computed liquidity figures for a market.
type MarketData struct {
	MarketID      string
	TargetStake   *big.Int
	SuppliedStake *big.Int
	BestBid       *big.Int
	BestAsk       *big.Int
	Bounds        []PriceBounds
}

// PeggedOrder is one rung of a liquidity-provision ladder.
type PeggedOrder struct {
	Reference  PegReference
	Offset     string
	Proportion uint32
}

// LiquidityProvision is a party's liquidity commitment on a market.
type LiquidityProvision struct {
	ID               string
	MarketID         string
	PartyID          string
	CommitmentAmount *big.Int
	Fee              string
	Buys             []PeggedOrder
	Sells            []PeggedOrder
}

// NetworkParameter is a governance-controlled key/value setting of the exchange.
type NetworkParameter struct {
	Key   string
	Value string
}

// ReferencePrice is the last external venue quote for a market.
type ReferencePrice struct {
	BidPrice float64
	AskPrice float64
	BidSize  float64
	AskSize  float64
	MidPrice float64
}

// TradingConfig holds the per-market knobs the planners read every cycle.
type TradingConfig struct {
	MarketID                string  `yaml:"market_id"`
	CommitmentBalanceRatio  float64 `yaml:"commitment_balance_ratio"`
	CommitmentSpread        float64 `yaml:"commitment_spread"`
	CommitmentOrderCount    int     `yaml:"commitment_order_count"`
	StakeBuffer             float64 `yaml:"stake_buffer"`
	QuoteOrderCount         int     `yaml:"quote_order_count"`
	BidQuoteRange           float64 `yaml:"bid_quote_range"`
	AskQuoteRange           float64 `yaml:"ask_quote_range"`
	Fee                     float64 `yaml:"fee"`
	BBOOffset               float64 `yaml:"bbo_offset"`
	BidSizeFactor           float64 `yaml:"bid_size_factor"`
	AskSizeFactor           float64 `yaml:"ask_size_factor"`
	MinProbabilityOfTrading float64 `yaml:"min_probability_of_trading"`
}
