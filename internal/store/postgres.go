package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

const selectTradingConfigSQL = `
    SELECT market_id,
           commitment_balance_ratio, commitment_spread, commitment_order_count, stake_buffer,
           quote_order_count, bid_quote_range, ask_quote_range, fee,
           bbo_offset, bid_size_factor, ask_size_factor, min_probability_of_trading
    FROM trading_config
    WHERE market_id = $1
`

// Postgres reads trading configs from the trading_config table. Writes belong to the config API.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// TradingConfig loads one market's config; a missing row is a wrapped model.ErrNotFound.
func (p *Postgres) TradingConfig(ctx context.Context, marketID string) (model.TradingConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var cfg model.TradingConfig
	err := p.db.QueryRow(ctx, selectTradingConfigSQL, marketID).Scan(
		&cfg.MarketID,
		&cfg.CommitmentBalanceRatio,
		&cfg.CommitmentSpread,
		&cfg.CommitmentOrderCount,
		&cfg.StakeBuffer,
		&cfg.QuoteOrderCount,
		&cfg.BidQuoteRange,
		&cfg.AskQuoteRange,
		&cfg.Fee,
		&cfg.BBOOffset,
		&cfg.BidSizeFactor,
		&cfg.AskSizeFactor,
		&cfg.MinProbabilityOfTrading,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TradingConfig{}, fmt.Errorf("%w: trading config %s", model.ErrNotFound, marketID)
	}
	if err != nil {
		return model.TradingConfig{}, fmt.Errorf("query trading config %s: %w", marketID, err)
	}
	return cfg, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.db.Close()
}
