package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

func TestStaticLookup(t *testing.T) {
	s := NewStatic(
		model.TradingConfig{MarketID: "m1", Fee: 0.001},
		model.TradingConfig{MarketID: "m2", Fee: 0.002},
	)
	cfg, err := s.TradingConfig(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, 0.002, cfg.Fee)

	_, err = s.TradingConfig(context.Background(), "m3")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStaticPutReplaces(t *testing.T) {
	s := NewStatic(model.TradingConfig{MarketID: "m1", QuoteOrderCount: 3})
	s.Put(model.TradingConfig{MarketID: "m1", QuoteOrderCount: 7})
	cfg, err := s.TradingConfig(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.QuoteOrderCount)
}

// TestPostgresMissingRow runs against a live database when STORE_TEST_DSN is set.
func TestPostgresMissingRow(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_DSN not set")
	}
	ctx := context.Background()
	pg, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer pg.Close()

	_, err = pg.TradingConfig(ctx, "no-such-market")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
