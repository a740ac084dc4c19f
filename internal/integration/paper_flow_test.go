package integration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/app"
	"github.com/MM0819/vega-market-maker-sub000/internal/config"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
	"github.com/MM0819/vega-market-maker-sub000/internal/paper"
	"github.com/MM0819/vega-market-maker-sub000/internal/scheduler"
	"github.com/MM0819/vega-market-maker-sub000/internal/strategy"
)

func paperConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		App:       config.App{Name: "paper-flow", LogLevel: "debug"},
		Party:     config.Party{ID: "mm-party"},
		Venue:     config.Venue{Provider: "paper", FillsPath: filepath.Join(t.TempDir(), "instructions.jsonl")},
		Reference: config.Reference{Provider: "stub", PollIntervalMs: 10, StubPrice: 20000},
		Store:     config.Store{Provider: "static"},
		Markets: []config.Market{{
			ID:                  "btc-perp",
			ReferenceSymbol:     "BTCUSDT",
			LiquidityIntervalMs: 20,
			QuoteIntervalMs:     20,
			Trading: model.TradingConfig{
				CommitmentBalanceRatio: 0.1,
				CommitmentSpread:       0.001,
				CommitmentOrderCount:   2,
				StakeBuffer:            0.2,
				QuoteOrderCount:        4,
				BidQuoteRange:          0.02,
				AskQuoteRange:          0.02,
				Fee:                    0.001,
			},
		}},
		Seed: config.Seed{
			Assets: []config.SeedAsset{{ID: "usdt", Symbol: "USDT", Decimals: 0}},
			Markets: []config.SeedMarket{{
				ID: "btc-perp", PriceDecimals: 2, PositionDecimals: 4, SettlementAsset: "usdt",
				TargetStake: "1", SuppliedStake: "0",
			}},
			Accounts: []config.SeedAccount{{Asset: "usdt", Balance: "100000"}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	return cfg
}

func TestPaperFlowCommitsAndQuotes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := paperConfig(t)
	var buf syncBuffer
	mm, err := app.New(ctx, cfg, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("app.New returned error: %v", err)
	}
	defer mm.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- mm.Run(runCtx) }()

	ledger := mm.Ledger()
	deadline := time.After(4 * time.Second)
	for ledger.Count(paper.KindLiquidity) == 0 || ledger.Count(paper.KindBatch) == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for paper instructions, ledger=%d", len(ledger.Snapshot()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	state := mm.State()
	if _, ok := state.LiquidityProvision("btc-perp", "mm-party"); !ok {
		t.Fatalf("expected commitment echoed into the cache")
	}
	if len(state.ActiveOrders("btc-perp", "mm-party")) == 0 {
		t.Fatalf("expected resting quotes in the cache")
	}

	if !mm.Scheduler().Cancel(scheduler.Key{MarketID: "btc-perp", Type: strategy.KindLiquidity}) {
		t.Fatalf("expected liquidity job to be registered")
	}

	stop()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("app did not stop")
	}
	mm.Close()

	records, err := paper.ReadJSONL(cfg.Venue.FillsPath)
	if err != nil {
		t.Fatalf("ReadJSONL error: %v", err)
	}
	if len(records) == 0 {
		t.Fatalf("expected instructions on disk")
	}
	if !strings.Contains(buf.String(), "scheduler drained") {
		t.Fatalf("expected scheduler shutdown in logs")
	}
}

func TestPlanOnceWithLogVenue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := paperConfig(t)
	cfg.Venue = config.Venue{Provider: "log"}
	var buf syncBuffer
	mm, err := app.New(ctx, cfg, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("app.New returned error: %v", err)
	}
	defer mm.Close()

	if err := mm.PlanOnce(ctx); err != nil {
		t.Fatalf("PlanOnce returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "submit liquidity provision (dry run)") {
		t.Fatalf("expected liquidity dry run in logs, got %s", out)
	}
	if !strings.Contains(out, "submit batch (dry run)") {
		t.Fatalf("expected quote batch dry run in logs, got %s", out)
	}
	if mm.Ledger() != nil {
		t.Fatalf("log venue should not keep a ledger")
	}
}

func TestPlanOnceReportsMissingMarket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := paperConfig(t)
	cfg.Venue = config.Venue{Provider: "log"}
	cfg.Seed.Markets = nil
	mm, err := app.New(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("app.New returned error: %v", err)
	}
	defer mm.Close()

	err = mm.PlanOnce(ctx)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// syncBuffer lets background goroutines log while the test reads the output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
