// Package app wires configuration into a running market maker: state cache, feeds, venue, planners and scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/config"
	"github.com/MM0819/vega-market-maker-sub000/internal/exchange"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/paper"
	"github.com/MM0819/vega-market-maker-sub000/internal/risk"
	"github.com/MM0819/vega-market-maker-sub000/internal/scheduler"
	"github.com/MM0819/vega-market-maker-sub000/internal/store"
	"github.com/MM0819/vega-market-maker-sub000/internal/strategy"
	"github.com/MM0819/vega-market-maker-sub000/internal/util"
)

const updateBuffer = 256

// App owns every long-lived component of the process.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	state     *cache.State
	source    exchange.Source
	feed      *exchange.Feed
	venue     execution.Client
	ledger    *paper.Ledger
	scheduler *scheduler.Scheduler
	planners  map[string]strategy.Planner

	closers []func()
}

// New builds the component graph described by cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		log:      log,
		state:    cache.NewState(),
		planners: make(map[string]strategy.Planner, len(strategy.Kinds)),
	}

	snap, err := cfg.Seed.Snapshot(cfg.Party.ID)
	if err != nil {
		return nil, err
	}
	a.source = exchange.NewStatic(snap, updateBuffer)

	bindings := make([]exchange.Binding, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		bindings = append(bindings, exchange.Binding{MarketID: m.ID, Symbol: m.ReferenceSymbol})
	}
	a.feed = exchange.NewFeed(cfg.Reference.Provider, bindings, util.Component(log, "reference"),
		exchange.WithStreamURL(cfg.Reference.WSURL),
		exchange.WithRESTBaseURL(cfg.Reference.RESTURL),
		exchange.WithPollInterval(time.Duration(cfg.Reference.PollIntervalMs)*time.Millisecond),
		exchange.WithStubPrice(cfg.Reference.StubPrice),
	)

	if a.venue, err = a.buildVenue(); err != nil {
		a.Close()
		return nil, err
	}
	configs, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := strategy.Deps{
		State:   a.state,
		Configs: configs,
		Venue:   a.venue,
		PartyID: cfg.Party.ID,
		Limits:  risk.Limits{MaxOrderNotional: cfg.Risk.MaxOrderNotional, MaxCommitment: cfg.Risk.MaxCommitment},
		Log:     util.Component(log, "planner"),
	}
	for _, kind := range strategy.Kinds {
		p, err := strategy.Build(kind, deps)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.planners[kind] = p
	}

	a.scheduler = scheduler.New(log)
	for _, m := range cfg.Markets {
		if err := a.register(m); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) buildVenue() (execution.Client, error) {
	log := util.Component(a.log, "venue")
	switch a.cfg.Venue.Provider {
	case execution.ProviderLog:
		return execution.NewLogClient(log, a.state), nil
	case execution.ProviderPaper:
		a.ledger = paper.NewLedger(1024)
		recorders := []paper.Recorder{a.ledger}
		if a.cfg.Venue.FillsPath != "" {
			rec, err := paper.NewJSONLRecorder(a.cfg.Venue.FillsPath)
			if err != nil {
				return nil, fmt.Errorf("open instruction log: %w", err)
			}
			a.closers = append(a.closers, func() { _ = rec.Close() })
			recorders = append(recorders, rec)
		}
		return paper.NewVenue(a.state, log, recorders...), nil
	case execution.ProviderGateway:
		return execution.NewGatewayClient(a.cfg.Venue.BaseURL, log,
			execution.WithToken(a.cfg.Venue.APIToken),
			execution.WithTimeout(a.cfg.Venue.Timeout()),
		), nil
	default:
		return nil, fmt.Errorf("unknown venue provider %q", a.cfg.Venue.Provider)
	}
}

func (a *App) buildStore(ctx context.Context) (strategy.TradingConfigs, error) {
	switch a.cfg.Store.Provider {
	case store.ProviderStatic:
		return store.NewStatic(a.cfg.TradingConfigs()...), nil
	case store.ProviderPostgres:
		pg, err := store.Connect(ctx, a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", a.cfg.Store.Provider)
	}
}

func (a *App) register(m config.Market) error {
	jobs := []struct {
		kind     string
		interval time.Duration
		enabled  bool
	}{
		{strategy.KindLiquidity, m.LiquidityInterval(), m.LiquidityOn()},
		{strategy.KindQuote, m.QuoteInterval(), m.QuoteOn()},
	}
	for _, j := range jobs {
		planner, marketID := a.planners[j.kind], m.ID
		err := a.scheduler.Register(scheduler.Job{
			Key:      scheduler.Key{MarketID: marketID, Type: j.kind},
			Interval: j.interval,
			Enabled:  j.enabled,
			Run:      func(ctx context.Context) error { return planner.Plan(ctx, marketID) },
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// State exposes the exchange state cache.
func (a *App) State() *cache.State { return a.state }

// Scheduler exposes the job scheduler for runtime cancel/reschedule.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Ledger returns the paper venue's instruction ledger, or nil for other venues.
func (a *App) Ledger() *paper.Ledger { return a.ledger }

// Run supervises the reference feed, state stream and scheduler until ctx ends or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	updates := make(chan exchange.Update, updateBuffer)

	g.Go(func() error {
		return quiet(a.feed.Run(ctx, updates))
	})
	g.Go(func() error {
		return quiet(exchange.Publish(ctx, updates, a.state, util.Component(a.log, "reference")))
	})
	g.Go(func() error {
		return quiet(exchange.Sync(ctx, a.source, a.state, util.Component(a.log, "state")))
	})
	g.Go(func() error {
		a.scheduler.Start(ctx)
		<-ctx.Done()
		a.scheduler.Stop()
		return nil
	})

	a.log.Info().Int("markets", len(a.cfg.Markets)).Str("venue", a.cfg.Venue.Provider).Msg("market maker running")
	err := g.Wait()
	a.log.Info().Msg("market maker stopped")
	return err
}

// PlanOnce loads the seeded state, waits for one reference quote per market and runs every
// enabled planner a single time. Cycle failures are collected, not short-circuited.
func (a *App) PlanOnce(ctx context.Context) error {
	snap, err := a.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial state query: %w", err)
	}
	a.state.LoadSnapshot(snap)
	if err := a.primeReferences(ctx); err != nil {
		return err
	}

	var errs []error
	for _, m := range a.cfg.Markets {
		if m.LiquidityOn() {
			if err := a.planners[strategy.KindLiquidity].Plan(ctx, m.ID); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", strategy.KindLiquidity, m.ID, err))
			}
		}
		if m.QuoteOn() {
			if err := a.planners[strategy.KindQuote].Plan(ctx, m.ID); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", strategy.KindQuote, m.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (a *App) primeReferences(ctx context.Context) error {
	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan exchange.Update, updateBuffer)
	errCh := make(chan error, 1)
	go func() { errCh <- a.feed.Run(feedCtx, updates) }()

	pending := make(map[string]bool, len(a.cfg.Markets))
	for _, m := range a.cfg.Markets {
		pending[m.ID] = true
	}
	for len(pending) > 0 {
		select {
		case u := <-updates:
			a.state.SetReferencePrice(u.MarketID, u.Price)
			delete(pending, u.MarketID)
		case err := <-errCh:
			return fmt.Errorf("reference feed: %w", err)
		case <-ctx.Done():
			return fmt.Errorf("waiting for reference prices: %w", ctx.Err())
		}
	}
	return nil
}

// Close releases files and pools opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
