// Package exchange connects the market maker to its data sources: reference price feeds from
// external venues and the exchange state stream that keeps the cache current.
package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/metrics"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

const (
	// ProviderStub emits deterministic synthetic quotes (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams best bid/ask from Binance public websockets.
	ProviderBinance = "binance"
	// ProviderBinanceREST polls the Binance book ticker endpoint over HTTP.
	ProviderBinanceREST = "binance_rest"
)

// Binding maps an external venue symbol onto the exchange market it prices.
type Binding struct {
	MarketID string
	Symbol   string
}

// Update is one reference quote for a market.
type Update struct {
	MarketID string
	Symbol   string
	Price    model.ReferencePrice
	Ts       time.Time
}

// Feed represents a pluggable reference price stream implementation.
type Feed struct {
	provider     string
	log          zerolog.Logger
	pollInterval time.Duration
	streamURL    string
	restBaseURL  string
	stubPrice    float64

	mu       sync.RWMutex
	bindings map[string][]string // upper-case symbol -> market IDs
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const (
	defaultPollInterval = 2 * time.Second
	defaultStreamURL    = "wss://stream.binance.com:9443"
	defaultRESTBaseURL  = "https://api.binance.com"
	defaultStubPrice    = 100.0
)

// WithPollInterval overrides the default cadence for polling and synthetic feeds.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// WithStreamURL points the websocket provider at another host.
func WithStreamURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.streamURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithRESTBaseURL points the polling provider at another host.
func WithRESTBaseURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.restBaseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithStubPrice sets the starting mid of the synthetic feed.
func WithStubPrice(px float64) Option {
	return func(f *Feed) {
		if px > 0 {
			f.stubPrice = px
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, bindings []Binding, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		log:          log.With().Str("component", "reference_feed").Str("provider", strings.ToLower(provider)).Logger(),
		pollInterval: defaultPollInterval,
		streamURL:    defaultStreamURL,
		restBaseURL:  defaultRESTBaseURL,
		stubPrice:    defaultStubPrice,
	}
	f.SetBindings(bindings)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetBindings replaces the tracked symbol list. Several markets may share one symbol.
func (f *Feed) SetBindings(bindings []Binding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = make(map[string][]string, len(bindings))
	for _, b := range bindings {
		sym := strings.ToUpper(strings.TrimSpace(b.Symbol))
		if sym == "" || b.MarketID == "" {
			continue
		}
		f.bindings[sym] = append(f.bindings[sym], b.MarketID)
	}
}

// symbols returns the tracked symbols sorted for determinism.
func (f *Feed) symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.bindings))
	for sym := range f.bindings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (f *Feed) markets(symbol string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.bindings[strings.ToUpper(symbol)]...)
}

// Run pushes updates onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- Update) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	case ProviderBinanceREST:
		return f.runBinanceREST(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// emit fans one symbol quote out to every bound market.
func (f *Feed) emit(ctx context.Context, out chan<- Update, symbol string, px model.ReferencePrice, ts time.Time) error {
	for _, m := range f.markets(symbol) {
		select {
		case out <- Update{MarketID: m, Symbol: strings.ToUpper(symbol), Price: px, Ts: ts}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *Feed) runStub(ctx context.Context, out chan<- Update) error {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	px := f.stubPrice
	step := px * 0.0001
	for i := 0; ; i++ {
		ts := time.Now().UTC()
		// walk up for ten ticks, then back down
		if (i/10)%2 == 0 {
			px += step
		} else {
			px -= step
		}
		for _, s := range f.symbols() {
			if err := f.emit(ctx, out, s, quoteAround(px, 0.0005), ts); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// quoteAround builds a one-lot quote with the given half-spread around mid.
func quoteAround(mid, halfSpread float64) model.ReferencePrice {
	return model.ReferencePrice{
		BidPrice: mid * (1 - halfSpread),
		AskPrice: mid * (1 + halfSpread),
		BidSize:  1,
		AskSize:  1,
		MidPrice: mid,
	}
}

// quoteFromBook derives the mid from best bid and ask; ok is false when either side is missing.
func quoteFromBook(bid, bidQty, ask, askQty float64) (model.ReferencePrice, bool) {
	if bid <= 0 || ask <= 0 {
		return model.ReferencePrice{}, false
	}
	return model.ReferencePrice{
		BidPrice: bid,
		AskPrice: ask,
		BidSize:  bidQty,
		AskSize:  askQty,
		MidPrice: (bid + ask) / 2,
	}, true
}

// PriceSink stores the latest reference quote per market.
type PriceSink interface {
	SetReferencePrice(marketID string, price model.ReferencePrice)
}

// Publish copies updates into sink until in closes or ctx ends. Later quotes replace earlier ones.
func Publish(ctx context.Context, in <-chan Update, sink PriceSink, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-in:
			if !ok {
				return nil
			}
			sink.SetReferencePrice(u.MarketID, u.Price)
			metrics.ReferenceUpdates.WithLabelValues(u.MarketID).Inc()
			log.Trace().Str("market", u.MarketID).Float64("mid", u.Price.MidPrice).Msg("reference price")
		}
	}
}
