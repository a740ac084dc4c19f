package strategy

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/decimals"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/metrics"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
	"github.com/MM0819/vega-market-maker-sub000/internal/pricing"
	"github.com/MM0819/vega-market-maker-sub000/internal/probability"
)

// QuotePlanner keeps the party's resting quotes in line with the skewed pool curve.
type QuotePlanner struct {
	deps Deps
}

// NewQuotePlanner builds a planner over deps.
func NewQuotePlanner(deps Deps) *QuotePlanner { return &QuotePlanner{deps: deps} }

// Name returns the job type served by the planner.
func (p *QuotePlanner) Name() string { return KindQuote }

type level struct {
	side  model.Side
	price *big.Int
	size  *big.Int
	px    float64
	qty   float64
}

func (l level) key() string { return string(l.side) + "/" + l.price.String() }

// Plan diffs the target ladder against resting self-orders and sends the difference as one batch.
func (p *QuotePlanner) Plan(ctx context.Context, marketID string) error {
	log := p.deps.Log.With().Str("job", KindQuote).Str("market", marketID).Logger()

	c, ok, err := p.deps.prepare(marketID, log)
	if err != nil || !ok {
		return err
	}
	cfg, err := p.deps.tradingConfig(ctx, marketID)
	if err != nil {
		return err
	}
	ref, err := p.deps.referencePrice(marketID)
	if err != nil {
		return err
	}

	targets := p.targets(c, cfg, ref, log)
	batch := p.diff(marketID, targets)
	if batch.Empty() {
		log.Debug().Int("levels", len(targets)).Msg("quotes already in place")
		return nil
	}
	log.Info().Int("cancel", len(batch.Cancellations)).Int("submit", len(batch.Submissions)).Msg("submitting quote batch")
	if err := p.deps.Venue.SubmitBatch(ctx, batch); err != nil {
		return fmt.Errorf("submit order batch: %w", err)
	}
	metrics.OrdersCancelled.WithLabelValues(marketID).Add(float64(len(batch.Cancellations)))
	for _, s := range batch.Submissions {
		metrics.OrdersSubmitted.WithLabelValues(marketID, string(s.Side)).Inc()
	}
	return nil
}

// targets walks both sides of the curve, shapes the steps into exchange levels and filters them.
func (p *QuotePlanner) targets(c cycle, cfg model.TradingConfig, ref model.ReferencePrice, log zerolog.Logger) []level {
	balance := c.balance.InexactFloat64()
	bidPool := balance / 2
	askPool := bidPool / ref.MidPrice
	skew := pricing.SideFactors(pricing.OpenVolumeRatio(c.exposure, askPool))
	unit := math.Pow10(-int(c.market.PositionDecimals))

	bids := pricing.BidLadder(pricing.Params{
		Scaling: skew.Bid, BidPool: bidPool, AskPool: askPool,
		QuoteRange: cfg.BidQuoteRange, OrderCount: cfg.QuoteOrderCount, InitialSize: unit,
	})
	asks := pricing.AskLadder(pricing.Params{
		Scaling: skew.Ask, BidPool: bidPool, AskPool: askPool,
		QuoteRange: cfg.AskQuoteRange, OrderCount: cfg.QuoteOrderCount, InitialSize: unit,
	})
	log.Debug().Float64("bid_skew", skew.Bid).Float64("ask_skew", skew.Ask).Int("bids", len(bids)).Int("asks", len(asks)).Msg("ladders built")

	score := p.scorer(c.market, ref, cfg)
	var out []level
	merged := map[string]int{}
	add := func(side model.Side, steps []pricing.Step, priceFactor, sizeFactor float64) {
		for _, s := range steps {
			px, qty := s.Price*priceFactor, s.Size*sizeFactor
			if score != nil && !score(side, px) {
				continue
			}
			l := level{
				side:  side,
				price: decimals.FromFloat(c.market.PriceDecimals, px),
				size:  decimals.FromFloat(c.market.PositionDecimals, qty),
				px:    px,
				qty:   qty,
			}
			if l.size.Sign() <= 0 || l.price.Sign() <= 0 {
				continue
			}
			if !p.deps.Limits.Allow(px * qty) {
				log.Warn().Str("side", string(side)).Float64("px", px).Float64("size", qty).Msg("quote exceeds notional limit, dropped")
				continue
			}
			if i, ok := merged[l.key()]; ok {
				out[i].size = new(big.Int).Add(out[i].size, l.size)
				out[i].qty += l.qty
				continue
			}
			merged[l.key()] = len(out)
			out = append(out, l)
		}
	}
	add(model.Buy, bids, 1-cfg.BBOOffset, sizeFactor(cfg.BidSizeFactor))
	add(model.Sell, asks, 1+cfg.BBOOffset, sizeFactor(cfg.AskSizeFactor))
	return out
}

// scorer returns a level filter backed by the market's risk model, or nil when none applies.
func (p *QuotePlanner) scorer(market model.Market, ref model.ReferencePrice, cfg model.TradingConfig) func(model.Side, float64) bool {
	md, ok := p.deps.State.MarketData.Get(market.ID)
	if !ok || len(md.Bounds) == 0 || !market.Risk.Valid() {
		return nil
	}
	bounds := probability.Bounds{Lower: 0, Upper: math.Inf(1)}
	for _, b := range md.Bounds {
		bounds.Lower = math.Max(bounds.Lower, decimals.ToFloat(market.PriceDecimals, b.Lower))
		bounds.Upper = math.Min(bounds.Upper, decimals.ToFloat(market.PriceDecimals, b.Upper))
	}
	if bounds.Upper <= bounds.Lower {
		return nil
	}
	bestBid, bestAsk := ref.BidPrice, ref.AskPrice
	if md.BestBid != nil && md.BestBid.Sign() > 0 {
		bestBid = decimals.ToFloat(market.PriceDecimals, md.BestBid)
	}
	if md.BestAsk != nil && md.BestAsk.Sign() > 0 {
		bestAsk = decimals.ToFloat(market.PriceDecimals, md.BestAsk)
	}
	if bestBid <= 0 {
		bestBid = ref.MidPrice
	}
	if bestAsk <= 0 {
		bestAsk = ref.MidPrice
	}
	m := probability.Model{Mu: market.Risk.Mu, Sigma: market.Risk.Sigma, Tau: market.Risk.Tau}
	return func(side model.Side, px float64) bool {
		if px < bounds.Lower || px > bounds.Upper {
			return false
		}
		if cfg.MinProbabilityOfTrading <= 0 {
			return true
		}
		prob := m.Sell(bestAsk, px, bounds)
		if side == model.Buy {
			prob = m.Buy(bestBid, px, bounds)
		}
		return prob >= cfg.MinProbabilityOfTrading
	}
}

// diff keeps resting orders that match a target level and emits the rest as cancels and submissions.
func (p *QuotePlanner) diff(marketID string, targets []level) execution.OrderBatchInstruction {
	wanted := make(map[string]bool, len(targets))
	for _, t := range targets {
		wanted[t.key()] = true
	}
	resting := map[string]bool{}
	batch := execution.OrderBatchInstruction{MarketID: marketID, PartyID: p.deps.PartyID}
	for _, o := range p.deps.State.ActiveOrders(marketID, p.deps.PartyID) {
		if o.Price == nil {
			batch.Cancellations = append(batch.Cancellations, o.ID)
			continue
		}
		k := level{side: o.Side, price: o.Price}.key()
		if !wanted[k] || resting[k] {
			batch.Cancellations = append(batch.Cancellations, o.ID)
			continue
		}
		resting[k] = true
	}
	sort.Strings(batch.Cancellations)
	for _, t := range targets {
		if resting[t.key()] {
			continue
		}
		batch.Submissions = append(batch.Submissions, execution.OrderSubmission{
			MarketID:  marketID,
			PartyID:   p.deps.PartyID,
			Side:      t.side,
			Price:     t.price.String(),
			Size:      t.size.String(),
			Reference: uuid.NewString(),
		})
	}
	return batch
}

func sizeFactor(f float64) float64 {
	if f <= 0 {
		return 1
	}
	return f
}
