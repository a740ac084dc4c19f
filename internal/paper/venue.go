// Package paper simulates an exchange venue by applying instructions straight to the local state cache.
package paper

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/execution"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

// Recorder captures every instruction the venue accepts.
type Recorder interface {
	Record(Record)
}

// Record kinds.
const (
	KindOrder     = "order"
	KindCancel    = "cancel"
	KindBatch     = "batch"
	KindLiquidity = "liquidity"
)

// Record is one accepted instruction.
type Record struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	MarketID string    `json:"marketId"`
	Payload  any       `json:"payload"`
}

// Venue is an execution.Client that echoes instructions back into the cache the way the exchange
// stream would: submitted orders rest as active, cancels remove them, commitments replace the party's LP.
type Venue struct {
	state     *cache.State
	log       zerolog.Logger
	recorders []Recorder
	now       func() time.Time
}

var _ execution.Client = (*Venue)(nil)

// NewVenue builds a paper venue over state.
func NewVenue(state *cache.State, log zerolog.Logger, recorders ...Recorder) *Venue {
	return &Venue{
		state:     state,
		log:       log.With().Str("venue", execution.ProviderPaper).Logger(),
		recorders: recorders,
		now:       time.Now,
	}
}

// SubmitOrder rests the order under a fresh ID.
func (v *Venue) SubmitOrder(_ context.Context, order execution.OrderSubmission) error {
	o, err := toOrder(order)
	if err != nil {
		return err
	}
	v.state.Apply(cache.Delta{Order: &o})
	v.record(KindOrder, order.MarketID, order)
	v.log.Debug().Str("market", order.MarketID).Str("order", o.ID).Str("side", string(o.Side)).Msg("order resting")
	return nil
}

// CancelOrder removes a resting order. Cancelling an unknown order is not an error.
func (v *Venue) CancelOrder(_ context.Context, marketID, orderID string) error {
	v.state.Apply(cache.Delta{RemoveOrder: orderID})
	v.record(KindCancel, marketID, map[string]string{"orderId": orderID})
	return nil
}

// SubmitBatch validates every submission first so a bad batch changes nothing.
func (v *Venue) SubmitBatch(_ context.Context, batch execution.OrderBatchInstruction) error {
	orders := make([]model.Order, 0, len(batch.Submissions))
	for _, s := range batch.Submissions {
		o, err := toOrder(s)
		if err != nil {
			return err
		}
		orders = append(orders, o)
	}
	for _, id := range batch.Cancellations {
		v.state.Apply(cache.Delta{RemoveOrder: id})
	}
	for i := range orders {
		v.state.Apply(cache.Delta{Order: &orders[i]})
	}
	v.record(KindBatch, batch.MarketID, batch)
	v.log.Info().Str("market", batch.MarketID).Int("cancelled", len(batch.Cancellations)).Int("submitted", len(orders)).Msg("batch applied")
	return nil
}

// SubmitLiquidityProvision replaces the party's commitment and moves the market's supplied stake by the delta.
func (v *Venue) SubmitLiquidityProvision(_ context.Context, lp execution.LiquidityProvisionInstruction) error {
	amount, err := parseAmount("commitment", lp.CommitmentAmount)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	previous := new(big.Int)
	if cur, ok := v.state.LiquidityProvision(lp.MarketID, lp.PartyID); ok {
		id = cur.ID
		if cur.CommitmentAmount != nil {
			previous = cur.CommitmentAmount
		}
	}
	if amount.Sign() == 0 {
		v.state.Apply(cache.Delta{RemoveLiquidityProvision: &cache.PartyMarket{MarketID: lp.MarketID, PartyID: lp.PartyID}})
	} else {
		v.state.Apply(cache.Delta{LiquidityProvision: &model.LiquidityProvision{
			ID:               id,
			MarketID:         lp.MarketID,
			PartyID:          lp.PartyID,
			CommitmentAmount: amount,
			Fee:              lp.Fee,
			Buys:             lp.Buys,
			Sells:            lp.Sells,
		}})
	}
	if md, ok := v.state.MarketData.Get(lp.MarketID); ok {
		supplied := new(big.Int)
		if md.SuppliedStake != nil {
			supplied.Set(md.SuppliedStake)
		}
		supplied.Add(supplied, amount).Sub(supplied, previous)
		if supplied.Sign() < 0 {
			supplied.SetInt64(0)
		}
		md.SuppliedStake = supplied
		v.state.Apply(cache.Delta{MarketData: &md})
	}
	v.record(KindLiquidity, lp.MarketID, lp)
	v.log.Info().Str("market", lp.MarketID).Str("commitment", lp.CommitmentAmount).Str("fee", lp.Fee).Msg("liquidity provision applied")
	return nil
}

// GetPosition reads the party's position from the cache.
func (v *Venue) GetPosition(_ context.Context, marketID, partyID string) (model.Position, error) {
	p, ok := v.state.Position(marketID, partyID)
	if !ok {
		return model.Position{}, fmt.Errorf("%w: position %s/%s", model.ErrNotFound, marketID, partyID)
	}
	return p, nil
}

func (v *Venue) record(kind, marketID string, payload any) {
	rec := Record{Time: v.now().UTC(), Kind: kind, MarketID: marketID, Payload: payload}
	for _, r := range v.recorders {
		r.Record(rec)
	}
}

func toOrder(s execution.OrderSubmission) (model.Order, error) {
	price, err := parseAmount("price", s.Price)
	if err != nil {
		return model.Order{}, err
	}
	size, err := parseAmount("size", s.Size)
	if err != nil {
		return model.Order{}, err
	}
	if price.Sign() <= 0 || size.Sign() <= 0 {
		return model.Order{}, fmt.Errorf("order %s %s@%s: price and size must be positive", s.Side, s.Size, s.Price)
	}
	if s.Side != model.Buy && s.Side != model.Sell {
		return model.Order{}, fmt.Errorf("unknown order side %q", s.Side)
	}
	return model.Order{
		ID:        uuid.NewString(),
		MarketID:  s.MarketID,
		PartyID:   s.PartyID,
		Side:      s.Side,
		Price:     price,
		Size:      size,
		Remaining: new(big.Int).Set(size),
		Status:    model.OrderStatusActive,
		Reference: s.Reference,
	}, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative %s %q", field, s)
	}
	return v, nil
}
