// Package execution defines the instructions sent to the exchange and the venue clients that carry them.
package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

const (
	// ProviderLog only logs instructions (dry run).
	ProviderLog = "log"
	// ProviderPaper applies instructions to the local state cache.
	ProviderPaper = "paper"
	// ProviderGateway forwards instructions to an HTTP signing gateway.
	ProviderGateway = "gateway"
)

// LiquidityProvisionInstruction submits or amends a party's liquidity commitment.
// CommitmentAmount is an integer in settlement-asset decimals; Fee is a decimal fraction.
type LiquidityProvisionInstruction struct {
	MarketID         string              `json:"marketId"`
	PartyID          string              `json:"partyId"`
	CommitmentAmount string              `json:"commitmentAmount"`
	Fee              string              `json:"fee"`
	Buys             []model.PeggedOrder `json:"buys"`
	Sells            []model.PeggedOrder `json:"sells"`
	Reference        string              `json:"reference,omitempty"`
}

// OrderSubmission is a limit order with integer price and size in market decimals.
type OrderSubmission struct {
	MarketID  string     `json:"marketId"`
	PartyID   string     `json:"partyId"`
	Side      model.Side `json:"side"`
	Price     string     `json:"price"`
	Size      string     `json:"size"`
	Reference string     `json:"reference,omitempty"`
}

// OrderBatchInstruction cancels and submits orders in one transaction.
type OrderBatchInstruction struct {
	MarketID      string            `json:"marketId"`
	PartyID       string            `json:"partyId"`
	Cancellations []string          `json:"cancellations"`
	Submissions   []OrderSubmission `json:"submissions"`
}

// Empty reports whether the batch carries nothing to do.
func (b OrderBatchInstruction) Empty() bool {
	return len(b.Cancellations) == 0 && len(b.Submissions) == 0
}

// Client is the capability set every venue implements.
type Client interface {
	SubmitOrder(ctx context.Context, order OrderSubmission) error
	CancelOrder(ctx context.Context, marketID, orderID string) error
	SubmitBatch(ctx context.Context, batch OrderBatchInstruction) error
	SubmitLiquidityProvision(ctx context.Context, lp LiquidityProvisionInstruction) error
	GetPosition(ctx context.Context, marketID, partyID string) (model.Position, error)
}

// PositionReader looks up positions the process already knows about.
type PositionReader interface {
	Position(marketID, partyID string) (model.Position, bool)
}

// LogClient records instructions in the log without sending them anywhere.
type LogClient struct {
	log       zerolog.Logger
	positions PositionReader
}

// NewLogClient wraps a zerolog logger as a dry-run venue. Positions are answered from positions,
// which may be nil when nothing is cached.
func NewLogClient(log zerolog.Logger, positions PositionReader) *LogClient {
	return &LogClient{log: log.With().Str("venue", ProviderLog).Logger(), positions: positions}
}

// SubmitOrder logs the order.
func (c *LogClient) SubmitOrder(_ context.Context, order OrderSubmission) error {
	c.log.Info().Str("market", order.MarketID).Str("side", string(order.Side)).Str("px", order.Price).Str("size", order.Size).Msg("submit order (dry run)")
	return nil
}

// CancelOrder logs the cancellation.
func (c *LogClient) CancelOrder(_ context.Context, marketID, orderID string) error {
	c.log.Info().Str("market", marketID).Str("order", orderID).Msg("cancel order (dry run)")
	return nil
}

// SubmitBatch logs the batch contents.
func (c *LogClient) SubmitBatch(_ context.Context, batch OrderBatchInstruction) error {
	c.log.Info().
		Str("market", batch.MarketID).
		Strs("cancel", batch.Cancellations).
		Str("submit", describe(batch.Submissions)).
		Msg("submit batch (dry run)")
	return nil
}

// SubmitLiquidityProvision logs the commitment.
func (c *LogClient) SubmitLiquidityProvision(_ context.Context, lp LiquidityProvisionInstruction) error {
	c.log.Info().
		Str("market", lp.MarketID).
		Str("commitment", lp.CommitmentAmount).
		Str("fee", lp.Fee).
		Int("buys", len(lp.Buys)).
		Int("sells", len(lp.Sells)).
		Msg("submit liquidity provision (dry run)")
	return nil
}

// GetPosition reports the cached position; a dry run never trades, so it reflects the seeded or streamed state.
func (c *LogClient) GetPosition(_ context.Context, marketID, partyID string) (model.Position, error) {
	if c.positions != nil {
		if p, ok := c.positions.Position(marketID, partyID); ok {
			return p, nil
		}
	}
	return model.Position{}, fmt.Errorf("%w: position %s/%s", model.ErrNotFound, marketID, partyID)
}

func describe(subs []OrderSubmission) string {
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = fmt.Sprintf("%s %s@%s", s.Side, s.Size, s.Price)
	}
	return strings.Join(parts, ",")
}
