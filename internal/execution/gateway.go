package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

const defaultGatewayTimeout = 8 * time.Second

// GatewayClient posts instructions as JSON to a gateway that signs and broadcasts them.
type GatewayClient struct {
	base  string
	token string
	http  *http.Client
	log   zerolog.Logger
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) GatewayOption {
	return func(g *GatewayClient) { g.token = token }
}

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *GatewayClient) {
		if d > 0 {
			g.http.Timeout = d
		}
	}
}

// NewGatewayClient targets the gateway rooted at base.
func NewGatewayClient(base string, log zerolog.Logger, opts ...GatewayOption) *GatewayClient {
	g := &GatewayClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: defaultGatewayTimeout},
		log:  log.With().Str("venue", ProviderGateway).Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitOrder posts a single order.
func (g *GatewayClient) SubmitOrder(ctx context.Context, order OrderSubmission) error {
	return g.do(ctx, http.MethodPost, "/orders", order, nil)
}

// CancelOrder deletes a resting order.
func (g *GatewayClient) CancelOrder(ctx context.Context, marketID, orderID string) error {
	path := "/markets/" + url.PathEscape(marketID) + "/orders/" + url.PathEscape(orderID)
	return g.do(ctx, http.MethodDelete, path, nil, nil)
}

// SubmitBatch posts cancellations and submissions as one batch.
func (g *GatewayClient) SubmitBatch(ctx context.Context, batch OrderBatchInstruction) error {
	return g.do(ctx, http.MethodPost, "/orders/batch", batch, nil)
}

// SubmitLiquidityProvision posts a commitment submission or amendment.
func (g *GatewayClient) SubmitLiquidityProvision(ctx context.Context, lp LiquidityProvisionInstruction) error {
	return g.do(ctx, http.MethodPost, "/liquidity-provisions", lp, nil)
}

type positionResponse struct {
	MarketID   string `json:"marketId"`
	PartyID    string `json:"partyId"`
	OpenVolume int64  `json:"openVolume,string"`
	EntryPrice string `json:"averageEntryPrice"`
}

// GetPosition queries the gateway for a party's position.
func (g *GatewayClient) GetPosition(ctx context.Context, marketID, partyID string) (model.Position, error) {
	q := url.Values{}
	q.Set("marketId", marketID)
	q.Set("partyId", partyID)
	var out positionResponse
	if err := g.do(ctx, http.MethodGet, "/positions?"+q.Encode(), nil, &out); err != nil {
		return model.Position{}, err
	}
	entry, ok := new(big.Int).SetString(out.EntryPrice, 10)
	if !ok {
		entry = new(big.Int)
	}
	return model.Position{MarketID: out.MarketID, PartyID: out.PartyID, OpenVolume: out.OpenVolume, EntryPrice: entry}, nil
}

func (g *GatewayClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: gateway %s %s", model.ErrNotFound, method, path)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	g.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("gateway call")
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
