package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

type binanceRESTTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

func (f *Feed) runBinanceREST(ctx context.Context, out chan<- Update) error {
	if len(f.symbols()) == 0 {
		return fmt.Errorf("binance rest feed requires at least one symbol")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	if err := f.pollBinanceREST(ctx, client, out); err != nil && !errors.Is(err, context.Canceled) {
		f.log.Warn().Err(err).Msg("initial book ticker poll failed")
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.pollBinanceREST(ctx, client, out); err != nil && !errors.Is(err, context.Canceled) {
				f.log.Warn().Err(err).Msg("book ticker poll failed")
			}
		}
	}
}

func (f *Feed) pollBinanceREST(ctx context.Context, client *http.Client, out chan<- Update) error {
	for _, sym := range f.symbols() {
		px, err := f.fetchBookTicker(ctx, client, sym)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Str("symbol", sym).Msg("book ticker fetch failed")
			continue
		}
		if err := f.emit(ctx, out, sym, px, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feed) fetchBookTicker(ctx context.Context, client *http.Client, symbol string) (model.ReferencePrice, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", f.restBaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ReferencePrice{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.ReferencePrice{}, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.ReferencePrice{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload binanceRESTTicker
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.ReferencePrice{}, fmt.Errorf("decode response: %w", err)
	}
	return parseBookTicker(payload.BidPrice, payload.BidQty, payload.AskPrice, payload.AskQty)
}

// parseBookTicker converts Binance's string-encoded top of book into a reference quote.
func parseBookTicker(bid, bidQty, ask, askQty string) (model.ReferencePrice, error) {
	var vals [4]float64
	for i, raw := range []string{bid, bidQty, ask, askQty} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.ReferencePrice{}, fmt.Errorf("parse %q: %w", raw, err)
		}
		vals[i] = v
	}
	px, ok := quoteFromBook(vals[0], vals[1], vals[2], vals[3])
	if !ok {
		return model.ReferencePrice{}, fmt.Errorf("empty book side: bid %s ask %s", bid, ask)
	}
	return px, nil
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
