package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

func waitUpdate(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestFeedRunEmitsStubQuotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, []Binding{{MarketID: "m1", Symbol: "btcusdt"}}, zerolog.Nop(),
		WithPollInterval(10*time.Millisecond), WithStubPrice(20000))
	updates := make(chan Update, 1)
	go func() { _ = feed.Run(ctx, updates) }()

	u := waitUpdate(t, updates)
	if u.MarketID != "m1" || u.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected update %+v", u)
	}
	if u.Price.BidPrice >= u.Price.MidPrice || u.Price.AskPrice <= u.Price.MidPrice {
		t.Fatalf("quote does not straddle mid: %+v", u.Price)
	}
	if u.Price.MidPrice < 19990 || u.Price.MidPrice > 20010 {
		t.Fatalf("stub mid drifted too far: %.2f", u.Price.MidPrice)
	}
}

func TestSharedSymbolFansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, []Binding{{"m1", "BTCUSDT"}, {"m2", "BTCUSDT"}, {"", "ETHUSDT"}}, zerolog.Nop(),
		WithPollInterval(time.Hour))
	updates := make(chan Update, 4)
	go func() { _ = feed.Run(ctx, updates) }()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[waitUpdate(t, updates).MarketID] = true
	}
	if !seen["m1"] || !seen["m2"] {
		t.Fatalf("expected both markets, got %v", seen)
	}
}

func TestParseBinanceSymbol(t *testing.T) {
	cases := map[string]string{
		"btcusdt@bookTicker": "BTCUSDT",
		"ethusdt@aggTrade":   "ETHUSDT",
		"dogeusdt":           "DOGEUSDT",
		"":                   "",
	}
	for stream, expected := range cases {
		if got := parseBinanceSymbol(stream); got != expected {
			t.Fatalf("expected %s got %s", expected, got)
		}
	}
}

func TestParseBookTicker(t *testing.T) {
	px, err := parseBookTicker("100.0", "2", "102.0", "3")
	if err != nil {
		t.Fatalf("parseBookTicker error: %v", err)
	}
	if px.MidPrice != 101 || px.BidSize != 2 || px.AskSize != 3 {
		t.Fatalf("unexpected quote %+v", px)
	}
	if _, err := parseBookTicker("0", "0", "102", "1"); err == nil {
		t.Fatalf("expected empty book error")
	}
	if _, err := parseBookTicker("x", "1", "102", "1"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRunBinanceStreamsBookTicker(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "btcusdt@bookTicker") {
			http.Error(w, "bad stream "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"19999.00","B":"1.5","a":"20001.00","A":"2.5"}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderBinance, []Binding{{MarketID: "m1", Symbol: "BTCUSDT"}}, zerolog.Nop(),
		WithStreamURL("ws"+strings.TrimPrefix(server.URL, "http")))
	updates := make(chan Update, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- feed.Run(ctx, updates) }()

	u := waitUpdate(t, updates)
	if u.MarketID != "m1" || u.Price.MidPrice != 20000 || u.Price.BidSize != 1.5 {
		t.Fatalf("unexpected update %+v", u)
	}
	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("feed returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("feed did not stop after cancel")
	}
}

func TestRunBinanceRequiresSymbols(t *testing.T) {
	feed := NewFeed(ProviderBinance, nil, zerolog.Nop())
	if err := feed.Run(context.Background(), make(chan Update)); err == nil {
		t.Fatalf("expected missing symbol error")
	}
}

func TestRunBinanceRESTPollsBookTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/bookTicker" || r.URL.Query().Get("symbol") != "ETHUSDT" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","bidPrice":"2999.5","bidQty":"4","askPrice":"3000.5","askQty":"5"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderBinanceREST, []Binding{{MarketID: "m2", Symbol: "ethusdt"}}, zerolog.Nop(),
		WithRESTBaseURL(server.URL), WithPollInterval(50*time.Millisecond))
	updates := make(chan Update, 1)
	go func() { _ = feed.Run(ctx, updates) }()

	u := waitUpdate(t, updates)
	if u.MarketID != "m2" || u.Price.MidPrice != 3000 {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestPublishStoresLatestQuote(t *testing.T) {
	state := cache.NewState()
	in := make(chan Update, 2)
	in <- Update{MarketID: "m1", Price: model.ReferencePrice{MidPrice: 10}}
	in <- Update{MarketID: "m1", Price: model.ReferencePrice{MidPrice: 11}}
	close(in)

	if err := Publish(context.Background(), in, state, zerolog.Nop()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	px, ok := state.ReferencePrice("m1")
	if !ok || px.MidPrice != 11 {
		t.Fatalf("expected latest mid 11, got %+v", px)
	}
}
