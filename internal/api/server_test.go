package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tradedash/internal/broker"
	"tradedash/internal/domain"
	"tradedash/internal/push"
	"tradedash/internal/store"
)

type fakeMarket struct {
	candles []domain.Candle
	err     error
}

func (f *fakeMarket) Klines(context.Context, string, string, int) ([]domain.Candle, error) {
	return f.candles, f.err
}

type fakeBroadcaster struct {
	events chan push.Event
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{events: make(chan push.Event, 32)}
}

func (f *fakeBroadcaster) Broadcast(evt push.Event) {
	f.events <- evt
}

func (f *fakeBroadcaster) next(t *testing.T) push.Event {
	t.Helper()
	select {
	case evt := <-f.events:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return push.Event{}
	}
}

func newTestServer(t *testing.T, market MarketData, candles store.CandleStore) (*Server, *broker.SimulatorBroker, *fakeBroadcaster) {
	t.Helper()
	sim := broker.NewSimulatorBroker()
	cast := newFakeBroadcaster()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	twap := broker.NewTwapExecutor(sim, log, 2)
	srv := NewServer(market, sim, twap, cast, candles, 20*time.Millisecond, log)
	return srv, sim, cast
}

func decodeEnvelope(t *testing.T, res *http.Response) envelope {
	t.Helper()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return env
}

func TestBalance(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeMarket{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/account/balance")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	env := decodeEnvelope(t, res)
	if !env.Success {
		t.Fatalf("success = false, error = %q", env.Error)
	}
	var snap domain.AccountSnapshot
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Balances) == 0 {
		t.Fatal("expected seeded paper balances")
	}
}

func TestKlinesCacheFallback(t *testing.T) {
	cache, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	market := &fakeMarket{candles: []domain.Candle{
		{OpenTime: 1000, Open: "1", High: "2", Low: "0.5", Close: "1.5", Volume: "10", CloseTime: 1999},
	}}
	srv, _, _ := newTestServer(t, market, cache)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// First fetch succeeds and populates the cache.
	res, err := http.Get(ts.URL + "/api/klines/BTCUSDT?interval=1m")
	if err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, res)
	res.Body.Close()
	if !env.Success {
		t.Fatalf("first fetch failed: %q", env.Error)
	}

	// Upstream goes away; the cache answers.
	market.err = errors.New("dial tcp: connection refused")
	market.candles = nil

	res, err = http.Get(ts.URL + "/api/klines/BTCUSDT?interval=1m")
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, res)
	res.Body.Close()
	if !env.Success {
		t.Fatalf("cache fallback failed: %q", env.Error)
	}
	var candles []domain.Candle
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, &candles); err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 || candles[0].Close != "1.5" {
		t.Fatalf("cached candles = %+v", candles)
	}

	// A symbol the cache has never seen still fails.
	res, err = http.Get(ts.URL + "/api/klines/ETHUSDT?interval=1m")
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, res)
	res.Body.Close()
	if env.Success {
		t.Fatal("expected failure envelope for uncached symbol")
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestPlaceMarketOrder(t *testing.T) {
	srv, sim, cast := newTestServer(t, &fakeMarket{}, nil)
	sim.SetPrice("BTCUSDT", "50000")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/api/orders/place", domain.OrderRequest{
		Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET", Quantity: 0.1,
	})
	defer res.Body.Close()

	env := decodeEnvelope(t, res)
	if !env.Success {
		t.Fatalf("place failed: %q", env.Error)
	}

	evt := cast.next(t)
	if evt.Type != push.EventOrderResponse {
		t.Fatalf("broadcast type = %q, want order_response", evt.Type)
	}
	var resp push.OrderResponse
	if err := evt.Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.OrderID == 0 {
		t.Fatalf("order response = %+v", resp)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeMarket{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/api/orders/place", domain.OrderRequest{
		Symbol: "BTCUSDT", Side: "BUY", Type: "LIMIT", Quantity: 0.1,
	})
	defer res.Body.Close()

	// Validation failures still answer 200 with a failure envelope.
	env := decodeEnvelope(t, res)
	if env.Success {
		t.Fatal("limit order without price should fail validation")
	}
	if env.Error == "" {
		t.Fatal("failure envelope should carry an error message")
	}
}

func TestPlaceTwapOrder(t *testing.T) {
	srv, sim, cast := newTestServer(t, &fakeMarket{}, nil)
	sim.SetPrice("BTCUSDT", "50000")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res := postJSON(t, ts.URL+"/api/orders/place", domain.OrderRequest{
		Symbol: "BTCUSDT", Side: "BUY", Type: "TWAP", Quantity: 1,
	})
	defer res.Body.Close()

	env := decodeEnvelope(t, res)
	if !env.Success {
		t.Fatalf("twap start failed: %q", env.Error)
	}

	// Both chunks report through the push channel.
	for i := 0; i < 2; i++ {
		evt := cast.next(t)
		var resp push.OrderResponse
		if err := evt.Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Success {
			t.Fatalf("chunk %d failed: %q", i+1, resp.Error)
		}
	}
}

func TestCancelOrder(t *testing.T) {
	srv, sim, _ := newTestServer(t, &fakeMarket{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	order, err := sim.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: "SELL", Type: "LIMIT", Quantity: 0.5, Price: 60000,
	})
	if err != nil {
		t.Fatal(err)
	}

	res := postJSON(t, ts.URL+"/api/orders/cancel", cancelRequest{
		Symbol: "BTCUSDT", OrderID: order.OrderID,
	})
	defer res.Body.Close()

	env := decodeEnvelope(t, res)
	if !env.Success {
		t.Fatalf("cancel failed: %q", env.Error)
	}

	open, _ := sim.OpenOrders(context.Background(), "BTCUSDT")
	if len(open) != 0 {
		t.Fatalf("open orders after cancel = %+v", open)
	}
}

func TestOpenOrdersEmptyList(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeMarket{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/orders/open?symbol=BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	env := decodeEnvelope(t, res)
	if !env.Success {
		t.Fatalf("open orders failed: %q", env.Error)
	}
	// Empty lists marshal as [], not null.
	list, ok := env.Data.([]any)
	if !ok || len(list) != 0 {
		t.Fatalf("data = %#v, want empty list", env.Data)
	}
}
