package dashboard

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"tradedash/internal/domain"
	"tradedash/internal/push"
)

type fakeEmitter struct {
	events []push.Event
	err    error
}

func (f *fakeEmitter) Emit(evt push.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeEmitter) types() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func newTestController(t *testing.T) (*Controller, *fakeEmitter) {
	t.Helper()
	em := &fakeEmitter{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(log, em, time.UTC)
	return c, em
}

func TestConnectSubscribesCurrentSymbol(t *testing.T) {
	c, em := newTestController(t)

	c.HandleEvent(push.Event{Type: push.EventConnect})

	if !c.Connected() {
		t.Fatal("expected connected after connect event")
	}
	if got := c.Status(); got != "Connected" {
		t.Fatalf("status = %q, want Connected", got)
	}
	if len(em.events) != 1 || em.events[0].Type != push.EventSubscribeSymbol {
		t.Fatalf("emitted %v, want one subscribe_symbol", em.types())
	}
	var sub push.SubscribeSymbol
	if err := em.events[0].Decode(&sub); err != nil {
		t.Fatal(err)
	}
	if sub.Symbol != domain.DefaultSymbol {
		t.Fatalf("subscribed %q, want %q", sub.Symbol, domain.DefaultSymbol)
	}
}

func TestStatusTransitions(t *testing.T) {
	c, _ := newTestController(t)

	c.HandleEvent(push.Event{Type: push.EventConnect})
	c.HandleEvent(push.Event{Type: push.EventDisconnect})
	if c.Connected() || c.Status() != "Disconnected" {
		t.Fatalf("after disconnect: connected=%v status=%q", c.Connected(), c.Status())
	}
	c.HandleEvent(push.Event{Type: push.EventConnect})
	if !c.Connected() || c.Status() != "Connected" {
		t.Fatalf("after reconnect: connected=%v status=%q", c.Connected(), c.Status())
	}
}

func TestPriceUpdateThrottlesChart(t *testing.T) {
	c, _ := newTestController(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	send := func(price string) {
		c.HandleEvent(push.MustEvent(push.EventPriceUpdate, push.PriceUpdate{
			Symbol: "BTCUSDT", Price: price,
		}))
	}

	send("50000.00")
	now = now.Add(300 * time.Millisecond)
	send("50001.00")
	now = now.Add(800 * time.Millisecond)
	send("50002.00")

	// First and third updates mutate the chart; the second lands inside
	// the one second window and only refreshes the ticker.
	if got := c.Chart().Len(); got != 2 {
		t.Fatalf("chart points = %d, want 2", got)
	}
	prices := c.Chart().Prices()
	if prices[0] != 50000 || prices[1] != 50002 {
		t.Fatalf("chart prices = %v, want [50000 50002]", prices)
	}
	if got := c.Ticker().Price; got != "50002.00" {
		t.Fatalf("ticker price = %q, want last update", got)
	}
}

func TestPriceUpdateWithoutUsablePrice(t *testing.T) {
	c, _ := newTestController(t)

	c.HandleEvent(push.MustEvent(push.EventPriceUpdate, push.PriceUpdate{Symbol: "BTCUSDT"}))

	if c.Ticker() == nil {
		t.Fatal("ticker should update even without a price")
	}
	if got := c.Chart().Len(); got != 0 {
		t.Fatalf("chart points = %d, want 0", got)
	}
}

func TestRecentTradesCapped(t *testing.T) {
	c, _ := newTestController(t)

	trades := make([]domain.Trade, 25)
	for i := range trades {
		trades[i] = domain.Trade{
			ID:    int64(i),
			Price: strconv.Itoa(50000 + i),
			Qty:   "0.5",
			Time:  time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC).UnixMilli(),
		}
	}
	trades[0].IsBuyerMaker = true
	c.HandleEvent(push.MustEvent(push.EventRecentTrades, trades))

	rows := c.TradeRows()
	if len(rows) != TradeListCap {
		t.Fatalf("rows = %d, want %d", len(rows), TradeListCap)
	}
	first := rows[0]
	if first.Price != "50000.00" || first.Qty != "0.5000" || !first.Sell {
		t.Fatalf("first row = %+v", first)
	}
	if first.Time != "12:00:00" {
		t.Fatalf("first row time = %q, want 12:00:00", first.Time)
	}
	if rows[1].Sell {
		t.Fatal("non buyer-maker trade should not take sell styling")
	}
}

func TestIntervalButtonsExactlyOneActive(t *testing.T) {
	c, _ := newTestController(t)

	if !c.SetInterval("5m") {
		t.Fatal("SetInterval(5m) = false")
	}
	active := 0
	for _, b := range c.IntervalButtons() {
		if b.Active {
			active++
			if b.Value != "5m" {
				t.Fatalf("active button = %q, want 5m", b.Value)
			}
		}
	}
	if active != 1 {
		t.Fatalf("active buttons = %d, want 1", active)
	}
	if c.SetInterval("2h") {
		t.Fatal("SetInterval should reject unknown intervals")
	}
	if c.SetInterval("5m") {
		t.Fatal("SetInterval should report no change")
	}
}

func TestSetSymbolRenewsSubscription(t *testing.T) {
	c, em := newTestController(t)

	if c.SetSymbol(domain.DefaultSymbol) {
		t.Fatal("same symbol should be a no-op")
	}
	if !c.SetSymbol("ETHUSDT") {
		t.Fatal("SetSymbol(ETHUSDT) = false")
	}
	if len(em.events) != 1 || em.events[0].Type != push.EventSubscribeSymbol {
		t.Fatalf("emitted %v, want one subscribe_symbol", em.types())
	}
	var sub push.SubscribeSymbol
	if err := em.events[0].Decode(&sub); err != nil {
		t.Fatal(err)
	}
	if sub.Symbol != "ETHUSDT" {
		t.Fatalf("subscribed %q, want ETHUSDT", sub.Symbol)
	}
}

func TestOrderResponseClearsPending(t *testing.T) {
	c, em := newTestController(t)

	c.OrderSubmitted()
	if !c.Pending() {
		t.Fatal("expected pending after submit")
	}
	c.HandleEvent(push.MustEvent(push.EventOrderResponse, push.OrderResponse{
		Success: true, OrderID: 42,
	}))
	if c.Pending() {
		t.Fatal("pending should clear on success")
	}
	n, ok := c.LastNotice()
	if !ok || n.Level != NoticeSuccess || n.Text != "Order placed: #42" {
		t.Fatalf("notice = %+v ok=%v", n, ok)
	}
	if got := em.types(); len(got) != 1 || got[0] != push.EventRequestOrdersUpdate {
		t.Fatalf("emitted %v, want one orders refresh", got)
	}

	c.OrderSubmitted()
	c.HandleEvent(push.MustEvent(push.EventOrderResponse, push.OrderResponse{
		Success: false, Error: "insufficient balance",
	}))
	if c.Pending() {
		t.Fatal("pending should clear on failure too")
	}
	n, _ = c.LastNotice()
	if n.Level != NoticeError || n.Text != "Order failed: insufficient balance" {
		t.Fatalf("failure notice = %+v", n)
	}
}

func TestInitialLoadFailureIsOneNotice(t *testing.T) {
	c, _ := newTestController(t)

	c.ApplyInitialData(nil, nil, errors.New("dial tcp: refused"))

	n, ok := c.LastNotice()
	if !ok || n.Level != NoticeError || n.Text != "Failed to load initial data" {
		t.Fatalf("notice = %+v ok=%v", n, ok)
	}
	if len(c.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(c.notices))
	}
	if c.Account() != nil {
		t.Fatal("account should stay empty after a failed load")
	}
}

func TestOrderHistoryFilter(t *testing.T) {
	c, _ := newTestController(t)

	hist := []domain.Order{
		{OrderID: 1, Status: domain.OrderStatusFilled},
		{OrderID: 2, Status: domain.OrderStatusCanceled},
		{OrderID: 3, Status: domain.OrderStatusFilled},
	}
	c.HandleEvent(push.MustEvent(push.EventOrderHistory, hist))

	if got := c.OrderHistory(); len(got) != 3 {
		t.Fatalf("unfiltered = %d, want 3", len(got))
	}
	c.SetHistoryFilter(domain.OrderStatusFilled)
	got := c.OrderHistory()
	if len(got) != 2 || got[0].OrderID != 1 || got[1].OrderID != 3 {
		t.Fatalf("filtered = %+v", got)
	}
}

func TestCycleOrderType(t *testing.T) {
	c, _ := newTestController(t)

	want := []domain.OrderType{
		domain.OrderTypeLimit,
		domain.OrderTypeStopLimit,
		domain.OrderTypeTWAP,
		domain.OrderTypeMarket,
	}
	for i, w := range want {
		if got := c.CycleOrderType(); got != w {
			t.Fatalf("cycle %d = %q, want %q", i, got, w)
		}
	}
}

func TestPriceFill(t *testing.T) {
	c, _ := newTestController(t)

	if _, ok := c.PriceFill(); ok {
		t.Fatal("PriceFill should report no price before the first update")
	}
	c.HandleEvent(push.MustEvent(push.EventPriceUpdate, push.PriceUpdate{
		Symbol: "BTCUSDT", Price: "50123.45",
	}))
	got, ok := c.PriceFill()
	if !ok || got != "50123.45" {
		t.Fatalf("PriceFill = %q, %v", got, ok)
	}
}

func TestRecentTradesAbsentPayloadClearsList(t *testing.T) {
	c, _ := newTestController(t)

	c.HandleEvent(push.MustEvent(push.EventRecentTrades, []domain.Trade{
		{Price: "50000", Qty: "0.5", Time: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()},
	}))
	if got := len(c.TradeRows()); got != 1 {
		t.Fatalf("rows after first payload = %d, want 1", got)
	}

	// No payload means no trades; the placeholder case, not an error.
	c.HandleEvent(push.Event{Type: push.EventRecentTrades})
	if got := len(c.TradeRows()); got != 0 {
		t.Errorf("rows after absent payload = %d, want 0", got)
	}
}

func TestPortfolioRowsValueFromTicker(t *testing.T) {
	c, _ := newTestController(t)

	c.HandleEvent(push.MustEvent(push.EventPriceUpdate, push.PriceUpdate{
		Symbol: "BTCUSDT",
		Price:  "50000",
	}))
	c.HandleEvent(push.MustEvent(push.EventAccountUpdate, domain.AccountSnapshot{
		Balances: []domain.AssetBalance{
			{Asset: "BTC", Free: "0.5", Locked: "0.5"},
			{Asset: "USDT", Free: "1000", Locked: "0"},
			{Asset: "SOL", Free: "2", Locked: "0"},
		},
	}))

	rows := c.PortfolioRows()
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0].Asset != "BTC" || rows[0].Total != "1.0000" || rows[0].Value != "50000.00" {
		t.Errorf("BTC row = %+v, want total 1.0000 value 50000.00", rows[0])
	}
	if rows[1].Asset != "USDT" || rows[1].Value != "1000.00" {
		t.Errorf("USDT row = %+v, want value 1000.00", rows[1])
	}
	// Assets outside the active pair carry no value estimate.
	if rows[2].Asset != "SOL" || rows[2].Value != "" {
		t.Errorf("SOL row = %+v, want empty value", rows[2])
	}
}

func TestPortfolioRowsWithoutAccount(t *testing.T) {
	c, _ := newTestController(t)
	if rows := c.PortfolioRows(); rows != nil {
		t.Errorf("rows without account = %v, want nil", rows)
	}
}
