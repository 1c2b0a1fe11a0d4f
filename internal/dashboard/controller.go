package dashboard

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tradedash/internal/domain"
	"tradedash/internal/push"
)

const (
	// TradeListCap bounds the recent-trades list.
	TradeListCap = 20
	// chartThrottle is the minimum wall-clock interval between chart
	// mutations driven by price updates. The ticker is never throttled.
	chartThrottle = time.Second

	maxNotices = 5
)

// NoticeLevel classifies a transient notification.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a transient notification surfaced to the user.
type Notice struct {
	Level NoticeLevel
	Text  string
	At    time.Time
}

// Emitter sends requests over the push channel. The controller drives it
// when it needs a subscription change or a server-side refresh.
type Emitter interface {
	Emit(evt push.Event) error
}

// TradeRow is one rendered line of the recent-trades panel.
type TradeRow struct {
	Price string
	Qty   string
	Time  string
	Sell  bool // buyer-maker trades take the sell styling
}

// IntervalButton is the state of one chart-interval button.
type IntervalButton struct {
	Value  string
	Active bool
}

// Controller owns all dashboard state and reacts to push events and user
// selections. It is single-writer: every method must be called from the
// UI event loop, mirroring how the underlying state is rendered.
type Controller struct {
	log     *slog.Logger
	emitter Emitter
	loc     *time.Location
	now     func() time.Time

	symbol    string
	interval  string
	connected bool
	status    string

	ticker       *push.PriceUpdate
	book         *domain.OrderBook
	trades       []domain.Trade
	account      *domain.AccountSnapshot
	openOrders   []domain.Order
	orderHistory []domain.Order

	historyFilter domain.OrderStatus // empty = all
	side          domain.OrderSide
	orderType     domain.OrderType

	chart        *ChartSeries
	lastChartMut time.Time
	chartMutated bool

	pendingOrder bool
	notices      []Notice
}

// New constructs a controller with default selection state and an empty
// chart. loc controls time labels; nil means local time.
func New(log *slog.Logger, emitter Emitter, loc *time.Location) *Controller {
	return &Controller{
		log:       log,
		emitter:   emitter,
		loc:       loc,
		now:       time.Now,
		symbol:    domain.DefaultSymbol,
		interval:  domain.DefaultInterval,
		status:    "Disconnected",
		side:      domain.SideBuy,
		orderType: domain.OrderTypeMarket,
		chart:     NewChartSeries(loc),
	}
}

// HandleEvent dispatches one inbound push event. Exactly one handler per
// event name; payload decode failures are logged and otherwise ignored.
func (c *Controller) HandleEvent(evt push.Event) {
	switch evt.Type {
	case push.EventConnect:
		c.connected = true
		c.status = "Connected"
		c.Notify(NoticeSuccess, "Connected to server")
		c.subscribe(c.symbol)

	case push.EventDisconnect:
		c.connected = false
		c.status = "Disconnected"
		c.Notify(NoticeError, "Disconnected from server")

	case push.EventPriceUpdate:
		var p push.PriceUpdate
		if err := evt.Decode(&p); err != nil {
			c.log.Warn("bad price update", "error", err)
			return
		}
		c.ticker = &p
		c.appendChartPoint(p)

	case push.EventOrderBookUpdate:
		var book domain.OrderBook
		if err := evt.Decode(&book); err != nil {
			c.log.Warn("bad order book update", "error", err)
			return
		}
		c.book = &book

	case push.EventRecentTrades:
		// A missing payload means no trades, same as an empty list.
		var trades []domain.Trade
		if len(evt.Data) > 0 {
			if err := evt.Decode(&trades); err != nil {
				c.log.Warn("bad recent trades", "error", err)
				return
			}
		}
		if len(trades) > TradeListCap {
			trades = trades[:TradeListCap]
		}
		c.trades = trades

	case push.EventAccountUpdate:
		var snap domain.AccountSnapshot
		if err := evt.Decode(&snap); err != nil {
			c.log.Warn("bad account update", "error", err)
			return
		}
		c.account = &snap

	case push.EventOrdersUpdate:
		var orders []domain.Order
		if err := evt.Decode(&orders); err != nil {
			c.log.Warn("bad orders update", "error", err)
			return
		}
		c.openOrders = orders

	case push.EventOrderHistory:
		var orders []domain.Order
		if err := evt.Decode(&orders); err != nil {
			c.log.Warn("bad order history", "error", err)
			return
		}
		c.orderHistory = orders

	case push.EventOrderResponse:
		var resp push.OrderResponse
		if err := evt.Decode(&resp); err != nil {
			c.log.Warn("bad order response", "error", err)
			return
		}
		c.pendingOrder = false
		if resp.Success {
			c.Notify(NoticeSuccess, "Order placed: #"+strconv.FormatInt(resp.OrderID, 10))
			c.RequestOrdersUpdate()
		} else {
			c.Notify(NoticeError, "Order failed: "+resp.Error)
		}

	default:
		c.log.Debug("unhandled push event", "type", evt.Type)
	}
}

// appendChartPoint applies the throttled incremental chart mutation for a
// price update. It is a no-op while the chart is not built, when the
// payload carries no usable price, or inside the throttle window.
func (c *Controller) appendChartPoint(p push.PriceUpdate) {
	if c.chart == nil || p.Price == "" {
		return
	}
	price, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return
	}
	now := c.now()
	if c.chartMutated && now.Sub(c.lastChartMut) < chartThrottle {
		return
	}
	c.chart.Append(TimeLabel(now.UnixMilli(), c.loc), price)
	c.lastChartMut = now
	c.chartMutated = true
}

// SetSymbol switches the active symbol and renews the push subscription.
// The caller is responsible for triggering the full chart reload.
// Returns false when the symbol did not change.
func (c *Controller) SetSymbol(symbol string) bool {
	if symbol == "" || symbol == c.symbol {
		return false
	}
	c.symbol = symbol
	c.subscribe(symbol)
	return true
}

// SetInterval switches the chart interval. Returns false for unknown
// intervals or no-op changes; the caller triggers the chart reload.
func (c *Controller) SetInterval(interval string) bool {
	if interval == c.interval {
		return false
	}
	known := false
	for _, iv := range domain.Intervals {
		if iv == interval {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	c.interval = interval
	return true
}

// IntervalButtons returns the interval buttons in render order; exactly
// one is active, the one matching the current interval.
func (c *Controller) IntervalButtons() []IntervalButton {
	buttons := make([]IntervalButton, len(domain.Intervals))
	for i, iv := range domain.Intervals {
		buttons[i] = IntervalButton{Value: iv, Active: iv == c.interval}
	}
	return buttons
}

// ApplyChartData replaces the chart wholesale from a full history fetch.
func (c *Controller) ApplyChartData(candles []domain.Candle) {
	c.chart.Reload(candles)
}

// ChartReloadFailed records a failed chart fetch. Unlike the other error
// paths this is silent to the user.
func (c *Controller) ChartReloadFailed(err error) {
	c.log.Error("loading chart data", "symbol", c.symbol, "interval", c.interval, "error", err)
}

// ApplyInitialData installs the startup snapshots. A failure anywhere in
// the initial load collapses to a single generic notification.
func (c *Controller) ApplyInitialData(account *domain.AccountSnapshot, history []domain.Order, err error) {
	if err != nil {
		c.log.Error("loading initial data", "error", err)
		c.Notify(NoticeError, "Failed to load initial data")
		return
	}
	if account != nil {
		c.account = account
	}
	if history != nil {
		c.orderHistory = history
	}
}

// RequestUpdates asks the server for fresh account and order snapshots.
// It backs the periodic update requester armed at startup.
func (c *Controller) RequestUpdates() {
	if err := c.emitter.Emit(push.Event{Type: push.EventRequestAccountUpdate}); err != nil {
		c.log.Debug("account update request failed", "error", err)
	}
	c.RequestOrdersUpdate()
}

// RequestOrdersUpdate asks the server for a fresh open-orders snapshot.
func (c *Controller) RequestOrdersUpdate() {
	if err := c.emitter.Emit(push.Event{Type: push.EventRequestOrdersUpdate}); err != nil {
		c.log.Debug("orders update request failed", "error", err)
	}
}

func (c *Controller) subscribe(symbol string) {
	evt, err := push.NewEvent(push.EventSubscribeSymbol, push.SubscribeSymbol{Symbol: symbol})
	if err != nil {
		c.log.Warn("building subscribe request", "error", err)
		return
	}
	if err := c.emitter.Emit(evt); err != nil {
		c.log.Warn("subscribe request failed", "symbol", symbol, "error", err)
	}
}

// SetSide selects the order-form side tab. Local state only.
func (c *Controller) SetSide(side domain.OrderSide) { c.side = side }

// CycleOrderType advances the order-type selector. Local state only.
func (c *Controller) CycleOrderType() domain.OrderType {
	order := []domain.OrderType{
		domain.OrderTypeMarket,
		domain.OrderTypeLimit,
		domain.OrderTypeStopLimit,
		domain.OrderTypeTWAP,
	}
	for i, ot := range order {
		if ot == c.orderType {
			c.orderType = order[(i+1)%len(order)]
			return c.orderType
		}
	}
	c.orderType = domain.OrderTypeMarket
	return c.orderType
}

// PriceFill returns the current ticker price for the click-to-fill
// affordance on the order form.
func (c *Controller) PriceFill() (string, bool) {
	if c.ticker == nil || c.ticker.Price == "" {
		return "", false
	}
	return c.ticker.Price, true
}

// SetHistoryFilter restricts the order-history view to one status;
// empty shows everything.
func (c *Controller) SetHistoryFilter(status domain.OrderStatus) {
	c.historyFilter = status
}

// OrderSubmitted flags an in-flight order; cleared by the order_response
// event in both outcomes.
func (c *Controller) OrderSubmitted() { c.pendingOrder = true }

// Notify appends a transient notification, keeping only the most recent.
func (c *Controller) Notify(level NoticeLevel, text string) {
	c.notices = append(c.notices, Notice{Level: level, Text: text, At: c.now()})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

// LastNotice returns the most recent notification, if any.
func (c *Controller) LastNotice() (Notice, bool) {
	if len(c.notices) == 0 {
		return Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}

// TradeRows maps the trade list to display rows: price to two decimals,
// quantity to four, localized time of day, buyer-maker taking the sell
// styling. Payload order is preserved.
func (c *Controller) TradeRows() []TradeRow {
	rows := make([]TradeRow, len(c.trades))
	for i, tr := range c.trades {
		rows[i] = TradeRow{
			Price: FormatPrice(tr.Price),
			Qty:   FormatQty(tr.Qty),
			Time:  TimeLabel(tr.Time, c.loc),
			Sell:  tr.IsBuyerMaker,
		}
	}
	return rows
}

// PortfolioRow is one asset's aggregate position: free plus locked, with
// the quote value filled in where the live ticker can price it.
type PortfolioRow struct {
	Asset string
	Total string
	Value string
}

// PortfolioRows derives the portfolio view from the same account snapshot
// the balance view renders, independently of it.
func (c *Controller) PortfolioRows() []PortfolioRow {
	if c.account == nil {
		return nil
	}
	base, quote := splitTradingPair(c.symbol)
	var price float64
	if c.ticker != nil {
		price, _ = strconv.ParseFloat(c.ticker.Price, 64)
	}
	rows := make([]PortfolioRow, 0, len(c.account.Balances))
	for _, bal := range c.account.Balances {
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		total := free + locked
		row := PortfolioRow{
			Asset: bal.Asset,
			Total: fmt.Sprintf("%.4f", total),
		}
		switch {
		case bal.Asset == quote:
			row.Value = fmt.Sprintf("%.2f", total)
		case bal.Asset == base && price > 0:
			row.Value = fmt.Sprintf("%.2f", total*price)
		}
		rows = append(rows, row)
	}
	return rows
}

// quoteAssets lists the quote currencies a pair symbol can end in, most
// specific first.
var quoteAssets = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB"}

func splitTradingPair(symbol string) (base, quote string) {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q
		}
	}
	return symbol, ""
}

// OrderHistory returns the history rows, filtered by the active status
// filter, payload order preserved.
func (c *Controller) OrderHistory() []domain.Order {
	if c.historyFilter == "" {
		return c.orderHistory
	}
	var out []domain.Order
	for _, o := range c.orderHistory {
		if o.Status == c.historyFilter {
			out = append(out, o)
		}
	}
	return out
}

// State accessors for the view layer.

func (c *Controller) Symbol() string                    { return c.symbol }
func (c *Controller) Interval() string                  { return c.interval }
func (c *Controller) Connected() bool                   { return c.connected }
func (c *Controller) Status() string                    { return c.status }
func (c *Controller) Ticker() *push.PriceUpdate         { return c.ticker }
func (c *Controller) Book() *domain.OrderBook           { return c.book }
func (c *Controller) Account() *domain.AccountSnapshot  { return c.account }
func (c *Controller) OpenOrders() []domain.Order        { return c.openOrders }
func (c *Controller) Chart() *ChartSeries               { return c.chart }
func (c *Controller) Side() domain.OrderSide            { return c.side }
func (c *Controller) OrderType() domain.OrderType       { return c.orderType }
func (c *Controller) HistoryFilter() domain.OrderStatus { return c.historyFilter }
func (c *Controller) Pending() bool                     { return c.pendingOrder }
