// Package domain defines the value types shared between the dashboard
// server, the push channel, and the terminal client.
package domain

import "fmt"

// Defaults for the dashboard selection state.
const (
	DefaultSymbol   = "BTCUSDT"
	DefaultInterval = "1m"
)

// Intervals lists the chart intervals offered by the dashboard, in the
// order their buttons are rendered.
var Intervals = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// Ticker is the latest 24h price statistics for a symbol.
type Ticker struct {
	Symbol             string `json:"symbol"`
	Price              string `json:"price"`
	PriceChangePercent string `json:"priceChangePercent"`
	High24h            string `json:"high24h"`
	Low24h             string `json:"low24h"`
	Volume24h          string `json:"volume24h"`
}

// PriceLevel is one entry on a side of the order book.
type PriceLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// OrderBook is a wholesale snapshot of the top of the book for a symbol.
type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// Trade is a single public trade for the recent-trades list.
type Trade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"` // Unix ms
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// Candle is one historical price bar.
type Candle struct {
	OpenTime  int64  `json:"openTime"` // Unix ms
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"closeTime"`
}

// AssetBalance is the free/locked balance of a single asset.
type AssetBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountSnapshot is the account state rendered by the balance and
// portfolio panels.
type AccountSnapshot struct {
	UpdateTime int64          `json:"updateTime"` // Unix ms
	Balances   []AssetBalance `json:"balances"`
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType is the execution style of an order. TWAP is executed by the
// server as a series of market orders.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
	OrderTypeTWAP      OrderType = "TWAP"
)

// OrderStatus is the lifecycle state reported for an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Order is an order row as displayed in the open-orders and history lists.
type Order struct {
	OrderID     int64       `json:"orderId"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Status      OrderStatus `json:"status"`
	Price       string      `json:"price"`
	OrigQty     string      `json:"origQty"`
	ExecutedQty string      `json:"executedQty"`
	Time        int64       `json:"time"` // Unix ms
}

// OrderRequest is a manual order submission from the dashboard.
type OrderRequest struct {
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Type         string  `json:"type"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price,omitempty"`
	StopPrice    float64 `json:"stopPrice,omitempty"`
	TwapDuration int     `json:"twapDuration,omitempty"` // minutes
}

// Validate checks that the request carries everything its order type needs.
func (r *OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("missing field: symbol")
	}
	if r.Side == "" {
		return fmt.Errorf("missing field: side")
	}
	if r.Type == "" {
		return fmt.Errorf("missing field: type")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	switch OrderSide(r.Side) {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("unknown side %q", r.Side)
	}
	switch OrderType(r.Type) {
	case OrderTypeMarket, OrderTypeTWAP:
	case OrderTypeLimit:
		if r.Price <= 0 {
			return fmt.Errorf("limit order requires a price")
		}
	case OrderTypeStopLimit:
		if r.Price <= 0 {
			return fmt.Errorf("stop-limit order requires a price")
		}
		if r.StopPrice <= 0 {
			return fmt.Errorf("stop-limit order requires a stop price")
		}
	default:
		return fmt.Errorf("unknown order type %q", r.Type)
	}
	return nil
}
