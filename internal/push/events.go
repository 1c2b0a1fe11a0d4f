// Package push implements the dashboard's real-time channel: the event
// vocabulary, the JSON wire envelope, the server-side hub, and the client.
package push

import (
	"encoding/json"
	"fmt"

	"tradedash/internal/domain"
)

// Event names sent server → client.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventPriceUpdate     = "price_update"
	EventOrderBookUpdate = "orderbook_update"
	EventRecentTrades    = "recent_trades"
	EventAccountUpdate   = "account_update"
	EventOrdersUpdate    = "orders_update"
	EventOrderHistory    = "order_history"
	EventOrderResponse   = "order_response"
)

// Event names sent client → server.
const (
	EventSubscribeSymbol      = "subscribe_symbol"
	EventRequestAccountUpdate = "request_account_update"
	EventRequestOrdersUpdate  = "request_orders_update"
)

// Event is the wire envelope for every message on the channel.
// EventConnect and EventDisconnect never travel the wire; the client
// synthesizes them from the connection state so that handlers see one
// ordered stream of events.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an envelope with v marshaled as the payload.
func NewEvent(eventType string, v any) (Event, error) {
	if v == nil {
		return Event{Type: eventType}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Data: data}, nil
}

// MustEvent is NewEvent for payloads that cannot fail to marshal.
func MustEvent(eventType string, v any) Event {
	evt, err := NewEvent(eventType, v)
	if err != nil {
		panic(err)
	}
	return evt
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// PriceUpdate is the payload of price_update events.
type PriceUpdate struct {
	Symbol             string `json:"symbol"`
	Price              string `json:"price"`
	PriceChangePercent string `json:"priceChangePercent"`
	High24h            string `json:"high24h"`
	Low24h             string `json:"low24h"`
	Volume24h          string `json:"volume24h"`
}

// SubscribeSymbol is the payload of subscribe_symbol requests.
type SubscribeSymbol struct {
	Symbol string `json:"symbol"`
}

// OrderResponse is the payload of order_response events. Failure is a
// normal response variant, not a transport error.
type OrderResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OrderBookUpdate aliases the domain snapshot for wire use.
type OrderBookUpdate = domain.OrderBook
