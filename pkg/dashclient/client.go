// Package dashclient provides a Go SDK for the tradedash server REST API.
package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tradedash/internal/domain"
)

// Client talks to the tradedash-server REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope mirrors the server's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Balance retrieves the account balances.
func (c *Client) Balance(ctx context.Context) (*domain.AccountSnapshot, error) {
	var snap domain.AccountSnapshot
	if err := c.get(ctx, "/api/account/balance", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// OpenOrders retrieves the open orders for a symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.get(ctx, "/api/orders/open", url.Values{"symbol": {symbol}}, &orders)
	return orders, err
}

// OrderHistory retrieves recent orders for a symbol.
func (c *Client) OrderHistory(ctx context.Context, symbol string) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.get(ctx, "/api/orders/history", url.Values{"symbol": {symbol}}, &orders)
	return orders, err
}

// Klines retrieves historical candles for a symbol and interval.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	query := url.Values{
		"interval": {interval},
		"limit":    {fmt.Sprint(limit)},
	}
	var candles []domain.Candle
	err := c.get(ctx, "/api/klines/"+url.PathEscape(symbol), query, &candles)
	return candles, err
}

// PlaceOrder submits an order. A failure envelope comes back as an error.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	var order domain.Order
	if err := c.post(ctx, "/api/orders/place", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// StartTwap submits a TWAP order. The server answers as soon as the
// schedule starts; chunk fills arrive over the push channel.
func (c *Client) StartTwap(ctx context.Context, req domain.OrderRequest) error {
	req.Type = string(domain.OrderTypeTWAP)
	return c.post(ctx, "/api/orders/place", req, nil)
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	body := map[string]any{"symbol": symbol, "orderId": orderID}
	return c.post(ctx, "/api/orders/cancel", body, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, res.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
