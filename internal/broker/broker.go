// Package broker defines the Broker interface and provides implementations
// for executing orders and reading account state.
package broker

import (
	"context"

	"tradedash/internal/domain"
)

// Broker abstracts exchange operations for order execution and account
// access. TWAP orders never reach a Broker directly; the TwapExecutor
// slices them into market orders first.
type Broker interface {
	// Name returns the broker identifier (e.g. "binance", "simulator").
	Name() string

	// PlaceOrder submits a validated order request for execution.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// OpenOrders returns the currently open orders for a symbol.
	OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)

	// OrderHistory returns recent orders for a symbol, newest last.
	OrderHistory(ctx context.Context, symbol string) ([]domain.Order, error)

	// Account returns a snapshot of the account balances.
	Account(ctx context.Context) (*domain.AccountSnapshot, error)
}
