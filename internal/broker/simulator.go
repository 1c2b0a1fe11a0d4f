package broker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradedash/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface for paper trading. It
// tracks balances and orders in memory without external API calls. Market
// orders fill immediately at the last price fed via SetPrice; limit and
// stop-limit orders rest open until cancelled.
type SimulatorBroker struct {
	mu       sync.Mutex
	nextID   int64
	prices   map[string]decimal.Decimal
	balances map[string]decimal.Decimal
	open     map[int64]*domain.Order
	history  []domain.Order
	clock    func() time.Time
}

// NewSimulatorBroker creates a SimulatorBroker seeded with paper balances.
func NewSimulatorBroker() *SimulatorBroker {
	return &SimulatorBroker{
		nextID: 1,
		prices: make(map[string]decimal.Decimal),
		balances: map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(10000),
			"BTC":  decimal.NewFromInt(1),
		},
		open:  make(map[int64]*domain.Order),
		clock: time.Now,
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SetPrice feeds the simulator the latest traded price for a symbol.
// Market fills use it as the execution price.
func (b *SimulatorBroker) SetPrice(symbol, price string) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.prices[symbol] = p
	b.mu.Unlock()
}

// PlaceOrder records the order. Market orders fill immediately and adjust
// the paper balances; other types rest in the open-orders list.
func (b *SimulatorBroker) PlaceOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order := &domain.Order{
		OrderID: b.nextID,
		Symbol:  req.Symbol,
		Side:    domain.OrderSide(req.Side),
		Type:    domain.OrderType(req.Type),
		Status:  domain.OrderStatusNew,
		OrigQty: decimal.NewFromFloat(req.Quantity).String(),
		Time:    b.clock().UnixMilli(),
	}
	b.nextID++

	switch order.Type {
	case domain.OrderTypeMarket:
		price, ok := b.prices[req.Symbol]
		if !ok {
			return nil, fmt.Errorf("no market price known for %s", req.Symbol)
		}
		qty := decimal.NewFromFloat(req.Quantity)
		if err := b.settle(req.Symbol, order.Side, qty, price); err != nil {
			order.Status = domain.OrderStatusRejected
			b.history = append(b.history, *order)
			return nil, err
		}
		order.Status = domain.OrderStatusFilled
		order.Price = price.String()
		order.ExecutedQty = order.OrigQty
		b.history = append(b.history, *order)

	case domain.OrderTypeLimit, domain.OrderTypeStopLimit:
		order.Price = decimal.NewFromFloat(req.Price).String()
		order.ExecutedQty = "0"
		b.open[order.OrderID] = order

	default:
		return nil, fmt.Errorf("order type %q cannot be simulated directly", req.Type)
	}

	return order, nil
}

// settle moves base and quote balances for a fill. Balances can go short;
// the simulator only rejects when the symbol's quote asset is unknown.
func (b *SimulatorBroker) settle(symbol string, side domain.OrderSide, qty, price decimal.Decimal) error {
	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return err
	}
	cost := qty.Mul(price)
	if side == domain.SideBuy {
		b.balances[quote] = b.balances[quote].Sub(cost)
		b.balances[base] = b.balances[base].Add(qty)
	} else {
		b.balances[base] = b.balances[base].Sub(qty)
		b.balances[quote] = b.balances[quote].Add(cost)
	}
	return nil
}

// CancelOrder moves an open order to the history as cancelled.
func (b *SimulatorBroker) CancelOrder(_ context.Context, _ string, orderID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.open[orderID]
	if !ok {
		return fmt.Errorf("order %d is not open", orderID)
	}
	delete(b.open, orderID)
	order.Status = domain.OrderStatusCanceled
	b.history = append(b.history, *order)
	return nil
}

// OpenOrders returns the resting orders for a symbol, oldest first.
func (b *SimulatorBroker) OpenOrders(_ context.Context, symbol string) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var orders []domain.Order
	for _, o := range b.open {
		if o.Symbol == symbol {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return orders, nil
}

// OrderHistory returns completed orders for a symbol, oldest first.
func (b *SimulatorBroker) OrderHistory(_ context.Context, symbol string) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var orders []domain.Order
	for _, o := range b.history {
		if o.Symbol == symbol {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// Account returns the simulated balances.
func (b *SimulatorBroker) Account(_ context.Context) (*domain.AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	assets := make([]string, 0, len(b.balances))
	for asset := range b.balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	snap := &domain.AccountSnapshot{UpdateTime: b.clock().UnixMilli()}
	for _, asset := range assets {
		snap.Balances = append(snap.Balances, domain.AssetBalance{
			Asset:  asset,
			Free:   b.balances[asset].String(),
			Locked: "0",
		})
	}
	return snap, nil
}

// knownQuotes are the quote assets the simulator can split a symbol on.
var knownQuotes = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB"}

func splitSymbol(symbol string) (base, quote string, err error) {
	for _, q := range knownQuotes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q, nil
		}
	}
	return "", "", fmt.Errorf("cannot determine quote asset of %s", symbol)
}
