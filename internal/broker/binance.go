package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedash/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*BinanceBroker)(nil)

// BinanceBroker implements the Broker interface against the Binance spot
// API. Quantities are snapped to each symbol's LOT_SIZE step before
// submission; step sizes are fetched once per symbol and cached.
type BinanceBroker struct {
	client *binance.Client

	mu    sync.Mutex
	steps map[string]decimal.Decimal
}

// NewBinanceBroker creates a BinanceBroker on top of an authenticated
// client.
func NewBinanceBroker(client *binance.Client) *BinanceBroker {
	return &BinanceBroker{
		client: client,
		steps:  make(map[string]decimal.Decimal),
	}
}

// Name returns "binance".
func (b *BinanceBroker) Name() string {
	return "binance"
}

// PlaceOrder submits the order to Binance. Limit and stop-limit orders are
// sent good-till-cancelled.
func (b *BinanceBroker) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	qty, err := b.formatQuantity(ctx, req.Symbol, req.Quantity)
	if err != nil {
		return nil, err
	}

	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Quantity(qty).
		NewClientOrderID("td-" + uuid.NewString())

	switch domain.OrderType(req.Type) {
	case domain.OrderTypeMarket:
		svc = svc.Type(binance.OrderTypeMarket)
	case domain.OrderTypeLimit:
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(formatPrice(req.Price))
	case domain.OrderTypeStopLimit:
		svc = svc.Type(binance.OrderTypeStopLossLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(formatPrice(req.Price)).
			StopPrice(formatPrice(req.StopPrice))
	default:
		return nil, fmt.Errorf("order type %q cannot be sent to the exchange", req.Type)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("placing %s %s order: %w", req.Side, req.Type, err)
	}

	return &domain.Order{
		OrderID:     res.OrderID,
		Symbol:      res.Symbol,
		Side:        domain.OrderSide(res.Side),
		Type:        domain.OrderType(res.Type),
		Status:      domain.OrderStatus(res.Status),
		Price:       res.Price,
		OrigQty:     res.OrigQuantity,
		ExecutedQty: res.ExecutedQuantity,
		Time:        res.TransactTime,
	}, nil
}

// CancelOrder cancels an open order by exchange ID.
func (b *BinanceBroker) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("cancelling order %d: %w", orderID, err)
	}
	return nil
}

// OpenOrders lists the currently open orders for a symbol.
func (b *BinanceBroker) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	orders, err := b.client.NewListOpenOrdersService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing open orders: %w", err)
	}
	return mapOrders(orders), nil
}

// OrderHistory lists recent orders for a symbol.
func (b *BinanceBroker) OrderHistory(ctx context.Context, symbol string) ([]domain.Order, error) {
	orders, err := b.client.NewListOrdersService().
		Symbol(symbol).
		Limit(50).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing order history: %w", err)
	}
	return mapOrders(orders), nil
}

// Account returns the spot balances, dropping assets with no holdings.
func (b *BinanceBroker) Account(ctx context.Context) (*domain.AccountSnapshot, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	snap := &domain.AccountSnapshot{UpdateTime: time.Now().UnixMilli()}
	for _, bal := range acct.Balances {
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		snap.Balances = append(snap.Balances, domain.AssetBalance{
			Asset:  bal.Asset,
			Free:   bal.Free,
			Locked: bal.Locked,
		})
	}
	return snap, nil
}

// formatQuantity snaps a quantity down to the symbol's LOT_SIZE step and
// renders it with the step's precision.
func (b *BinanceBroker) formatQuantity(ctx context.Context, symbol string, qty float64) (string, error) {
	step, err := b.stepSize(ctx, symbol)
	if err != nil {
		return "", err
	}
	return SnapQuantity(qty, step), nil
}

func (b *BinanceBroker) stepSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	b.mu.Lock()
	step, ok := b.steps[symbol]
	b.mu.Unlock()
	if ok {
		return step, nil
	}

	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetching exchange info for %s: %w", symbol, err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		lot := s.LotSizeFilter()
		if lot == nil {
			break
		}
		step, err = decimal.NewFromString(lot.StepSize)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parsing step size %q: %w", lot.StepSize, err)
		}
		b.mu.Lock()
		b.steps[symbol] = step
		b.mu.Unlock()
		return step, nil
	}
	return decimal.Decimal{}, fmt.Errorf("no LOT_SIZE filter for %s", symbol)
}

// SnapQuantity floors qty to a multiple of step and formats it with the
// step's decimal precision. A zero step passes the quantity through.
func SnapQuantity(qty float64, step decimal.Decimal) string {
	q := decimal.NewFromFloat(qty)
	if step.IsZero() {
		return q.String()
	}
	snapped := q.Div(step).Floor().Mul(step)
	return snapped.StringFixed(-step.Exponent())
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).String()
}

func mapOrders(orders []*binance.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		out[i] = domain.Order{
			OrderID:     o.OrderID,
			Symbol:      o.Symbol,
			Side:        domain.OrderSide(o.Side),
			Type:        domain.OrderType(o.Type),
			Status:      domain.OrderStatus(o.Status),
			Price:       o.Price,
			OrigQty:     o.OrigQuantity,
			ExecutedQty: o.ExecutedQuantity,
			Time:        o.Time,
		}
	}
	return out
}
