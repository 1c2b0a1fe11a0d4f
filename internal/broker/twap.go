package broker

import (
	"context"
	"log/slog"
	"time"

	"tradedash/internal/domain"
)

// TwapExecutor slices a TWAP request into equal market-order chunks spread
// evenly over the requested duration. The first chunk executes immediately.
type TwapExecutor struct {
	broker Broker
	log    *slog.Logger
	chunks int
}

// NewTwapExecutor creates an executor placing chunks orders per TWAP
// request through the given broker.
func NewTwapExecutor(b Broker, log *slog.Logger, chunks int) *TwapExecutor {
	if chunks < 1 {
		chunks = 1
	}
	return &TwapExecutor{broker: b, log: log, chunks: chunks}
}

// Chunks returns the number of slices per request.
func (e *TwapExecutor) Chunks() int { return e.chunks }

// Execute runs the TWAP schedule synchronously, invoking report after each
// chunk. Callers run it in a goroutine; cancelling the context abandons the
// remaining chunks.
func (e *TwapExecutor) Execute(ctx context.Context, req domain.OrderRequest, duration time.Duration, report func(*domain.Order, error)) {
	interval := duration / time.Duration(e.chunks)
	chunkQty := req.Quantity / float64(e.chunks)

	for i := 0; i < e.chunks; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				e.log.Warn("twap abandoned", "symbol", req.Symbol, "placed", i, "of", e.chunks)
				return
			case <-time.After(interval):
			}
		}

		chunk := domain.OrderRequest{
			Symbol:   req.Symbol,
			Side:     req.Side,
			Type:     string(domain.OrderTypeMarket),
			Quantity: chunkQty,
		}
		order, err := e.broker.PlaceOrder(ctx, chunk)
		if err != nil {
			e.log.Error("twap chunk failed", "symbol", req.Symbol, "chunk", i+1, "error", err)
		} else {
			e.log.Info("twap chunk filled", "symbol", req.Symbol, "chunk", i+1, "of", e.chunks, "orderId", order.OrderID)
		}
		if report != nil {
			report(order, err)
		}
	}
}
