// Package store defines storage interfaces for persisting and retrieving
// candle history and trade ticks.
package store

import (
	"context"

	"tradedash/internal/domain"
)

// CandleStore persists and retrieves OHLCV candle data. It backs the chart
// endpoint when the exchange is unreachable.
type CandleStore interface {
	// WriteCandles persists a batch of candles for a symbol and interval.
	WriteCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) error

	// ReadCandles returns the most recent candles for the symbol and
	// interval, at most limit, in ascending open-time order.
	ReadCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// TradeRecorder persists trade ticks as they stream in.
type TradeRecorder interface {
	// RecordTrades persists a batch of trades for a symbol.
	RecordTrades(ctx context.Context, symbol string, trades []domain.Trade) error

	// ReadTrades returns all recorded trades for the symbol on the given
	// date (YYYY-MM-DD), sorted by time.
	ReadTrades(ctx context.Context, symbol, date string) ([]domain.Trade, error)
}
