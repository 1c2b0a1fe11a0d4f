// Package market connects the dashboard server to the exchange: live
// websocket streams for the active symbol and REST lookups for history.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adshao/go-binance/v2"

	"tradedash/internal/domain"
	"tradedash/internal/push"
	"tradedash/internal/store"
	"tradedash/internal/util"
)

const (
	depthLevels      = "10"
	recentTradeCount = 20
	// tradeFetchPerMin bounds the REST recent-trades refreshes triggered
	// by the trade stream.
	tradeFetchPerMin = 60
)

// Broadcaster fans an event out to every connected dashboard.
type Broadcaster interface {
	Broadcast(evt push.Event)
}

// Feed manages the live streams for one active symbol at a time.
// Subscribing to a new symbol stops the previous symbol's streams first.
type Feed struct {
	client   *binance.Client
	log      *slog.Logger
	cast     Broadcaster
	recorder store.TradeRecorder // optional
	limiter  *util.RateLimiter

	mu     sync.Mutex
	symbol string
	stops  []chan struct{}
	cancel context.CancelFunc
}

// NewFeed creates a Feed. recorder may be nil to disable tick recording.
func NewFeed(client *binance.Client, log *slog.Logger, cast Broadcaster, recorder store.TradeRecorder) *Feed {
	return &Feed{
		client:   client,
		log:      log,
		cast:     cast,
		recorder: recorder,
		limiter:  util.NewRateLimiter(tradeFetchPerMin),
	}
}

// Symbol returns the currently streamed symbol.
func (f *Feed) Symbol() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.symbol
}

// Subscribe switches the live streams to symbol. It is a no-op when the
// symbol is already active.
func (f *Feed) Subscribe(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol == f.symbol {
		return nil
	}
	f.stopLocked()

	refresh := make(chan struct{}, 1)

	errHandler := func(err error) {
		f.log.Warn("stream error", "symbol", symbol, "error", err)
	}

	_, tickerStop, err := binance.WsMarketStatServe(symbol, func(ev *binance.WsMarketStatEvent) {
		f.cast.Broadcast(push.MustEvent(push.EventPriceUpdate, push.PriceUpdate{
			Symbol:             ev.Symbol,
			Price:              ev.LastPrice,
			PriceChangePercent: ev.PriceChangePercent,
			High24h:            ev.HighPrice,
			Low24h:             ev.LowPrice,
			Volume24h:          ev.BaseVolume,
		}))
	}, errHandler)
	if err != nil {
		return fmt.Errorf("starting ticker stream for %s: %w", symbol, err)
	}
	f.stops = append(f.stops, tickerStop)

	_, depthStop, err := binance.WsPartialDepthServe(symbol, depthLevels, func(ev *binance.WsPartialDepthEvent) {
		book := domain.OrderBook{Symbol: ev.Symbol}
		for _, b := range ev.Bids {
			book.Bids = append(book.Bids, domain.PriceLevel{Price: b.Price, Qty: b.Quantity})
		}
		for _, a := range ev.Asks {
			book.Asks = append(book.Asks, domain.PriceLevel{Price: a.Price, Qty: a.Quantity})
		}
		f.cast.Broadcast(push.MustEvent(push.EventOrderBookUpdate, book))
	}, errHandler)
	if err != nil {
		f.stopLocked()
		return fmt.Errorf("starting depth stream for %s: %w", symbol, err)
	}
	f.stops = append(f.stops, depthStop)

	_, tradeStop, err := binance.WsTradeServe(symbol, func(ev *binance.WsTradeEvent) {
		if f.recorder != nil {
			trade := domain.Trade{
				ID:           ev.TradeID,
				Price:        ev.Price,
				Qty:          ev.Quantity,
				Time:         ev.Time,
				IsBuyerMaker: ev.IsBuyerMaker,
			}
			if err := f.recorder.RecordTrades(context.Background(), symbol, []domain.Trade{trade}); err != nil {
				f.log.Warn("recording trade", "symbol", symbol, "error", err)
			}
		}
		// The trade stream only signals activity; the list pushed to
		// dashboards comes from a rate-limited REST refresh.
		select {
		case refresh <- struct{}{}:
		default:
		}
	}, errHandler)
	if err != nil {
		f.stopLocked()
		return fmt.Errorf("starting trade stream for %s: %w", symbol, err)
	}
	f.stops = append(f.stops, tradeStop)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.refreshLoop(ctx, symbol, refresh)

	f.symbol = symbol
	f.log.Info("streams started", "symbol", symbol)
	return nil
}

// Close stops all active streams.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	f.symbol = ""
}

func (f *Feed) stopLocked() {
	for _, stop := range f.stops {
		close(stop)
	}
	f.stops = nil
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// refreshLoop serves the trade stream's refresh signals one at a time,
// spaced by the rate limiter.
func (f *Feed) refreshLoop(ctx context.Context, symbol string, refresh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh:
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return
		}
		trades, err := f.RecentTrades(ctx, symbol, recentTradeCount)
		if err != nil {
			f.log.Warn("refreshing recent trades", "symbol", symbol, "error", err)
			continue
		}
		f.cast.Broadcast(push.MustEvent(push.EventRecentTrades, trades))
	}
}

// Klines fetches historical candles for the chart.
func (f *Feed) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching klines for %s/%s: %w", symbol, interval, err)
	}

	candles := make([]domain.Candle, len(klines))
	for i, k := range klines {
		candles[i] = domain.Candle{
			OpenTime:  k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
			CloseTime: k.CloseTime,
		}
	}
	return candles, nil
}

// RecentTrades fetches the newest trades for a symbol, newest last.
func (f *Feed) RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	raw, err := f.client.NewRecentTradesService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching recent trades for %s: %w", symbol, err)
	}

	trades := make([]domain.Trade, len(raw))
	for i, t := range raw {
		trades[i] = domain.Trade{
			ID:           t.ID,
			Price:        t.Price,
			Qty:          t.Quantity,
			Time:         t.Time,
			IsBuyerMaker: t.IsBuyerMaker,
		}
	}
	return trades, nil
}
