package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"

	"tradedash/internal/api"
	"tradedash/internal/broker"
	"tradedash/internal/config"
	"tradedash/internal/market"
	"tradedash/internal/push"
	"tradedash/internal/store"
	"tradedash/internal/util"
)

const inboundTimeout = 10 * time.Second

// broadcaster fans events out through the hub and, in paper mode, keeps
// the simulator's mark price in sync with the live ticker.
type broadcaster struct {
	hub *push.Hub
	sim *broker.SimulatorBroker
}

func (b *broadcaster) Broadcast(evt push.Event) {
	if b.sim != nil && evt.Type == push.EventPriceUpdate {
		var p push.PriceUpdate
		if err := evt.Decode(&p); err == nil {
			b.sim.SetPrice(p.Symbol, p.Price)
		}
	}
	b.hub.Broadcast(evt)
}

func main() {
	cfgPath := "config/tradedash.yaml"
	if p := os.Getenv("TRADEDASH_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = config.Default()
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	binance.UseTestnet = cfg.Binance.Testnet
	client := binance.NewClient(cfg.Binance.APIKey, cfg.Binance.APISecret)

	// Storage. Both layers are optional; the server degrades to
	// passthrough when they fail to open.
	var candles store.CandleStore
	sqlStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Warn("opening candle cache", "path", cfg.Storage.SQLitePath, "error", err)
	} else {
		defer sqlStore.Close()
		candles = sqlStore
	}
	recorder := store.NewParquetRecorder(cfg.Storage.DataDir)

	var b broker.Broker
	var sim *broker.SimulatorBroker
	if cfg.Trading.PaperMode {
		sim = broker.NewSimulatorBroker()
		b = sim
		logger.Info("paper mode", "broker", b.Name())
	} else {
		b = broker.NewBinanceBroker(client)
		logger.Info("live mode", "broker", b.Name(), "testnet", cfg.Binance.Testnet)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The inbound handler and the feed reference each other: requests
	// steer the feed, and the feed broadcasts through the hub. The feed
	// variable is bound before the first connection can deliver an event.
	var feed *market.Feed
	hub := push.NewHub(logger, func(evt push.Event, reply func(push.Event)) {
		handleInbound(ctx, evt, reply, b, feed, logger)
	})
	cast := &broadcaster{hub: hub, sim: sim}
	feed = market.NewFeed(client, logger, cast, recorder)
	defer feed.Close()

	go hub.Run(ctx)

	// Warm up the exchange connection before streaming.
	warmup := func() error {
		warmCtx, warmCancel := context.WithTimeout(ctx, inboundTimeout)
		defer warmCancel()
		_, err := feed.Klines(warmCtx, cfg.Dashboard.DefaultSymbol, "1m", 1)
		return err
	}
	if err := util.Retry(ctx, 5, time.Second, warmup); err != nil {
		logger.Warn("exchange warmup failed, continuing", "error", err)
	}

	if err := feed.Subscribe(cfg.Dashboard.DefaultSymbol); err != nil {
		logger.Error("starting streams", "symbol", cfg.Dashboard.DefaultSymbol, "error", err)
	}

	twap := broker.NewTwapExecutor(b, logger, cfg.Trading.TwapChunks)
	twapDuration := time.Duration(cfg.Trading.TwapDurationMin) * time.Minute
	apiServer := api.NewServer(feed, b, twap, cast, candles, twapDuration, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/", apiServer.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("tradedash-server listening", "addr", addr, "symbol", cfg.Dashboard.DefaultSymbol)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server stopped")
}

// handleInbound serves requests arriving on a client's push channel.
// Replies go only to the requesting client; stream data for a new
// subscription continues to fan out through the hub.
func handleInbound(ctx context.Context, evt push.Event, reply func(push.Event), b broker.Broker, feed *market.Feed, logger *slog.Logger) {
	reqCtx, cancel := context.WithTimeout(ctx, inboundTimeout)
	defer cancel()

	switch evt.Type {
	case push.EventSubscribeSymbol:
		var sub push.SubscribeSymbol
		if err := evt.Decode(&sub); err != nil {
			logger.Warn("bad subscribe request", "error", err)
			return
		}
		if err := feed.Subscribe(sub.Symbol); err != nil {
			logger.Error("subscribing", "symbol", sub.Symbol, "error", err)
			return
		}
		// Seed the trade list immediately instead of waiting for the
		// first tick on the new stream.
		trades, err := feed.RecentTrades(reqCtx, feed.Symbol(), 20)
		if err != nil {
			logger.Warn("seeding recent trades", "symbol", feed.Symbol(), "error", err)
			return
		}
		reply(push.MustEvent(push.EventRecentTrades, trades))

	case push.EventRequestAccountUpdate:
		acct, err := b.Account(reqCtx)
		if err != nil {
			logger.Warn("fetching account", "error", err)
			return
		}
		reply(push.MustEvent(push.EventAccountUpdate, acct))

	case push.EventRequestOrdersUpdate:
		symbol := feed.Symbol()
		open, err := b.OpenOrders(reqCtx, symbol)
		if err != nil {
			logger.Warn("fetching open orders", "symbol", symbol, "error", err)
			return
		}
		reply(push.MustEvent(push.EventOrdersUpdate, open))
		history, err := b.OrderHistory(reqCtx, symbol)
		if err != nil {
			logger.Warn("fetching order history", "symbol", symbol, "error", err)
			return
		}
		reply(push.MustEvent(push.EventOrderHistory, history))

	default:
		logger.Debug("unhandled inbound event", "type", evt.Type)
	}
}
