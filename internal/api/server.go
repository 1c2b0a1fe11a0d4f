// Package api serves the dashboard REST API. Every response uses the
// {success, data|error} envelope with HTTP 200; failures are an envelope
// variant, not a transport status.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tradedash/internal/broker"
	"tradedash/internal/domain"
	"tradedash/internal/push"
	"tradedash/internal/store"
)

const (
	defaultKlineLimit = 100
	maxKlineLimit     = 1000
	requestTimeout    = 15 * time.Second
)

// MarketData is the slice of the market feed the API needs.
type MarketData interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// Broadcaster pushes an event to every connected dashboard.
type Broadcaster interface {
	Broadcast(evt push.Event)
}

// Server serves the dashboard REST API.
type Server struct {
	market  MarketData
	broker  broker.Broker
	twap    *broker.TwapExecutor
	cast    Broadcaster
	candles store.CandleStore // optional kline cache
	log     *slog.Logger

	// twapDuration is the default schedule length when the request does
	// not carry one.
	twapDuration time.Duration
}

// NewServer creates the API server. candles may be nil to disable the
// kline cache.
func NewServer(
	market MarketData,
	b broker.Broker,
	twap *broker.TwapExecutor,
	cast Broadcaster,
	candles store.CandleStore,
	twapDuration time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		market:       market,
		broker:       b,
		twap:         twap,
		cast:         cast,
		candles:      candles,
		twapDuration: twapDuration,
		log:          log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/account/balance", s.handleBalance)
	mux.HandleFunc("GET /api/orders/open", s.handleOpenOrders)
	mux.HandleFunc("GET /api/orders/history", s.handleOrderHistory)
	mux.HandleFunc("GET /api/klines/{symbol}", s.handleKlines)
	mux.HandleFunc("POST /api/orders/place", s.handlePlaceOrder)
	mux.HandleFunc("POST /api/orders/cancel", s.handleCancelOrder)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// envelope is the uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func symbolParam(r *http.Request) string {
	if s := r.URL.Query().Get("symbol"); s != "" {
		return s
	}
	return domain.DefaultSymbol
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := s.broker.Account(ctx)
	if err != nil {
		s.log.Error("fetching balance", "error", err)
		writeError(w, err.Error())
		return
	}
	writeData(w, snap)
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orders, err := s.broker.OpenOrders(ctx, symbolParam(r))
	if err != nil {
		s.log.Error("listing open orders", "error", err)
		writeError(w, err.Error())
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeData(w, orders)
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orders, err := s.broker.OrderHistory(ctx, symbolParam(r))
	if err != nil {
		s.log.Error("listing order history", "error", err)
		writeError(w, err.Error())
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeData(w, orders)
}

// handleKlines serves chart history. A successful exchange fetch refreshes
// the local cache; when the exchange is unreachable the cache answers
// instead.
func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = domain.DefaultInterval
	}
	limit := defaultKlineLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxKlineLimit {
			writeError(w, "invalid limit")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	candles, err := s.market.Klines(ctx, symbol, interval, limit)
	if err != nil {
		s.log.Warn("fetching klines", "symbol", symbol, "interval", interval, "error", err)
		if s.candles != nil {
			cached, cacheErr := s.candles.ReadCandles(ctx, symbol, interval, limit)
			if cacheErr == nil && len(cached) > 0 {
				writeData(w, cached)
				return
			}
		}
		writeError(w, err.Error())
		return
	}

	if s.candles != nil {
		if err := s.candles.WriteCandles(ctx, symbol, interval, candles); err != nil {
			s.log.Warn("caching klines", "symbol", symbol, "error", err)
		}
	}
	writeData(w, candles)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err.Error())
		return
	}

	if domain.OrderType(req.Type) == domain.OrderTypeTWAP {
		s.startTwap(req)
		writeData(w, map[string]any{
			"message": "TWAP execution started",
			"chunks":  s.twap.Chunks(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := s.broker.PlaceOrder(ctx, req)
	if err != nil {
		s.log.Error("placing order", "symbol", req.Symbol, "type", req.Type, "error", err)
		s.broadcastOrderResponse(push.OrderResponse{Success: false, Error: err.Error()})
		writeError(w, err.Error())
		return
	}

	s.log.Info("order placed", "symbol", order.Symbol, "orderId", order.OrderID, "type", order.Type)
	s.broadcastOrderResponse(push.OrderResponse{Success: true, OrderID: order.OrderID})
	writeData(w, order)
}

// startTwap launches the TWAP schedule in the background. Each chunk
// reports through the push channel as its own order response.
func (s *Server) startTwap(req domain.OrderRequest) {
	duration := s.twapDuration
	if req.TwapDuration > 0 {
		duration = time.Duration(req.TwapDuration) * time.Minute
	}
	go s.twap.Execute(context.Background(), req, duration, func(order *domain.Order, err error) {
		if err != nil {
			s.broadcastOrderResponse(push.OrderResponse{Success: false, Error: err.Error()})
			return
		}
		s.broadcastOrderResponse(push.OrderResponse{Success: true, OrderID: order.OrderID})
	})
}

type cancelRequest struct {
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"orderId"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body")
		return
	}
	if req.Symbol == "" || req.OrderID == 0 {
		writeError(w, "symbol and orderId are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.broker.CancelOrder(ctx, req.Symbol, req.OrderID); err != nil {
		s.log.Error("cancelling order", "orderId", req.OrderID, "error", err)
		writeError(w, err.Error())
		return
	}
	writeData(w, map[string]any{"orderId": req.OrderID, "status": "canceled"})
}

func (s *Server) broadcastOrderResponse(resp push.OrderResponse) {
	if s.cast == nil {
		return
	}
	s.cast.Broadcast(push.MustEvent(push.EventOrderResponse, resp))
}
