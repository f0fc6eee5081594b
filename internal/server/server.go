// Package server wires the HTTP API, metrics endpoint, and WebSocket hub
// into a single http.Server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/metrics"
	"github.com/predyx-labs/predyxd/internal/server/handler"
	"github.com/predyx-labs/predyxd/internal/server/middleware"
	"github.com/predyx-labs/predyxd/internal/server/ws"
)

// Quote endpoints hit chain RPC on cache misses, so they carry a tighter
// per-client budget than the read-only endpoints.
const (
	quoteRateLimit  = 30
	quoteRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string
}

// Handlers aggregates the HTTP handlers served by the API.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Market *handler.MarketHandler
	Quote  *handler.QuoteHandler
}

// Server is the HTTP server for the REST API and WebSocket hub.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired. The rate limiter
// may be nil, in which case quote endpoints are not throttled.
func New(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and status.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Markets.
	mux.HandleFunc("GET /api/markets", handlers.Market.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Market.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/price", handlers.Market.GetPrice)
	mux.HandleFunc("GET /api/markets/{id}/deposits", handlers.Market.ListDeposits)
	mux.HandleFunc("GET /api/markets/{id}/quotes", handlers.Quote.ListQuotes)

	// Quote previews. These are the only endpoints that can trigger an
	// eth_call, so they get their own rate limit.
	throttle := func(h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return middleware.RateLimit(limiter, quoteRateLimit, quoteRateWindow)(h)
	}
	mux.Handle("POST /api/quotes/buy", throttle(handlers.Quote.QuoteBuy))
	mux.Handle("POST /api/quotes/sell", throttle(handlers.Quote.QuoteSell))
	mux.Handle("POST /api/quotes/payout", throttle(handlers.Quote.QuotePayout))

	// WebSocket endpoint for live price and quote events.
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	// Middleware chain (applied outermost first): CORS -> auth -> metrics ->
	// logging. /metrics and /api/health stay outside auth so probes and the
	// Prometheus scraper work without credentials.
	var apiHandler http.Handler = mux
	apiHandler = middleware.Logging(logger)(apiHandler)
	apiHandler = metrics.Middleware(apiHandler)
	apiHandler = middleware.Auth(cfg.APIKey)(apiHandler)
	apiHandler = middleware.CORS(cfg.CORSOrigins)(apiHandler)

	root := http.NewServeMux()
	root.Handle("GET /metrics", metrics.Handler())
	root.Handle("GET /api/health", middleware.Logging(logger)(http.HandlerFunc(handlers.Health.HealthCheck)))
	root.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		hub:        hub,
		logger:     logger,
	}
}

// Start runs the WebSocket hub and the HTTP server until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.hub != nil {
		go func() {
			if err := s.hub.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("server: websocket hub stopped",
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("server: stopped")
	return nil
}
