// Package server exposes the read-only HTTP API and the WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oxgamehq/oxgame-backend/internal/server/handler"
	"github.com/oxgamehq/oxgame-backend/internal/server/middleware"
	"github.com/oxgamehq/oxgame-backend/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers. Nil handlers
// skip their routes, so each mode wires only what it runs.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Prices *handler.PriceHandler
	Pools  *handler.PoolHandler
	Rounds *handler.RoundHandler
}

// Server is the HTTP + WebSocket API server for the game backend.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	if handlers.Prices != nil {
		mux.HandleFunc("GET /api/prices", handlers.Prices.ListPrices)
		mux.HandleFunc("GET /api/prices/{channel}", handlers.Prices.GetPrice)
	}
	if handlers.Pools != nil {
		mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
		mux.HandleFunc("GET /api/pools/{channel}", handlers.Pools.GetPool)
	}
	if handlers.Rounds != nil {
		mux.HandleFunc("GET /api/rounds/{channel}", handlers.Rounds.ListRounds)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
