// Package server exposes a read-only HTTP status surface for the engine:
// health, risk state, today's stats, and the current zone map. It never
// mutates engine state.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int

	// Symbol and ScanRangePips parameterise the /api/zones scan.
	Symbol        string
	ScanRangePips int
}

// RiskReader is the read surface the status endpoints need from the risk gate.
type RiskReader interface {
	DayState() domain.RiskDayState
	CanTrade() (bool, string)
	ChallengeProgress(balance float64) float64
}

// ZoneScanner produces the scored zone map around the current price.
type ZoneScanner interface {
	Scan(ctx context.Context, snap domain.MarketSnapshot, rangePips int) []domain.ExecutionZone
}

// Deps aggregates everything the status handlers read from.
type Deps struct {
	Snapshots domain.SnapshotCache
	Positions domain.PositionCache
	Trades    domain.TradeStore
	Risk      RiskReader
	Zones     ZoneScanner
}

// Server is the engine's HTTP status server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	h := &statusHandler{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		start:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/zones", h.zones)
	mux.HandleFunc("GET /api/stats/today", h.todayStats)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      logging(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
