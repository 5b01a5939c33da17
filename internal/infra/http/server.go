package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/internal/infra/http/middleware"
	"github.com/openctemio/cvedash/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func() // cleanup functions to call on shutdown
}

// NewServer creates the HTTP server on a chi router with the global
// middleware installed.
func NewServer(cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		router: NewChiRouter(cfg.Server.TrustProxyHeaders),
		config: cfg,
		logger: log,
	}

	rateLimit, stopRateLimit := middleware.RateLimit(cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, stopRateLimit)

	// Request IDs first so every later log line carries one.
	s.router.Use(
		middleware.RequestID(),
		middleware.Recover(log, !cfg.IsProduction()),
		middleware.SecurityHeaders(cfg.IsProduction()),
		rateLimit,
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.AccessLog(log, time.Duration(cfg.Log.SlowRequestSeconds)*time.Second),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           gzhttp.GzipHandler(s.router.Handler()),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}

	return s
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// Handler returns the root handler, including response compression.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.config.Server.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
