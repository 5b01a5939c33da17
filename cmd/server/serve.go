package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openctemio/cvedash/internal/config"
	"github.com/openctemio/cvedash/internal/infra/http"
	"github.com/openctemio/cvedash/internal/infra/http/routes"
	"github.com/openctemio/cvedash/internal/infra/sqlstore"
	"github.com/openctemio/cvedash/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "version", version)

	if cfg.Sentry.Enabled() {
		if err := initSentry(cfg); err != nil {
			log.Error("failed to initialize sentry", "error", err)
			return err
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("error reporting enabled")
	}

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := sqlstore.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err, "driver", cfg.Database.Driver)
		return err
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected", "driver", cfg.Database.Driver, "dialect", db.Dialect().Name())

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	handlers, err := NewHandlers(&HandlerDeps{Config: cfg, Log: log, DB: db})
	if err != nil {
		log.Error("failed to initialize handlers", "error", err)
		return err
	}

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ==========================================================================
	// Run until a signal arrives or the listener fails
	// ==========================================================================
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
			return err
		}
		return nil
	})

	log.Info("application started", "http_addr", cfg.Server.Addr())
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("application stopped")
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.IsProduction() {
		log = logger.NewProduction(cfg.Log.Level)
	} else {
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stderr,
		})
	}
	log.SetDefault()
	return log
}

func initSentry(cfg *config.Config) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.App.Env,
		Release:          "cvedash@" + version,
		AttachStacktrace: true,
		SendDefaultPII:   false,
	})
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
