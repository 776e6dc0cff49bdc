// Package cli provides the initialization shared by expensectl and expense-auth.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartexpense/internal/amqp"
	"smartexpense/internal/backend"
	"smartexpense/internal/config"
	"smartexpense/internal/expenses"
	applog "smartexpense/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs a default logger reporting as component and returns
// a logger without a component, for packages that add their own.
// An unknown level falls back to info.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *slog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	handler := applog.NewHandler(applog.Config{
		Level:  level,
		Format: cfg.LogFormat,
		Output: out,
	})
	logger := applog.New(applog.Config{Handler: handler, Component: component})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err)
	}
	return slog.New(handler)
}

// LoadAndValidateConfig loads configuration from the environment and
// validates the client side settings.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore creates the key-value store selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize storage backend",
			applog.FieldError, err,
			applog.FieldBackend, bcfg.Type)
		return nil, err
	}
	return res, nil
}

// OpenNotifier connects to the broker when AMQP_URL is set. Without a URL it
// returns a nil notifier and a no-op cleanup. A broker that cannot be reached
// is logged and skipped: change events are best effort.
func OpenNotifier(cfg *config.Config, logger *slog.Logger) (expenses.Notifier, func()) {
	if cfg.AMQPURL == "" {
		return nil, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, change events disabled",
			applog.FieldError, err,
			"exchange", cfg.AMQPExchange)
		return nil, func() {}
	}
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
}

// Tracker wires a Repository over store into a Tracker configured from cfg.
func Tracker(cfg *config.Config, res *backend.BackendResult, notifier expenses.Notifier, logger *slog.Logger) (*expenses.Tracker, error) {
	policy, err := expenses.ParseCorruptPolicy(cfg.CorruptPolicy)
	if err != nil {
		return nil, fmt.Errorf("corrupt policy: %w", err)
	}
	repo := expenses.NewRepository(res.Store, policy, logger)
	return expenses.NewTracker(repo, expenses.Options{
		Notifier:  notifier,
		CacheSize: cfg.SummaryCacheSize,
		CacheTTL:  cfg.SummaryCacheTTL,
		Logger:    logger,
	}), nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
