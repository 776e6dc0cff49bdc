package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"smartexpense/internal/authserver"
	"smartexpense/internal/cli"
	"smartexpense/internal/config"
	applog "smartexpense/internal/log"
	"smartexpense/internal/storage/sqlite"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentApp, os.Stdout)

	if err := cfg.ValidateServer(); err != nil {
		slog.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	users, err := sqlite.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite repository", applog.FieldError, err, applog.FieldPath, cfg.SQLiteDBPath)
		os.Exit(1)
	}

	api, err := authserver.New(users, authserver.Config{
		JWTSecret:      []byte(cfg.JWTSecret),
		TokenTTL:       cfg.TokenTTL,
		UploadDir:      cfg.UploadDir,
		LoginRateLimit: cfg.LoginRateLimit,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize auth server", applog.FieldError, err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	ctx, done := cli.GracefulShutdown(slog.Default(), 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", applog.FieldError, err)
		}
		api.Close()
		if err := users.Close(); err != nil {
			slog.Error("Failed to close database", applog.FieldError, err)
		}
	})

	slog.Info("Starting expense-auth server", "port", cfg.Port, applog.FieldPath, cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	slog.Info("Server stopped gracefully")
}
