// Package cli provides common CLI initialization utilities shared by
// cmd/expense-api, cmd/expense-worker and cmd/expense-tracker.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/config"
	"expensetracker/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the LOG_LEVEL read from the
// environment and installs it as the slog default. An invalid level falls
// back to info; config validation reports it.
func SetupLogger(component string, out io.Writer) *log.Logger {
	level, _ := config.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Output:    out,
	})
	slog.SetDefault(logger.Logger)
	return logger
}

// OpenLogFile opens path for appending, creating its directory. The
// terminal client logs here so output does not corrupt the screen.
func OpenLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. When
// the signal arrives, cleanup runs with a context bounded by timeout and
// done is closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()
		runCleanup(logger, timeout, cleanup)
		close(done)
	}()

	return ctx, done
}

func runCleanup(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	finished := make(chan struct{})
	go func() {
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		close(finished)
	}()

	select {
	case <-finished:
		logger.Info("Shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	}
}
