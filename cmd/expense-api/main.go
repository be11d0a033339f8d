package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	result, err := backend.NewFactory(logger).CreateBackend(startCtx, backendCfg)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, result.Service, logger)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 35 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting expense service",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", result.Events)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
