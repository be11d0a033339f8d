package main

import (
	"context"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets"
	gsheet "expensetracker/internal/sheets/google"
	"expensetracker/internal/sheets/memory"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Stdout)
	logger.Info("Starting expense-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	var writer sheets.AuditWriter
	if cfg.GoogleSpreadsheetID != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		client, err := gsheet.New(initCtx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err == nil {
			err = client.EnsureHeader(initCtx)
		}
		cancel()
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets audit mirror enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
		writer = client
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, keeping audit in memory")
		writer = memory.New()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(writer, logger)
	caches := cache.NewManager(logger)
	caches.Register(mirror.Seen())
	caches.StartCleanup(time.Hour)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
	})

	if err := mirror.Run(ctx, amqpClient); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker shutdown complete")
}
