package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"backoffice/internal/amqp"
	"backoffice/internal/backend"
	"backoffice/internal/cache"
	"backoffice/internal/config"
	"backoffice/internal/log"
	gsheet "backoffice/internal/sheets/google"
	"backoffice/internal/worker"
)

const reconsumeDelay = 5 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.ConfigFromEnv(cfg.LogLevel, cfg.LogFormat, os.Stdout)).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)
	logger.Info("Starting ledger-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker only reads client names, so it opens the store without a
	// publisher of its own.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.AMQPURL = ""
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer be.Cleanup()

	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	seen := cache.NewLRU[struct{}](10000, worker.DefaultSeenTTL)
	caches := cache.NewManager(logger)
	caches.Register(seen)
	caches.Start(time.Hour)
	defer caches.Stop()

	exportWorker := worker.NewExportWorker(sheetsClient, be.Store, seen)
	if _, err := exportWorker.Prime(ctx, sheetsClient, time.Now().Year()); err != nil {
		// Don't exit - duplicates are possible only for redelivered messages
		logger.Warn("Failed to prime export worker", log.FieldError, err)
	}

	for {
		err := amqpClient.ConsumeLedgerEvents(ctx, exportWorker.Handle)
		if ctx.Err() != nil {
			break
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed, retrying", log.FieldError, err, "delay", reconsumeDelay.String())
		}
		select {
		case <-ctx.Done():
		case <-time.After(reconsumeDelay):
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
