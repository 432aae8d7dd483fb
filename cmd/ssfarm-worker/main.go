package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"ssfarm/internal/amqp"
	"ssfarm/internal/cache"
	"ssfarm/internal/cli"
	applog "ssfarm/internal/log"
	"ssfarm/internal/services"
	gsheet "ssfarm/internal/sheets/google"
	"ssfarm/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting ssfarm-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets is not configured; nothing to export to")
		os.Exit(1)
	}

	ctx := context.Background()
	backend := cli.InitStore(ctx, logger, cfg)

	// The local tier stays empty: the web process owns writes, and only
	// Redis entries are keyed by its invalidation generation.
	var remote *cache.RedisCache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		remote = cache.NewRedisCache(redisClient, cfg.CacheTTL)
	}
	bills := cache.NewBillCache[[]services.CustomerBill](1, 0, remote)
	billingSvc := services.NewBillingService(backend.Store, bills, cfg.BillingConcurrency)

	sheetClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleCredentialsFile, cfg.GoogleCredentialsJSON)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	customers := services.NewCustomerService(backend.Store, billingSvc)
	deliveries := services.NewDeliveryService(backend.Store, billingSvc)
	exporter := services.NewExportService(backend.Store, billingSvc, customers, deliveries, nil, sheetClient)
	w := worker.NewExportWorker(exporter)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Warn("Failed to close store", applog.FieldError, err)
			}
		}
	})

	logger.Info("Performing startup export of recent months...")
	if err := w.ExportRecent(runCtx); err != nil {
		logger.Error("Startup export incomplete", applog.FieldError, err)
	}

	go w.Run(runCtx, cfg.ExportInterval)

	go func() {
		if err := amqpClient.Consume(runCtx, w.Handlers()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"export_interval", cfg.ExportInterval)
	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped")
}
