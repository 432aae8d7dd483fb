package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"ssfarm/internal/amqp"
	"ssfarm/internal/auth"
	"ssfarm/internal/cache"
	"ssfarm/internal/cli"
	"ssfarm/internal/export/pdf"
	apphttp "ssfarm/internal/http"
	applog "ssfarm/internal/log"
	"ssfarm/internal/observability"
	"ssfarm/internal/services"
	"ssfarm/internal/sheets"
	gsheet "ssfarm/internal/sheets/google"
)

const billCacheSize = 256

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx := context.Background()
	backend := cli.InitStore(ctx, logger, cfg)
	store := backend.Store

	if cfg.AdminEmail != "" {
		if err := auth.EnsureAdmin(ctx, store, cfg.AdminEmail, cfg.AdminPasswordHash); err != nil {
			logger.Error("Failed to provision admin user", applog.FieldError, err)
			os.Exit(1)
		}
	}

	ready := map[string]func(context.Context) error{"store": store.Ping}

	// Bills are cached per process; Redis shares them between instances
	// and broadcasts invalidations.
	var (
		redisClient *redis.Client
		remote      *cache.RedisCache
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		remote = cache.NewRedisCache(redisClient, cfg.CacheTTL)
		ready["redis"] = remote.Ping
		logger.Info("Redis bill cache enabled", "addr", cfg.RedisAddr)
	}
	bills := cache.NewBillCache[[]services.CustomerBill](billCacheSize, cfg.CacheTTL, remote)
	cacheManager := cache.NewManager()
	cacheManager.Register(bills.Local())
	cacheManager.StartCleanup(time.Minute)

	billingSvc := services.NewBillingService(store, bills, cfg.BillingConcurrency)

	var (
		amqpClient *amqp.Client
		exportPub  services.ExportPublisher
		sharePub   services.SharePublisher
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, exports will run inline", applog.FieldError, err)
		} else {
			amqpClient = c
			exportPub, sharePub = c, c
			ready["amqp"] = c.Ping
		}
	}

	var sheetWriter sheets.BillSheetWriter
	if cfg.SheetsEnabled() {
		sc, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleCredentialsFile, cfg.GoogleCredentialsJSON)
		if err != nil {
			logger.Warn("Google Sheets unavailable", applog.FieldError, err)
		} else {
			sheetWriter = sc
		}
	}

	customers := services.NewCustomerService(store, billingSvc)
	deliveries := services.NewDeliveryService(store, billingSvc)
	svc := apphttp.Services{
		Billing:    billingSvc,
		Customers:  customers,
		Deliveries: deliveries,
		Payments:   services.NewPaymentService(store, billingSvc),
		Orders:     services.NewOrderService(store, billingSvc),
		Content:    services.NewContentService(store),
		Share: services.NewShareService(billingSvc, sharePub, pdf.NewClient(cfg.GotenbergURL, 30*time.Second), services.FarmProfile{
			Name:   cfg.FarmName,
			Phone:  cfg.FarmPhone,
			UPIVPA: cfg.UPIVPA,
		}),
		Export: services.NewExportService(store, billingSvc, customers, deliveries, exportPub, sheetWriter),
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Services:       svc,
		Auth:           auth.NewService(store, cfg.JWTSecret, cfg.SessionTTL),
		Metrics:        observability.NewMetrics(),
		ReadyChecks:    ready,
		TrustedProxies: cfg.TrustedProxies,
		Production:     cfg.IsProduction(),
		RequestTimeout: cfg.RequestTimeout,
		FarmName:       cfg.FarmName,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		closeAll(logger, amqpClient, redisClient, backend.Cleanup)
	})

	if remote != nil {
		if err := remote.ListenForInvalidation(shutdownCtx, billingSvc.InvalidateLocal); err != nil {
			logger.Warn("Cache invalidation listener not started", applog.FieldError, err)
		}
	}

	logger.Info("Starting ssfarm server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", amqpClient != nil,
		"sheets", sheetWriter != nil,
		"pdf", cfg.GotenbergURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

func closeAll(logger *applog.Logger, amqpClient *amqp.Client, redisClient *redis.Client, cleanup func() error) {
	if amqpClient != nil {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis client", applog.FieldError, err)
		}
	}
	if cleanup != nil {
		if err := cleanup(); err != nil {
			logger.Warn("Failed to close store", applog.FieldError, err)
		}
	}
}
