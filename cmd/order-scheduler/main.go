package main

import (
	"context"
	"os"
	"time"

	"ssfarm/internal/cli"
	applog "ssfarm/internal/log"
	"ssfarm/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentScheduler)

	logger.Info("Starting order-scheduler", "interval", cfg.SchedulerInterval)

	backend := cli.InitStore(context.Background(), logger, cfg)
	scheduler := services.NewOrderScheduler(backend.Store, cfg.SchedulerInterval)

	// A single run for cron-style deployments.
	if len(os.Args) > 1 && os.Args[1] == "once" {
		n, err := scheduler.CreateNextDayOrders(context.Background(), time.Now())
		if backend.Cleanup != nil {
			_ = backend.Cleanup()
		}
		if err != nil {
			logger.Error("Order scheduling failed", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Order scheduling done", applog.FieldCount, n)
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Failed to stop scheduler", applog.FieldError, err)
		}
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Warn("Failed to close store", applog.FieldError, err)
			}
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Order scheduler stopped")
}
