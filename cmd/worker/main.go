package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/document"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/limits"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/products"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/rates"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	productService := products.NewService(products.NewRepository(pool))
	limitService := limits.NewService(limits.NewRepository(pool), redisClient, cfg.DiscountLimitTTL, logger)
	rateService := rates.NewService(rates.NewRepository(pool), redisClient, cfg.DiscountLimitTTL, logger)
	documentService := document.NewService(document.NewRepository(pool), productService, limitService, rateService, logger)

	rescanTask, err := jobs.NewApprovalRescanTask(jobs.ApprovalRescanPayload{})
	if err != nil {
		logger.Error("build rescan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskApprovalRescan, Handler: jobs.NewApprovalRescanHandler(documentService, logger)},
			{Type: jobs.TaskRatesRefresh, Handler: jobs.NewRatesRefreshHandler(rateService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: jobs.NewRatesRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 6 * * *", Task: rescanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
