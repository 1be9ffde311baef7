package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/approval"
	"github.com/meridian-crm/meridian-crm/internal/document"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/limits"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/products"
	"github.com/meridian-crm/meridian-crm/internal/masterdata/rates"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	productService := products.NewService(products.NewRepository(pool))
	limitService := limits.NewService(limits.NewRepository(pool), redisClient, cfg.DiscountLimitTTL, logger)
	rateService := rates.NewService(rates.NewRepository(pool), redisClient, cfg.DiscountLimitTTL, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client", slog.Any("error", err))
	} else {
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
	}

	documentRepo := document.NewRepository(pool)
	documentService := document.NewService(documentRepo, productService, limitService, rateService, logger)
	documentHandler := document.NewHandler(logger, documentService, jobsClient)

	approvalRepo := approval.NewRepository(pool)
	approvalService := approval.NewService(approvalRepo, documentRepo, logger)
	approvalHandler := approval.NewHandler(logger, approvalService)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		DocumentHandler: documentHandler,
		ApprovalHandler: approvalHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
