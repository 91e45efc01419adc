package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wecare-insurance/portal/internal/analytics"
	"github.com/wecare-insurance/portal/internal/app"
	jobmetrics "github.com/wecare-insurance/portal/internal/jobs"
	"github.com/wecare-insurance/portal/internal/platform/cache"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/renewals"
	"github.com/wecare-insurance/portal/jobs"
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

	logger := app.NewLogger(cfg).With("component", "worker")
	if !cfg.WorkerCredentials() {
		logger.Warn("WORKER_USERNAME/WORKER_PASSWORD not set, scheduled jobs will be skipped")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	account := &jobs.ServiceAccount{
		Client:   recordsapi.New(cfg.RecordsAPIURL, cfg.RecordsAPITimeout, logger),
		Username: cfg.WorkerUsername,
		Password: cfg.WorkerPassword,
	}
	analyticsService := analytics.NewService(analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL))

	scanJob := jobs.NewRenewalScanJob(account, renewals.NewStore(redisClient), cfg.ExpiringWindowDays, logger, metrics)
	warmupJob := jobs.NewAnalyticsWarmupJob(analyticsService, account, logger, metrics)

	scanTask, err := jobs.NewRenewalScanTask(0)
	if err != nil {
		logger.Error("build renewal scan task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewAnalyticsWarmupTask(0)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRenewalScan, Handler: scanJob.Handle},
			{Type: jobs.TaskAnalyticsWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RenewalScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Populate the badge now instead of waiting for the first cron tick.
	if cfg.WorkerCredentials() {
		client := jobs.NewClient(redisOpts)
		if _, err := client.EnqueueRenewalScan(ctx, 0); err != nil {
			logger.Warn("enqueue initial renewal scan", slog.Any("error", err))
		}
		if err := client.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer metricsServer.Close()
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
