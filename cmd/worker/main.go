package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/app"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp/pgledger"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/cache"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/db"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/portal"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/writeoff"
	"github.com/ericsoloffconsulting/service-inv-write-off/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportCache := writeoff.NewCache(redisClient, cfg.ReportCacheTTL)
	writeoffRepo := writeoff.NewRepository(pool)
	writeoffService := writeoff.NewService(writeoffRepo, reportCache, logger, cfg.ReportRowBudget)

	ledger := pgledger.New(pool, logger)
	portalRepo := portal.NewRepository(pool)
	portalService := portal.NewService(portalRepo, ledger, reportCache, logger, portal.Config{
		CounterpartyID:       cfg.WriteOffCounterpartyID,
		WriteOffAccountID:    cfg.WriteOffAccountID,
		WriteOffDepartmentID: cfg.WriteOffDepartmentID,
		ClearingAccountID:    cfg.ClearingAccountID,
		PaymentMethodID:      cfg.WriteOffPaymentMethodID,
	})

	warmupJob := jobs.NewReportWarmupJob(writeoffService, logger, nil)
	sweepJob := jobs.NewQueuedSweepJob(portalService, logger, nil, cfg.SweepQueuedAge, cfg.GovernanceUnits)

	warmupTask, err := jobs.NewReportWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewQueuedSweepTask(0, 0)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskQueuedSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
