package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/app"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp/pgledger"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/observability"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/cache"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/db"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/portal"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/view"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/writeoff"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	reportCache := writeoff.NewCache(redisClient, cfg.ReportCacheTTL)

	writeoffRepo := writeoff.NewRepository(dbpool)
	writeoffService := writeoff.NewService(writeoffRepo, reportCache, logger, cfg.ReportRowBudget)
	writeoffHandler := writeoff.NewHandler(logger, writeoffService, templates)

	ledger := pgledger.New(dbpool, logger)
	portalRepo := portal.NewRepository(dbpool)
	portalService := portal.NewService(portalRepo, ledger, reportCache, logger, portal.Config{
		CounterpartyID:       cfg.WriteOffCounterpartyID,
		WriteOffAccountID:    cfg.WriteOffAccountID,
		WriteOffDepartmentID: cfg.WriteOffDepartmentID,
		ClearingAccountID:    cfg.ClearingAccountID,
		PaymentMethodID:      cfg.WriteOffPaymentMethodID,
	})
	portalHandler := portal.NewHandler(logger, portalService, templates, cfg.GovernanceUnits)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		WriteOffHandler: writeoffHandler,
		PortalHandler:   portalHandler,
		Metrics:         metrics,
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
