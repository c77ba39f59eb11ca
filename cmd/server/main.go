package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/freightcrm/lead-assignment-engine/internal/api"
	"github.com/freightcrm/lead-assignment-engine/internal/config"
	"github.com/freightcrm/lead-assignment-engine/internal/db"
	"github.com/freightcrm/lead-assignment-engine/internal/engine"
	"github.com/freightcrm/lead-assignment-engine/internal/metrics"
	"github.com/freightcrm/lead-assignment-engine/internal/notify"
	"github.com/freightcrm/lead-assignment-engine/internal/repository"
	"github.com/freightcrm/lead-assignment-engine/internal/strategy"
	"github.com/freightcrm/lead-assignment-engine/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := repository.NewPgStore(pool)
	strategies := strategy.NewTable(store, store)

	var notifier notify.Notifier
	if cfg.NotifySendURL != "" {
		notifier = notify.NewEmailNotifier(
			store, cfg.NotifySendURL, cfg.AppBaseURL,
			cfg.NotifyTimeout, cfg.NotifyRatePerSec,
		)
	}

	eng := engine.New(store, strategies, notifier, cfg.BatchSize, logger, m.EngineHooks())

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup

	if cfg.BatchInterval > 0 {
		batchW := worker.NewBatchWorker(eng, cfg.BatchInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			batchW.Run(workerCtx)
		}()
	}

	sweepW := worker.NewSweepWorker(store, cfg.SweepInterval, cfg.StaleAfter, logger)
	sweepW.OnRequeued = func(n int64) { m.StaleRequeued.Add(float64(n)) }
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweepW.Run(workerCtx)
	}()

	// ---- HTTP server ----
	router := api.NewRouter(eng, store, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal background workers to stop triggering new batches.
	cancelWorkers()

	// 3. Wait for any in-flight batch to finish its current item.
	wg.Wait()

	logger.Info("server stopped cleanly")
}
