package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/oncall-scheduler/internal/application"
	"github.com/example/oncall-scheduler/internal/autopopulate"
	"github.com/example/oncall-scheduler/internal/config"
	httptransport "github.com/example/oncall-scheduler/internal/http"
	"github.com/example/oncall-scheduler/internal/logging"
	"github.com/example/oncall-scheduler/internal/persistence/sqlite"
	"github.com/example/oncall-scheduler/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	poolConfig := sqlite.DefaultConfig(cfg.DatabasePath)
	if cfg.BusyTimeout > 0 {
		poolConfig.BusyTimeout = cfg.BusyTimeout
	}
	pool, err := sqlite.NewConnectionPool(poolConfig)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	scheduleRepo := sqlite.NewScheduleRepository(pool, now)
	eventRepo := sqlite.NewEventRepository(pool)
	subscriptionRepo := sqlite.NewSubscriptionRepository(pool)
	storeProvider := sqlite.NewStoreProvider(pool)

	engine := scheduler.NewEngine(idGenerator, idGenerator, logger)

	scheduleService := application.NewScheduleService(scheduleRepo, idGenerator, logger)
	populateService := application.NewPopulateService(scheduleRepo, storeProvider, engine, now, logger)
	eventService := application.NewEventService(eventRepo, idGenerator, logger)
	oncallService := application.NewOncallService(eventRepo, subscriptionRepo, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:  httptransport.NewScheduleHandler(scheduleService, populateService, logger),
		Events:     httptransport.NewEventHandler(eventService, logger),
		Oncall:     httptransport.NewOncallHandler(oncallService, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	runner := autopopulate.NewRunner(populateService, cfg.PopulateCron, 10*time.Minute, logger)
	if err := runner.Start(ctx); err != nil {
		logger.Error("failed to start auto populate", "error", err)
		os.Exit(1)
	}
	defer runner.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("oncall API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
