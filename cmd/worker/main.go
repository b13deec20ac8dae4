package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Notifuse/notifuse/config"
	"github.com/Notifuse/notifuse/internal/database"
	"github.com/Notifuse/notifuse/internal/deadletter"
	"github.com/Notifuse/notifuse/internal/metrics"
	"github.com/Notifuse/notifuse/internal/repository"
	"github.com/Notifuse/notifuse/internal/retry"
	"github.com/Notifuse/notifuse/internal/service"
	"github.com/Notifuse/notifuse/pkg/logger"
)

var osExit = os.Exit

func main() {
	appLogger := logger.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		appLogger.WithField("error", err.Error()).Fatal("failed to load configuration")
		osExit(1)
		return
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		appLogger.WithField("error", err.Error()).Error("failed to connect to database")
		osExit(2)
		return
	}
	defer db.Close()

	if err := database.InitializeSchema(db); err != nil {
		appLogger.WithField("error", err.Error()).Error("failed to initialize schema")
		osExit(2)
		return
	}

	queueRepo := repository.NewWebhookDeliveryQueueRepository(db)
	auditRepo := repository.NewDeliveryAttemptLogRepository(db)

	identity := fmt.Sprintf("worker-%d-%s", os.Getpid(), uuid.New().String())

	worker := service.NewWebhookDeliveryWorker(queueRepo, auditRepo, db, appLogger, identity, service.WorkerConfig{
		PollInterval:            cfg.Worker.PollInterval,
		BatchSize:               cfg.Worker.BatchSize,
		MaxConcurrentDeliveries: cfg.Worker.MaxConcurrentDeliveries,
		HTTPTimeout:             cfg.Worker.HTTPTimeout,
		RetryPolicy: retry.Policy{
			BaseDelay:   cfg.Worker.RetryBaseDelay,
			MaxDelay:    cfg.Worker.RetryMaxDelay,
			MaxAttempts: cfg.Worker.RetryMaxAttempts,
		},
		DeadLetterAlertPolicy: deadletter.NewPolicy(),
	})

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.WithField("address", metricsSrv.Addr).Info("worker metrics server starting")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithField("error", err.Error()).Error("metrics server failed")
		}
	}()

	appLogger.WithField("identity", identity).Info("delivery worker starting")
	worker.Start(ctx)

	_ = metricsSrv.Close()
	appLogger.Info("delivery worker stopped")
}
