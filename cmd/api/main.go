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

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Notifuse/notifuse/config"
	"github.com/Notifuse/notifuse/internal/database"
	httpHandler "github.com/Notifuse/notifuse/internal/http"
	"github.com/Notifuse/notifuse/internal/metrics"
	"github.com/Notifuse/notifuse/internal/repository"
	"github.com/Notifuse/notifuse/internal/service"
	"github.com/Notifuse/notifuse/pkg/logger"
	"github.com/Notifuse/notifuse/pkg/ratelimiter"
)

// osExit is a variable to allow mocking os.Exit in tests
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

	callLogRepo := repository.NewCallLogRepository(db)
	upstreamEvtRepo := repository.NewUpstreamCallEventRepository(db)
	downstreamRepo := repository.NewDownstreamRepository(db)
	partnerWebhookRepo := repository.NewPartnerWebhookRepository(db, cfg.Ingest.SecretEncryptionKey)
	queueRepo := repository.NewWebhookDeliveryQueueRepository(db)

	enqueuer := service.NewEnqueuer(partnerWebhookRepo, queueRepo, appLogger)
	ingestionService := service.NewIngestionService(
		db,
		callLogRepo,
		upstreamEvtRepo,
		downstreamRepo,
		enqueuer,
		cfg.Ingest.UpstreamSigningSecret,
		appLogger,
	)

	rl := ratelimiter.New()
	rl.SetPolicy("ingest", ratelimiter.BucketPolicy{
		Capacity: cfg.Ingest.RateLimitCapacity,
		Rate:     cfg.Ingest.RateLimitRefillPerSec,
	})

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	ingestionHandler := httpHandler.NewIngestionHandler(ingestionService, rl, appLogger)

	mux := http.NewServeMux()
	mux.Handle("/webhooks/call_completed", ingestionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.WithField("address", srv.Addr).Info("ingestion server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithField("error", err.Error()).Fatal("ingestion server failed")
			osExit(1)
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down ingestion server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithField("error", err.Error()).Error("ingestion server shutdown error")
	}
}
