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
	"go.uber.org/zap"

	"planahead/internal/auth"
	"planahead/internal/config"
	"planahead/internal/db"
	httpx "planahead/internal/http"
	"planahead/internal/jobs"
	"planahead/internal/logger"
	"planahead/internal/observability"
	"planahead/internal/place"
	"planahead/internal/placesearch"
	"planahead/internal/plan"
)

const serviceName = "planahead"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, zap.String("service", serviceName))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitProviders(ctx, observability.Options{
		ServiceName:  serviceName,
		MetricsAddr:  cfg.MetricsAddr,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, log)
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	gdb, err := db.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return err
	}

	places := &place.Repository{DB: gdb, Logger: log, Metrics: metrics}
	plans := &plan.Service{DB: gdb, Places: places, Logger: log, Metrics: metrics}
	jobsRepo := &jobs.Repo{DB: gdb}

	if cfg.GoogleMapsAPIKey == "" {
		log.Warn("GOOGLE_MAPS_API_KEY not set, place search requests will fail")
	}

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:        gdb,
		JWT:       auth.NewJWT(cfg.JWTSecret),
		Whitelist: &auth.Whitelist{DB: gdb},
		Plans:     plans,
		Reminders: jobsRepo,
		Places:    placesearch.NewClient(cfg.GoogleMapsAPIKey, log),
		Logger:    log,
		Metrics:   metrics,
	})

	if cfg.WorkerEnabled {
		worker := &jobs.Worker{
			ID:        "worker-" + uuid.NewString(),
			Queue:     jobsRepo,
			Reminders: &jobs.ReminderStore{DB: gdb},
			Logger:    log,
			Metrics:   metrics,
		}
		go worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("telemetry shutdown", zap.Error(err))
	}
	return nil
}
