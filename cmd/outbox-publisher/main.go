package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/instance"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/registry"
	"github.com/angelmondragon/listingprice-indexer/pkg/pubsub"
)

const (
	serviceKind            = "outbox-publisher"
	metricsShutdownTimeout = 5 * time.Second
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	requireResource(ctx, logg, "event registry", err)
	requireResource(ctx, logg, "pubsub topics", pubsubClient.EnsureTopics(ctx, eventRegistry.Topics()...))

	repo := outbox.NewRepository(dbClient.DB())
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: repo,
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	requireResource(ctx, logg, "outbox publisher", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
		"topics":      eventRegistry.Topics(),
	})
	if backlog, err := repo.CountUnpublished(runCtx); err == nil {
		logg.Info(logg.WithField(runCtx, "backlog", backlog), "outbox backlog at startup")
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), metricsShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logg.Info(runCtx, "starting outbox publisher")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "outbox publisher shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
