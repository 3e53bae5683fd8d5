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

	"github.com/angelmondragon/listingprice-indexer/internal/bootstrap"
	"github.com/angelmondragon/listingprice-indexer/internal/consumer"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/instance"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/idempotency"
	"github.com/angelmondragon/listingprice-indexer/pkg/pubsub"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "indexer-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "indexer-worker"

	logg = logger.New(logger.Options{
		ServiceName: "indexer-worker",
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.PriceEventsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "price events subscription", errors.New("subscription not configured"))
	}

	indexing, err := bootstrap.NewIndexing(ctx, bootstrap.IndexingParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Cache:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	requireResource(ctx, logg, "listing price indexer", err)
	defer func() {
		if err := indexing.Close(); err != nil {
			logg.Error(ctx, "failed to close indexer resources", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	service, err := consumer.NewService(subscription, indexing.Indexer, manager, cfg.Indexer.MaxBatchSize, logg)
	requireResource(ctx, logg, "price event consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return service.Run(groupCtx)
	})
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

	logg.Info(runCtx, "indexer worker ready")

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "indexer worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "indexer worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
