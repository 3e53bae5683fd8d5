package main

import (
	"context"
	"errors"
	"flag"
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
	"github.com/angelmondragon/listingprice-indexer/internal/cron"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/instance"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

const (
	serviceKind            = "cron-worker"
	metricsShutdownTimeout = 5 * time.Second
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobs := flag.String("jobs", "", "comma separated job names for -once (default all)")
	flag.Parse()

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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

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

	registry, err := buildRegistry(cfg, logg, indexing, outbox.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "cron jobs", err)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg), cfg.Cron.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
		"interval":    cfg.Cron.Interval.String(),
		"jobs":        registry.Names(),
	})

	if *once {
		if code := runOnce(runCtx, logg, service, splitNames(*jobs)); code != 0 {
			os.Exit(code)
		}
		return
	}
	if err := runLoop(runCtx, logg, service, cfg.App.MetricsPort); err != nil {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker shutting down gracefully")
}

// runOnce returns the process exit code. A held lock is not a failure: the
// other instance is doing the same work.
func runOnce(ctx context.Context, logg *logger.Logger, service *cron.Service, names []string) int {
	logg.Info(logg.WithField(ctx, "selected", names), "running single cron cycle")
	err := service.RunOnce(ctx, names...)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cron.ErrLockHeld):
		logg.Warn(ctx, "cron lock held elsewhere; nothing run")
		return 0
	default:
		logg.Error(ctx, "cron cycle failed", err)
		return 1
	}
}

func runLoop(ctx context.Context, logg *logger.Logger, service *cron.Service, metricsPort string) error {
	metricsServer := &http.Server{
		Addr:              ":" + metricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
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

	logg.Info(ctx, "starting cron worker")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
