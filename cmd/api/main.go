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

	"github.com/angelmondragon/listingprice-indexer/api/controllers"
	"github.com/angelmondragon/listingprice-indexer/api/routes"
	"github.com/angelmondragon/listingprice-indexer/internal/bootstrap"
	"github.com/angelmondragon/listingprice-indexer/internal/cron"
	"github.com/angelmondragon/listingprice-indexer/internal/listingprice"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/instance"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
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
			logg.Error(ctx, "error closing indexer resources", err)
		}
	}()

	reader, err := listingprice.NewReader(indexing.Repository, redisClient, cfg.Indexer.CacheTTL, logg)
	requireResource(ctx, logg, "listing price reader", err)

	reindexJob, err := cron.NewReindexJob(cron.ReindexJobParams{
		Logger:   logg,
		Products: indexing.Repository,
		Updater:  indexing.Indexer,
		PageSize: cfg.Cron.ReindexPageSize,
	})
	requireResource(ctx, logg, "reindex job", err)

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	requireResource(ctx, logg, "reindex lock", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Indexer: indexing.Indexer,
			Reader:  reader,
			Reindex: reindexJob,
			Lock:    lock,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(runCtx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server shut down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
