package main

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/listingprice-indexer/internal/bootstrap"
	"github.com/angelmondragon/listingprice-indexer/internal/cron"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
)

// buildRegistry wires the scheduled jobs in the order a cycle runs them.
func buildRegistry(cfg *config.Config, logg *logger.Logger, indexing *bootstrap.Indexing, outboxRepo *outbox.Repository) (*cron.Registry, error) {
	reindex, err := cron.NewReindexJob(cron.ReindexJobParams{
		Logger:   logg,
		Products: indexing.Repository,
		Updater:  indexing.Indexer,
		PageSize: cfg.Cron.ReindexPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("reindex job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Repository:    outboxRepo,
		Retention:     cfg.Cron.OutboxRetention,
		DeadRetention: cfg.Cron.OutboxDeadRetention,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{reindex, retention} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// splitNames parses the -jobs flag, dropping blanks.
func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// lockKey scopes the default key per environment so staging and prod
// sharing a redis do not block each other.
func lockKey(cfg *config.Config) string {
	if key := strings.TrimSpace(cfg.Cron.LockKey); key != "" {
		return key
	}
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	return "lpi:cron:lock:" + env
}
