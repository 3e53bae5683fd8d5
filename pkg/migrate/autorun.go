package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// autoMigrateReason explains why a process applies migrations at startup, or
// returns "" when it should not. The embedded sqlite database is always
// migrated since nothing else will create its schema.
func autoMigrateReason(cfg *config.Config) string {
	switch {
	case cfg.DB.IsSQLite():
		return "sqlite"
	case cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate:
		return "dev_auto_migrate"
	}
	return ""
}

// MaybeRunDev applies the embedded migrations when autoMigrateReason allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	reason := autoMigrateReason(cfg)
	if reason == "" {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dialect := DialectFor(client.Dialect())

	if err := Up(ctx, sqlDB, dialect); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	version, err := Version(ctx, sqlDB, dialect)
	if err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"dialect": dialect,
		"reason":  reason,
		"version": version,
	}), "embedded migrations applied")
	return nil
}
