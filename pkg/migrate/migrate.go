package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"

	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"

	embeddedDir = "migrations"
)

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps dialect and base FS in package globals
var gooseMu sync.Mutex

// Run executes a goose command against migrations in dir on disk.
func Run(ctx context.Context, db *sql.DB, dialect, dir, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialectOrDefault(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Up applies the migrations compiled into the binary.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialectOrDefault(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, embeddedDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect, dir, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialectOrDefault(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil

	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil

	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// DialectFor maps a gorm dialector name to the goose dialect.
func DialectFor(gormDialect string) string {
	if gormDialect == "sqlite" {
		return DialectSQLite
	}
	return DialectPostgres
}

func dialectOrDefault(dialect string) string {
	if dialect == "" {
		return DialectPostgres
	}
	return dialect
}

// Version returns the latest applied migration version.
func Version(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialectOrDefault(dialect)); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}
