// Package dbtest opens throwaway sqlite databases with the embedded schema applied.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/migrate"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// Open returns a client backed by a private in-memory sqlite database with all migrations applied.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", nameReplacer.Replace(t.Name()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	// a single connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Up(context.Background(), sqlDB, migrate.DialectSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db.NewFromGorm(conn)
}
