package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// Client owns the shared GORM connection pool.
type Client struct {
	conn *gorm.DB
}

// Pinger is the health check surface shared by every backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

var errDSNRequired = errors.New("database DSN is required")

// New opens the configured database and applies the pool limits.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errDSNRequired
	}

	conn, err := gorm.Open(dialector(cfg), &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	limits := configurePool(sqlDB, cfg)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":         conn.Dialector.Name(),
			"max_open_conns": limits,
		}), "database connection established")
	}
	return &Client{conn: conn}, nil
}

// NewFromGorm wraps an already opened connection.
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialector(cfg config.DBConfig) gorm.Dialector {
	if cfg.IsSQLite() {
		return sqlite.Open(cfg.DSN)
	}
	return postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	})
}

// configurePool applies the pool limits and returns the effective open
// connection cap (0 means unlimited).
func configurePool(sqlDB *sql.DB, cfg config.DBConfig) int {
	if cfg.IsSQLite() {
		// one writer keeps the embedded database clear of SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		return 1
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return sqlDB.Stats().MaxOpenConnections
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Dialect names the active gorm dialect, "postgres" or "sqlite".
func (c *Client) Dialect() string {
	return c.conn.Dialector.Name()
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction. Any error from fn rolls back, as does a
// panic, which is re-raised after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
