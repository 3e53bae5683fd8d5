package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// ErrNotInitialized is returned by every operation on a zero Client.
var ErrNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client exposes the cache, idempotency and lock primitives the services use.
type Client struct {
	store    cmdable
	scripter redis.Scripter
	raw      *redis.Client
}

type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is the subset used to record processed events.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New connects and pings before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_addr": opts.Addr,
			"redis_db":   opts.DB,
			"pool_size":  opts.PoolSize,
		}), "redis connection established")
	}
	return &Client{store: raw, scripter: raw, raw: raw}, nil
}

func (c *Client) ready() bool {
	return c != nil && c.store != nil
}

// Set stores value under key. A zero ttl keeps the key until it is deleted.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.ready() {
		return ErrNotInitialized
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns the string at key. Missing keys yield redis.Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if !c.ready() {
		return "", ErrNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// GetBytes is Get with the miss folded into the boolean.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.ready() {
		return nil, false, ErrNotInitialized
	}
	b, err := c.store.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return b, true, nil
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if !c.ready() {
		return false, ErrNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if !c.ready() {
		return ErrNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.ready() {
		return ErrNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
