package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
)

func TestGetBytesMissingKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	b, ok, err := client.GetBytes(ctx, ListingPriceKey("abc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || b != nil {
		t.Fatalf("expected miss, got ok=%v bytes=%q", ok, b)
	}

	if err := client.Set(ctx, ListingPriceKey("abc"), []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	b, ok, err = client.GetBytes(ctx, ListingPriceKey("abc"))
	if err != nil || !ok || string(b) != "[]" {
		t.Fatalf("expected hit with [] got ok=%v bytes=%q err=%v", ok, b, err)
	}

	if err := client.Del(ctx, ListingPriceKey("abc")); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, ListingPriceKey("abc")); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestZeroClientReturnsNotInitialized(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
	if _, _, err := client.GetBytes(context.Background(), "k"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from GetBytes, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("price-events", "msg-1"); got != "lpi:idempotency:price-events:msg-1" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.ListingPriceKey("ABCDEF"); got != "lpi:listing_prices:abcdef" {
		t.Fatalf("unexpected listing price key %s", got)
	}
	if got := client.IdempotencyKey("scope", ""); got != "lpi:idempotency:scope" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configWith("", "")); !errors.Is(err, errTargetRequired) {
		t.Fatalf("expected target error, got %v", err)
	}
	opts, err := optionsFromConfig(configWith("redis://localhost:6379/3", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

func TestOptionsFromConfigAddressFallsBackToSettings(t *testing.T) {
	cfg := configWith("", "cache:6380")
	cfg.DB = 2
	cfg.DialTimeout = 3 * time.Second
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestDeleteIfValue(t *testing.T) {
	ctx := context.Background()
	store := newMockCmdable()
	client := &Client{store: store, scripter: &fakeScripter{data: store.data}}
	store.data["lpi:lock"] = "owner-a"

	deleted, err := client.DeleteIfValue(ctx, "lpi:lock", "owner-b")
	if err != nil || deleted {
		t.Fatalf("foreign value must survive, deleted=%v err=%v", deleted, err)
	}
	deleted, err = client.DeleteIfValue(ctx, "lpi:lock", "owner-a")
	if err != nil || !deleted {
		t.Fatalf("expected delete, deleted=%v err=%v", deleted, err)
	}
	if _, ok := store.data["lpi:lock"]; ok {
		t.Fatal("key should be gone")
	}

	if _, err := (&Client{store: store}).DeleteIfValue(ctx, "k", "v"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized without scripter, got %v", err)
	}
}

// fakeScripter evaluates the compare-and-delete script against the mock data.
type fakeScripter struct {
	data map[string]string
}

func (f *fakeScripter) run(keys []string, args ...any) *redis.Cmd {
	if f.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalRO(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalShaRO(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeScripter) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func configWith(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr, PoolSize: 7}
}
