package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryRedis struct {
	values map[string]string
	setErr error
	delErr error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) DeleteIfValue(_ context.Context, key, expected string) (bool, error) {
	if m.delErr != nil {
		return false, m.delErr
	}
	if v, ok := m.values[key]; !ok || v != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryRedis()
	first, err := NewRedisLock(store, "lpi:cron:lock", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "lpi:cron:lock", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance should not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, ok := store.values["lpi:cron:lock"]; !ok {
		t.Fatal("non-owner release must not delete the key")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockSkipsForeignOwner(t *testing.T) {
	store := newMemoryRedis()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	// the TTL expired and another instance took over
	store.values["k"] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["k"] != "someone-else" {
		t.Fatal("foreign lock must survive")
	}
}

func TestWithLock(t *testing.T) {
	store := newMemoryRedis()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()

	ran := false
	if err := WithLock(ctx, lock, func(context.Context) error { ran = true; return nil }); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatal("fn should run")
	}
	if _, held := store.values["k"]; held {
		t.Fatal("lock should be released")
	}

	store.values["k"] = "other"
	err := WithLock(ctx, lock, func(context.Context) error { t.Fatal("fn must not run"); return nil })
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	store.setErr = errors.New("redis down")
	if err := WithLock(ctx, lock, func(context.Context) error { return nil }); err == nil || errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected acquire error, got %v", err)
	}
}

func TestWithLockReportsReleaseFailure(t *testing.T) {
	store := newMemoryRedis()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	store.delErr = errors.New("redis down")

	err := WithLock(context.Background(), lock, func(context.Context) error { return nil })
	if err == nil || !errors.Is(err, store.delErr) {
		t.Fatalf("expected release error, got %v", err)
	}

	fnErr := errors.New("job failed")
	lock2, _ := NewRedisLock(newMemoryRedis(), "k2", time.Minute)
	if err := WithLock(context.Background(), lock2, func(context.Context) error { return fnErr }); !errors.Is(err, fnErr) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected client error")
	}
	if _, err := NewRedisLock(newMemoryRedis(), "", time.Minute); err == nil {
		t.Fatal("expected key error")
	}
}
