package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = time.Hour

// ErrLockHeld is returned by WithLock when another process owns the lock.
var ErrLockHeld = errors.New("cron lock held by another instance")

// Lock serializes cron runs across processes.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a single key lock whose value is a per-acquire token. The TTL
// bounds how long a crashed holder can block other instances.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// Acquire reports false without error when the key is taken, including by
// this same RedisLock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return false, nil
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release deletes the key only while it still carries our token, so a lock
// that expired and was taken over elsewhere is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	_, err := l.store.DeleteIfValue(ctx, l.key, l.token)
	// on failure the TTL frees the key; keeping the token would block this
	// instance from ever acquiring again
	l.token = ""
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// WithLock runs fn while holding lock and returns ErrLockHeld without calling
// fn when it is owned elsewhere. A release failure surfaces only when fn
// itself succeeded.
func WithLock(ctx context.Context, lock Lock, fn func(ctx context.Context) error) (err error) {
	locked, err := lock.Acquire(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("lock acquire: %w", err)
	case !locked:
		return ErrLockHeld
	}
	defer func() {
		relErr := lock.Release(context.WithoutCancel(ctx))
		if err == nil && relErr != nil {
			err = fmt.Errorf("lock release: %w", relErr)
		}
	}()
	return fn(ctx)
}
