package idempotency

import (
	"context"
	"errors"
	"testing"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastValue   any
	lastTTL     time.Duration
	lastDeleted string
	values      map[string]string
	getErr      error
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastValue = value
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "lpi:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 72*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "price-events", "evt-1")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}

	if store.lastKey != "lpi:idempotency:evt:processed:price-events:evt-1" {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 72*time.Hour {
		t.Fatalf("unexpected ttl: %s", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_Duplicate(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "price-events", "evt-1")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected duplicate to report already processed")
	}
}

func TestCheckAndMarkProcessed_Error(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "price-events", "evt-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckAndMarkProcessed_Validation(t *testing.T) {
	manager, err := NewManager(&fakeStore{}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), " ", "evt-1"); !errors.Is(err, ErrConsumerRequired) {
		t.Fatalf("expected consumer validation error, got %v", err)
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "price-events", " "); !errors.Is(err, ErrEventIDRequired) {
		t.Fatalf("expected event id validation error, got %v", err)
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected store validation error")
	}
	if _, err := NewManager(&fakeStore{}, -time.Second); err == nil {
		t.Fatal("expected ttl validation error")
	}
}

func TestDeleteProcessed(t *testing.T) {
	store := &fakeStore{}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := manager.Delete(context.Background(), "price-events", "evt-9"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.lastDeleted != "lpi:idempotency:evt:processed:price-events:evt-9" {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}

func TestMarkerRecordsOwnerAndTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	manager.owner = "worker-a"
	manager.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "price-events", "evt-1"); err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if store.lastValue != "worker-a@2026-03-02T10:00:00Z" {
		t.Fatalf("unexpected marker %v", store.lastValue)
	}
}

func TestZeroTTLUsesDefault(t *testing.T) {
	manager, err := NewManager(&fakeStore{}, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if manager.TTL() != DefaultTTL {
		t.Fatalf("expected default ttl, got %s", manager.TTL())
	}
}

func TestProcessedBy(t *testing.T) {
	store := &fakeStore{values: map[string]string{
		"lpi:idempotency:evt:processed:price-events:evt-1": "worker-a@2026-03-02T10:00:00Z",
	}}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	owner, ok, err := manager.ProcessedBy(context.Background(), "price-events", "evt-1")
	if err != nil || !ok || !strings.HasPrefix(owner, "worker-a@") {
		t.Fatalf("unexpected result owner=%q ok=%v err=%v", owner, ok, err)
	}
	if _, ok, err := manager.ProcessedBy(context.Background(), "price-events", "evt-2"); err != nil || ok {
		t.Fatalf("expected missing marker, got ok=%v err=%v", ok, err)
	}

	store.getErr = errors.New("redis down")
	if _, _, err := manager.ProcessedBy(context.Background(), "price-events", "evt-1"); err == nil {
		t.Fatal("expected store error")
	}
}
