package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/listingprice-indexer/pkg/instance"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

// DefaultTTL applies when the configured TTL is zero. A marker without expiry
// would pin Redis memory forever.
const DefaultTTL = 72 * time.Hour

var (
	ErrConsumerRequired = errors.New("consumer name is required")
	ErrEventIDRequired  = errors.New("event id is required")
)

// Manager records processed event ids per consumer with SETNX and a TTL.
// Keys look like lpi:idempotency:evt:processed:<consumer>:<event_id> and the
// value is the id of the instance that claimed the event.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	owner string
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, owner: instance.GetID(), now: time.Now}, nil
}

// TTL is how long a processed marker lives.
func (m *Manager) TTL() time.Duration { return m.ttl }

// CheckAndMarkProcessed claims eventID for consumer. It reports true when a
// previous delivery already holds the claim.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.marker(), m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// ProcessedBy returns the marker left by whoever claimed the event, if any.
func (m *Manager) ProcessedBy(ctx context.Context, consumer, eventID string) (string, bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return "", false, err
	}
	v, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return v, true, nil
}

// Delete releases the claim so a redelivery is processed again.
func (m *Manager) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) marker() string {
	return m.owner + "@" + m.now().UTC().Format(time.RFC3339)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	eventID = strings.TrimSpace(eventID)
	switch {
	case consumer == "":
		return "", ErrConsumerRequired
	case eventID == "":
		return "", ErrEventIDRequired
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID), nil
}
