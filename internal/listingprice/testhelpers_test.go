package listingprice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/dbtest"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
)

var testClock = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	client   *db.Client
	repo     *Repository
	cache    *recordingCache
	audit    *recordingAudit
	currency uuid.UUID
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	return &fixture{
		t:        t,
		client:   client,
		repo:     NewRepository(client, outbox.NewService(outbox.NewRepository(client.DB()), nil)),
		cache:    &recordingCache{},
		audit:    &recordingAudit{},
		currency: uuid.New(),
	}
}

func (f *fixture) indexer(clearEmpty bool) *Indexer {
	f.t.Helper()
	idx, err := NewIndexer(IndexerParams{
		Store:      f.repo,
		Cache:      f.cache,
		Audit:      f.audit,
		ClearEmpty: clearEmpty,
		Now:        func() time.Time { return testClock },
	})
	if err != nil {
		f.t.Fatalf("new indexer: %v", err)
	}
	return idx
}

func (f *fixture) product(parent *uuid.UUID) uuid.UUID {
	f.t.Helper()
	p := models.Product{ID: uuid.New(), ParentID: parent, Name: "product"}
	if err := f.client.DB().Create(&p).Error; err != nil {
		f.t.Fatalf("create product: %v", err)
	}
	return p.ID
}

func (f *fixture) quote(variant, rule uuid.UUID, payload string) uuid.UUID {
	f.t.Helper()
	return f.quoteWithTier(variant, rule, payload, nil)
}

func (f *fixture) quoteWithTier(variant, rule uuid.UUID, payload string, quantityEnd *int) uuid.UUID {
	f.t.Helper()
	f.seq++
	q := models.PriceQuote{
		ID:            uuid.New(),
		VariantID:     variant,
		RuleID:        rule,
		CurrencyID:    f.currency,
		Price:         []byte(payload),
		QuantityStart: 1,
		QuantityEnd:   quantityEnd,
		CreatedAt:     testClock.Add(-time.Hour).Add(time.Duration(f.seq) * time.Second),
	}
	if err := f.client.DB().Create(&q).Error; err != nil {
		f.t.Fatalf("create quote: %v", err)
	}
	return q.ID
}

func (f *fixture) cached(id uuid.UUID) models.Product {
	f.t.Helper()
	var p models.Product
	if err := f.client.DB().First(&p, "id = ?", id).Error; err != nil {
		f.t.Fatalf("load product: %v", err)
	}
	return p
}

func (f *fixture) outboxRows() []models.OutboxEvent {
	f.t.Helper()
	var rows []models.OutboxEvent
	if err := f.client.DB().Order("created_at ASC").Find(&rows).Error; err != nil {
		f.t.Fatalf("load outbox: %v", err)
	}
	return rows
}

type recordingCache struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (c *recordingCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, keys...)
	return c.err
}

type recordingAudit struct {
	reports []*Report
	err     error
}

func (a *recordingAudit) Record(_ context.Context, report *Report) error {
	a.reports = append(a.reports, report)
	return a.err
}

// stubStore scripts Store responses for failure paths.
type stubStore struct {
	canonical  map[uuid.UUID]uuid.UUID
	rows       []QuoteRow
	resolveErr error
	loadErr    error
	writeErr   map[uuid.UUID]error
	calls      []string
	writes     []FamilyWrite
}

func (s *stubStore) ResolveCanonical(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.calls = append(s.calls, "resolve")
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	out := map[uuid.UUID]uuid.UUID{}
	for _, id := range ids {
		if c, ok := s.canonical[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *stubStore) LoadQuotes(_ context.Context, _ []uuid.UUID) ([]QuoteRow, error) {
	s.calls = append(s.calls, "load")
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.rows, nil
}

func (s *stubStore) WriteListingPrices(_ context.Context, write FamilyWrite) error {
	s.calls = append(s.calls, "write")
	if err := s.writeErr[write.CanonicalID]; err != nil {
		return err
	}
	s.writes = append(s.writes, write)
	return nil
}

var _ Store = (*stubStore)(nil)
