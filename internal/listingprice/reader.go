package listingprice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

// ListingPrices is the read model served to API callers.
type ListingPrices struct {
	ProductID string     `json:"productId"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Entries   []Record   `json:"entries"`
}

// Source loads the persisted cached column for a product or variant id.
type Source interface {
	ResolveCanonical(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	GetListingPrices(ctx context.Context, id uuid.UUID) (*StoredListingPrices, error)
}

// ReadCache is the cache surface used by Reader.
type ReadCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Reader serves listing prices through a read-through cache keyed by canonical id.
type Reader struct {
	source Source
	cache  ReadCache
	ttl    time.Duration
	logg   *logger.Logger
}

// NewReader builds a Reader. A nil cache reads straight from the source.
func NewReader(source Source, cache ReadCache, ttl time.Duration, logg *logger.Logger) (*Reader, error) {
	if source == nil {
		return nil, errors.New("listing price source is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Reader{source: source, cache: cache, ttl: ttl, logg: logg}, nil
}

// Get returns the decoded listing prices for productID. A variant id resolves its parent.
func (r *Reader) Get(ctx context.Context, productID string) (*ListingPrices, error) {
	id, err := ParseID(productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}

	if cached, ok := r.fromCache(ctx, redis.ListingPriceKey(HexID(id))); ok {
		return cached, nil
	}

	// entries are cached under the canonical id only, so a variant needs its parent first
	canonical, err := r.canonicalID(ctx, id)
	if err != nil {
		return nil, err
	}
	if canonical != id {
		if cached, ok := r.fromCache(ctx, redis.ListingPriceKey(HexID(canonical))); ok {
			return cached, nil
		}
	}

	stored, err := r.source.GetListingPrices(ctx, canonical)
	if err != nil {
		return nil, err
	}
	records, err := Decode(stored.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored listing prices are unreadable")
	}
	out := &ListingPrices{
		ProductID: HexID(stored.CanonicalID),
		UpdatedAt: stored.UpdatedAt,
		Entries:   records,
	}
	r.toCache(ctx, redis.ListingPriceKey(out.ProductID), out)
	return out, nil
}

func (r *Reader) canonicalID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	resolved, err := r.source.ResolveCanonical(ctx, []uuid.UUID{id})
	if err != nil {
		return uuid.Nil, err
	}
	canonical, ok := resolved[id]
	if !ok {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrProductNotFound, "product not found")
	}
	return canonical, nil
}

func (r *Reader) fromCache(ctx context.Context, key string) (*ListingPrices, bool) {
	if r.cache == nil {
		return nil, false
	}
	b, ok, err := r.cache.GetBytes(ctx, key)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "listing price cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var out ListingPrices
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (r *Reader) toCache(ctx context.Context, key string, value *ListingPrices) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, b, r.ttl); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "listing price cache write failed")
	}
}
