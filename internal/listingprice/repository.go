package listingprice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	dbtypes "github.com/angelmondragon/listingprice-indexer/pkg/db/types"
	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/payloads"
)

// ErrProductNotFound is returned when a write or lookup targets a missing product row.
var ErrProductNotFound = errors.New("product not found")

// Store is the read/write dependency of the indexer.
type Store interface {
	ResolveCanonical(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	LoadQuotes(ctx context.Context, canonicalIDs []uuid.UUID) ([]QuoteRow, error)
	WriteListingPrices(ctx context.Context, write FamilyWrite) error
}

// FamilyWrite is one canonical product's new cached column.
type FamilyWrite struct {
	CanonicalID uuid.UUID
	Data        []byte
	RuleIDs     []uuid.UUID
	At          time.Time
}

// Cleared reports whether the write empties the column.
func (w FamilyWrite) Cleared() bool {
	return len(w.RuleIDs) == 0
}

// Emitter queues domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Repository is the gorm-backed Store.
type Repository struct {
	client  *db.Client
	emitter Emitter
}

// NewRepository builds a repository. A nil emitter skips outbox events.
func NewRepository(client *db.Client, emitter Emitter) *Repository {
	return &Repository{client: client, emitter: emitter}
}

type productIdentity struct {
	ID       uuid.UUID  `gorm:"column:id"`
	ParentID *uuid.UUID `gorm:"column:parent_id"`
}

// ResolveCanonical maps every known id to its parent id, or itself for canonical products.
// Unknown ids are absent from the result.
func (r *Repository) ResolveCanonical(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []productIdentity
	if err := r.client.DB().WithContext(ctx).
		Model(&models.Product{}).
		Select("id", "parent_id").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve canonical product ids")
	}
	for _, row := range rows {
		canonical := row.ID
		if row.ParentID != nil && *row.ParentID != uuid.Nil {
			canonical = *row.ParentID
		}
		out[row.ID] = canonical
	}
	return out, nil
}

// LoadQuotes fetches every base tier quote of the given families in one query, in load order.
func (r *Repository) LoadQuotes(ctx context.Context, canonicalIDs []uuid.UUID) ([]QuoteRow, error) {
	if len(canonicalIDs) == 0 {
		return nil, nil
	}
	var rows []QuoteRow
	if err := r.client.DB().WithContext(ctx).
		Table("product_prices AS pp").
		Select("pp.id, pp.variant_id, COALESCE(p.parent_id, p.id) AS canonical_id, pp.rule_id, pp.currency_id, pp.price").
		Joins("JOIN products p ON p.id = pp.variant_id").
		Where("COALESCE(p.parent_id, p.id) IN ?", canonicalIDs).
		Where("pp.quantity_end IS NULL").
		Order("pp.created_at ASC").
		Order("pp.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price quotes")
	}
	return rows, nil
}

// WriteListingPrices replaces the cached column and queues the matching outbox event atomically.
func (r *Repository) WriteListingPrices(ctx context.Context, write FamilyWrite) error {
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ?", write.CanonicalID).
			Updates(map[string]any{
				"listing_prices":            dbtypes.JSON(write.Data),
				"listing_prices_updated_at": write.At,
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update listing prices")
		}
		if res.RowsAffected == 0 {
			return ErrProductNotFound
		}
		if r.emitter == nil {
			return nil
		}
		if err := r.emitter.Emit(ctx, tx, domainEventFor(write)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue listing prices event")
		}
		return nil
	})
}

func domainEventFor(write FamilyWrite) outbox.DomainEvent {
	productID := HexID(write.CanonicalID)
	if write.Cleared() {
		return outbox.DomainEvent{
			EventType:     enums.EventListingPricesCleared,
			AggregateType: enums.AggregateProduct,
			AggregateID:   write.CanonicalID,
			Data:          payloads.ListingPricesClearedEvent{ProductID: productID, ClearedAt: write.At},
			OccurredAt:    write.At,
		}
	}
	ruleIDs := make([]string, 0, len(write.RuleIDs))
	for _, id := range write.RuleIDs {
		ruleIDs = append(ruleIDs, HexID(id))
	}
	return outbox.DomainEvent{
		EventType:     enums.EventListingPricesUpdated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   write.CanonicalID,
		Data: payloads.ListingPricesUpdatedEvent{
			ProductID:  productID,
			RuleIDs:    ruleIDs,
			EntryCount: len(ruleIDs),
			UpdatedAt:  write.At,
		},
		OccurredAt: write.At,
	}
}

// ListCanonicalIDs pages through canonical products by id.
func (r *Repository) ListCanonicalIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	q := r.client.DB().WithContext(ctx).
		Model(&models.Product{}).
		Where("parent_id IS NULL")
	if after != uuid.Nil {
		q = q.Where("id > ?", after)
	}
	var ids []uuid.UUID
	if err := q.Order("id ASC").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list canonical products")
	}
	return ids, nil
}

// StoredListingPrices is the cached column as persisted for a canonical product.
type StoredListingPrices struct {
	CanonicalID uuid.UUID
	Data        dbtypes.JSON
	UpdatedAt   *time.Time
}

// GetListingPrices returns the cached column for id, folding a variant to its parent.
func (r *Repository) GetListingPrices(ctx context.Context, id uuid.UUID) (*StoredListingPrices, error) {
	product, err := r.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.IsVariant() {
		if product, err = r.findProduct(ctx, product.CanonicalID()); err != nil {
			return nil, err
		}
	}
	return &StoredListingPrices{
		CanonicalID: product.ID,
		Data:        product.ListingPrices,
		UpdatedAt:   product.ListingPricesUpdatedAt,
	}, nil
}

func (r *Repository) findProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.client.DB().WithContext(ctx).
		Select("id", "parent_id", "listing_prices", "listing_prices_updated_at").
		First(&product, "id = ?", id).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrProductNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
