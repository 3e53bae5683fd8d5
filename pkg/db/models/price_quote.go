package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/listingprice-indexer/pkg/db/types"
)

// PriceQuote is one materialized price for a variant under a pricing rule and currency.
// QuantityEnd is nil for the unbounded base tier; bounded rows are volume tiers.
type PriceQuote struct {
	ID            uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	VariantID     uuid.UUID    `gorm:"column:variant_id;type:uuid;not null;index"`
	RuleID        uuid.UUID    `gorm:"column:rule_id;type:uuid;not null"`
	CurrencyID    uuid.UUID    `gorm:"column:currency_id;type:uuid;not null"`
	Price         dbtypes.JSON `gorm:"column:price;type:jsonb;not null"`
	QuantityStart int          `gorm:"column:quantity_start;not null;default:1"`
	QuantityEnd   *int         `gorm:"column:quantity_end"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (PriceQuote) TableName() string { return "product_prices" }

// BeforeCreate assigns a primary key when the caller left it empty.
func (q *PriceQuote) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// IsBaseTier reports whether the quote has no upper quantity bound.
func (q PriceQuote) IsBaseTier() bool {
	return q.QuantityEnd == nil
}
