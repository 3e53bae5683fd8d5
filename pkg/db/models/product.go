package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/listingprice-indexer/pkg/db/types"
)

// Product is a catalog row. Rows with a parent are variants of that parent.
type Product struct {
	ID                     uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	ParentID               *uuid.UUID   `gorm:"column:parent_id;type:uuid"`
	Name                   string       `gorm:"column:name;not null"`
	ListingPrices          dbtypes.JSON `gorm:"column:listing_prices;type:jsonb"`
	ListingPricesUpdatedAt *time.Time   `gorm:"column:listing_prices_updated_at"`
	Prices                 []PriceQuote `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// BeforeCreate assigns a primary key when the caller left it empty.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CanonicalID returns the parent id for variants and the row id otherwise.
func (p Product) CanonicalID() uuid.UUID {
	if p.ParentID != nil && *p.ParentID != uuid.Nil {
		return *p.ParentID
	}
	return p.ID
}

// IsVariant reports whether the product inherits identity from a parent.
func (p Product) IsVariant() bool {
	return p.ParentID != nil && *p.ParentID != uuid.Nil
}
