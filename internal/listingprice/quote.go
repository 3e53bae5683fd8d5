package listingprice

import (
	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/listingprice-indexer/pkg/db/types"
)

// QuoteRow is one base tier price row as loaded from storage, already folded to its family.
type QuoteRow struct {
	ID          uuid.UUID    `gorm:"column:id"`
	VariantID   uuid.UUID    `gorm:"column:variant_id"`
	CanonicalID uuid.UUID    `gorm:"column:canonical_id"`
	RuleID      uuid.UUID    `gorm:"column:rule_id"`
	CurrencyID  uuid.UUID    `gorm:"column:currency_id"`
	Price       dbtypes.JSON `gorm:"column:price"`
}

// Quote is a normalized QuoteRow. Payload keeps the stored price bytes for the cached column.
type Quote struct {
	ID          uuid.UUID
	VariantID   uuid.UUID
	CanonicalID uuid.UUID
	RuleID      uuid.UUID
	CurrencyID  uuid.UUID
	Price       Price
	Payload     []byte
}

// Normalize decodes the row's price payload.
func (r QuoteRow) Normalize() (Quote, error) {
	price, err := DecodePrice(r.Price, r.CurrencyID)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ID:          r.ID,
		VariantID:   r.VariantID,
		CanonicalID: r.CanonicalID,
		RuleID:      r.RuleID,
		CurrencyID:  r.CurrencyID,
		Price:       price,
		Payload:     []byte(r.Price),
	}, nil
}
