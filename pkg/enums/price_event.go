package enums

import "slices"

// PriceEventType identifies inbound catalog events that invalidate listing prices.
type PriceEventType string

const (
	PriceEventProductPriceWritten PriceEventType = "product_price.written"
	PriceEventProductPriceDeleted PriceEventType = "product_price.deleted"
	PriceEventProductWritten      PriceEventType = "product.written"
)

var indexablePriceEvents = []PriceEventType{
	PriceEventProductPriceWritten,
	PriceEventProductPriceDeleted,
	PriceEventProductWritten,
}

// TriggersReindex reports whether the event should recompute listing prices.
func (e PriceEventType) TriggersReindex() bool {
	return slices.Contains(indexablePriceEvents, e)
}
