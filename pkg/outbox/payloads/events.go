package payloads

import (
	"time"
)

// ListingPricesUpdatedEvent is emitted after a canonical product's listing prices are rewritten.
type ListingPricesUpdatedEvent struct {
	ProductID  string    `json:"productId"`
	RuleIDs    []string  `json:"ruleIds"`
	EntryCount int       `json:"entryCount"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ListingPricesClearedEvent is emitted when a product lost every base tier quote and its
// listing prices were emptied.
type ListingPricesClearedEvent struct {
	ProductID string    `json:"productId"`
	ClearedAt time.Time `json:"clearedAt"`
}

// PriceChangedEvent is the inbound data carried by catalog price events.
type PriceChangedEvent struct {
	ProductIDs []string `json:"productIds"`
}
