package enums

import "slices"

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const AggregateProduct OutboxAggregateType = "product"

var outboxAggregateTypes = []OutboxAggregateType{AggregateProduct}

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(outboxAggregateTypes, a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", outboxAggregateTypes, value)
}

// OutboxEventType names events emitted through the outbox. Every event type
// belongs to exactly one aggregate.
type OutboxEventType string

const (
	EventListingPricesUpdated OutboxEventType = "listing_prices.updated"
	EventListingPricesCleared OutboxEventType = "listing_prices.cleared"
)

var outboxEventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventListingPricesUpdated: AggregateProduct,
	EventListingPricesCleared: AggregateProduct,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := outboxEventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event is keyed by, or "" when unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return outboxEventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("outbox event type", []OutboxEventType{EventListingPricesUpdated, EventListingPricesCleared}, value)
}
