package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/payloads"
)

// EventDescriptor routes one outbox event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is a validated outbox row with its decoded payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry validates outbox rows before they are published. Payloads are
// decoded by envelope version, so a row written by an older build still resolves.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NewEventRegistry routes every listing price event to the configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.ListingPricesTopic)
	if topic == "" {
		return nil, errors.New("listing prices topic is required")
	}

	reg := &EventRegistry{
		routes:   map[enums.OutboxEventType]EventDescriptor{},
		decoders: NewDecoderRegistry(),
	}
	reg.add(enums.EventListingPricesUpdated, topic, JSONDecoder[payloads.ListingPricesUpdatedEvent]())
	reg.add(enums.EventListingPricesCleared, topic, JSONDecoder[payloads.ListingPricesClearedEvent]())
	return reg, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, topic string, decode Decoder) {
	r.routes[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: eventType.Aggregate(),
		Topic:         topic,
	}
	r.decoders.Register(string(eventType), outbox.EnvelopeVersion, decode)
}

// Topics returns the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for _, desc := range r.routes {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks routing and decodes the payload. Every failure is non-retryable
// since the row bytes never change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.route(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	envelope, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := r.decoders.Decode(string(event.EventType), envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) route(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}
