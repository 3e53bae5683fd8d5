package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	dbtypes "github.com/angelmondragon/listingprice-indexer/pkg/db/types"
	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	productID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.ListingPricesUpdatedEvent{
		ProductID:  "0f8fad5bd9cb469fa16570867728950e",
		RuleIDs:    []string{"a", "b"},
		EntryCount: 2,
		UpdatedAt:  time.Now().UTC(),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventListingPricesUpdated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "listing-prices" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ListingPricesUpdatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.EntryCount != 2 || len(payload.RuleIDs) != 2 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolvesClearedEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventListingPricesCleared,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, mustMarshal(t, payloads.ListingPricesClearedEvent{
			ProductID: "0f8fad5bd9cb469fa16570867728950e",
			ClearedAt: time.Now().UTC(),
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, ok := resolved.Payload.(*payloads.ListingPricesClearedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.ProductID != "0f8fad5bd9cb469fa16570867728950e" || payload.ClearedAt.IsZero() {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Descriptor.AggregateType != enums.AggregateProduct {
		t.Fatalf("unexpected aggregate %q", resolved.Descriptor.AggregateType)
	}
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("product.archived"),
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventListingPricesUpdated,
			AggregateType: enums.OutboxAggregateType("store"),
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventListingPricesUpdated,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventListingPricesCleared,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"corrupt envelope": {
			EventType:     enums.EventListingPricesCleared,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       dbtypes.JSON(`{not json`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected error without topic")
	}
	reg := newTestEventRegistry(t)
	if topics := reg.Topics(); len(topics) != 1 || topics[0] != "listing-prices" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{ListingPricesTopic: "listing-prices"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) dbtypes.JSON {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return dbtypes.JSON(data)
}

func TestEventRegistryRejectsUnknownEnvelopeVersion(t *testing.T) {
	reg := newTestEventRegistry(t)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version: outbox.EnvelopeVersion + 1,
		EventID: uuid.NewString(),
		Data:    json.RawMessage(`{"productId":"abc"}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventListingPricesCleared,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload:       dbtypes.JSON(envelope),
	})
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error for unknown version, got %v", err)
	}
}

func TestEventRegistryDescriptorsCarryAggregate(t *testing.T) {
	reg := newTestEventRegistry(t)
	for eventType, desc := range reg.routes {
		if desc.AggregateType != enums.AggregateProduct {
			t.Fatalf("%s routed with aggregate %q", eventType, desc.AggregateType)
		}
	}
}
