// Package consumer turns upstream price change events into listing price updates.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/listingprice-indexer/internal/listingprice"
	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/payloads"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/registry"
)

const consumerName = "listing-price-indexer"

// defaultMaxBatch matches the indexer's configured default.
const defaultMaxBatch = 500

// Receiver is satisfied by *pubsub.Subscriber.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Updater recomputes listing prices for a batch of ids.
type Updater interface {
	Update(ctx context.Context, productIDs []string) (*listingprice.Report, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Service consumes price events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription Receiver
	updater      Updater
	manager      idempotencyChecker
	maxBatch     int
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewService builds a price event consumer. Events carrying more than maxBatch
// ids are indexed in several Update calls; maxBatch <= 0 uses defaultMaxBatch.
func NewService(subscription Receiver, updater Updater, manager idempotencyChecker, maxBatch int, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("price events subscription is required")
	}
	if updater == nil {
		return nil, errors.New("listing price updater is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}

	decoders := registry.NewDecoderRegistry()
	for _, eventType := range []enums.PriceEventType{
		enums.PriceEventProductPriceWritten,
		enums.PriceEventProductPriceDeleted,
		enums.PriceEventProductWritten,
	} {
		decoders.Register(string(eventType), outbox.EnvelopeVersion, registry.JSONDecoder[payloads.PriceChangedEvent]())
	}

	return &Service{
		subscription: subscription,
		updater:      updater,
		manager:      manager,
		maxBatch:     maxBatch,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes messages until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type priceEvent struct {
	eventID   string
	eventType enums.PriceEventType
	ids       []string
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	event, err := s.decode(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid price event")
		return processResult{}
	}
	if event == nil {
		s.logg.Debug(logCtx, "event not handled by listing price consumer")
		return processResult{}
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":   event.eventID,
		"event_type": event.eventType,
		"products":   len(event.ids),
	})
	if len(event.ids) == 0 {
		s.logg.Info(logCtx, "price event carries no product ids")
		return processResult{}
	}

	already, err := s.manager.CheckAndMarkProcessed(logCtx, consumerName, event.eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	report, err := s.update(listingprice.WithTrigger(logCtx, listingprice.TriggerEvent), event.ids)
	if err != nil {
		s.logg.Error(logCtx, "listing price update failed", err)
		if delErr := s.manager.Delete(logCtx, consumerName, event.eventID); delErr != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", delErr.Error()), "idempotency marker not cleared")
		}
		return processResult{nack: true}
	}

	// item failures do not improve on redelivery
	if failed := report.Failed(); len(failed) > 0 {
		s.logg.Warn(s.logg.WithField(logCtx, "failed", len(failed)), "price event handled with item failures")
		return processResult{}
	}
	s.logg.Info(logCtx, "price event handled")
	return processResult{}
}

// update indexes ids in chunks of at most maxBatch and merges the reports.
// A fatal error stops at the failing chunk; redelivery reruns the earlier ones.
func (s *Service) update(ctx context.Context, ids []string) (*listingprice.Report, error) {
	merged := &listingprice.Report{}
	for chunk := range slices.Chunk(ids, s.maxBatch) {
		report, err := s.updater.Update(ctx, chunk)
		if err != nil {
			return nil, err
		}
		merged.Merge(report)
	}
	return merged, nil
}

// decode returns nil without error for event types this consumer ignores.
func (s *Service) decode(msg *gcppubsub.Message) (*priceEvent, error) {
	eventType := enums.PriceEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if !eventType.TriggersReindex() {
		return nil, nil
	}

	envelope, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}
	decoded, err := s.decoders.Decode(string(eventType), envelope.Version, envelope.Data)
	if err != nil {
		return nil, err
	}
	payload, ok := decoded.(*payloads.PriceChangedEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", decoded)
	}

	eventID := strings.TrimSpace(envelope.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if eventID == "" {
		eventID = msg.ID
	}
	if eventID == "" {
		return nil, errors.New("event id missing")
	}

	ids := make([]string, 0, len(payload.ProductIDs))
	for _, id := range payload.ProductIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return &priceEvent{eventID: eventID, eventType: eventType, ids: ids}, nil
}
