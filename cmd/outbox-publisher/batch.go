package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/registry"
)

// delivery is the result of one publish attempt for one row.
type delivery struct {
	outcome string
	reason  string
	topic   string
	eventID string
	err     error
}

// processBatch claims up to batchSize rows and settles each one inside the same
// transaction. It reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.deliver(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.SetBatch(claimed)
	return claimed > 0, err
}

// deliver resolves and publishes one row without touching the database.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return delivery{outcome: metrics.OutboxTerminal, reason: "unresolvable", err: err}
	}
	d := delivery{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}

	pub := s.publishers.get(d.topic)
	if pub == nil {
		d.outcome, d.reason = metrics.OutboxTerminal, "no_publisher"
		d.err = fmt.Errorf("publisher not configured for topic %s", d.topic)
		return d
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, message(event, d.eventID))
	if result == nil {
		d.outcome, d.reason = metrics.OutboxTerminal, "no_publisher"
		d.err = fmt.Errorf("publisher returned nil for topic %s", d.topic)
		return d
	}
	if _, err := result.Get(publishCtx); err != nil {
		d.err = err
		var nonRetry registry.NonRetryableError
		switch {
		case errors.As(err, &nonRetry):
			d.outcome, d.reason = metrics.OutboxTerminal, "non_retryable"
		case event.AttemptCount+1 >= s.maxAttempts:
			d.outcome, d.reason = metrics.OutboxTerminal, "max_attempts"
			d.err = fmt.Errorf("max publish attempts reached: %w", err)
		default:
			d.outcome = metrics.OutboxRetry
		}
		return d
	}
	d.outcome = metrics.OutboxPublished
	return d
}

// settle writes the delivery outcome back to the row and logs it.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"outcome":       d.outcome,
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.reason != "" {
		fields["terminal_reason"] = d.reason
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.metrics.IncEvent(string(event.EventType), d.outcome)

	switch d.outcome {
	case metrics.OutboxPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID, s.now().UTC()); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox event published")
	case metrics.OutboxRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed, will retry")
		if err := s.repo.MarkFailedTx(tx, event.ID, d.err, false, s.maxAttempts); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	default:
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox event will not be retried")
		if err := s.repo.MarkFailedTx(tx, event.ID, d.err, true, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

// message carries the stored envelope bytes verbatim; attributes let
// subscribers filter without decoding.
func message(event models.OutboxEvent, eventID string) *gcppubsub.Message {
	if eventID == "" {
		eventID = event.ID.String()
	}
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
