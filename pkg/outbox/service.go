package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// DomainEvent is what callers hand to Emit. Data is marshalled into the
// envelope's data member.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("invalid outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("invalid aggregate type %q", e.AggregateType)
	case e.AggregateType != e.EventType.Aggregate():
		return fmt.Errorf("%s events belong to %s, not %s", e.EventType, e.EventType.Aggregate(), e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return errors.New("aggregate id is required")
	}
	return nil
}

// Service writes domain events into the outbox table.
type Service struct {
	repo  *Repository
	logg  *logger.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now, newID: uuid.New}
}

// Emit queues event inside tx, so it commits or rolls back with the caller's
// write. The row id is reused as the envelope event id so every published
// message traces back to its row.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := event.validate(); err != nil {
		return err
	}
	row, err := s.newRow(event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx.WithContext(ctx), row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return fmt.Errorf("outbox event %s already queued: %w", row.ID, err)
		}
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       row.ID.String(),
			"event_type":     row.EventType,
			"aggregate_id":   row.AggregateID.String(),
			"aggregate_type": row.AggregateType,
		}), "outbox event queued")
	}
	return nil
}

func (s *Service) newRow(event DomainEvent) (models.OutboxEvent, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", event.EventType, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	version := event.Version
	if version == 0 {
		version = EnvelopeVersion
	}

	id := s.newID()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    version,
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}
