package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
)

const maxLastErrorLen = 1024

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish returns the oldest unpublished rows still under maxAttempts.
// On postgres the rows are locked with SKIP LOCKED so concurrent publishers split the backlog.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": at,
			"last_error":   nil,
		}).Error
}

// MarkFailedTx records a failed attempt. A terminal failure jumps attempt_count to maxAttempts
// so the row is never fetched again.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error, terminal bool, maxAttempts int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	msg := "unknown error"
	if cause != nil {
		msg = truncateError(cause.Error())
	}
	attempts := gorm.Expr("attempt_count + 1")
	if terminal && maxAttempts > 0 {
		attempts = gorm.Expr("?", maxAttempts)
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    msg,
			"attempt_count": attempts,
		}).Error
}

// DeletePublishedBefore removes published rows older than cutoff and returns how many went.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// DeleteExhaustedBefore removes rows created before cutoff that stopped
// retrying at maxAttempts without ever publishing.
func (r *Repository) DeleteExhaustedBefore(ctx context.Context, cutoff time.Time, maxAttempts int) (int64, error) {
	if maxAttempts <= 0 {
		return 0, errors.New("max attempts must be positive")
	}
	res := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempt_count >= ? AND created_at < ?", maxAttempts, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// CountUnpublished reports the current backlog.
func (r *Repository) CountUnpublished(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("published_at IS NULL").
		Count(&n).Error
	return n, err
}

func truncateError(message string) string {
	if len(message) <= maxLastErrorLen {
		return message
	}
	return message[:maxLastErrorLen]
}
