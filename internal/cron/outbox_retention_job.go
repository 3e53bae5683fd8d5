package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

const (
	publishedRetentionDefault = 7 * 24 * time.Hour
	deadRetentionDefault      = 30 * 24 * time.Hour
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	// Retention applies to published rows.
	Retention time.Duration
	// DeadRetention applies to rows that stopped retrying at MaxAttempts.
	// The purge is skipped when MaxAttempts is not positive.
	DeadRetention time.Duration
	MaxAttempts   int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExhaustedBefore(ctx context.Context, cutoff time.Time, maxAttempts int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		repo:        params.Repository,
		published:   durationOr(params.Retention, publishedRetentionDefault),
		dead:        durationOr(params.DeadRetention, deadRetentionDefault),
		maxAttempts: params.MaxAttempts,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	repo        outboxRetentionRepo
	published   time.Duration
	dead        time.Duration
	maxAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	publishedCutoff := now.Add(-j.published)
	published, err := j.repo.DeletePublishedBefore(ctx, publishedCutoff)
	if err != nil {
		return fmt.Errorf("delete published outbox rows: %w", err)
	}
	fields := map[string]any{
		"published_cutoff": publishedCutoff,
		"published_purged": published,
	}

	if j.maxAttempts > 0 {
		deadCutoff := now.Add(-j.dead)
		dead, err := j.repo.DeleteExhaustedBefore(ctx, deadCutoff, j.maxAttempts)
		if err != nil {
			return fmt.Errorf("delete exhausted outbox rows: %w", err)
		}
		fields["dead_cutoff"] = deadCutoff
		fields["dead_purged"] = dead
	}

	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
