package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db/models"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error, terminal bool, maxAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// ServiceParams wires the publisher loop. PublisherFactory and Now default to
// the pubsub client and the wall clock.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
	Now              func() time.Time
}

// Service drains outbox_events to pubsub, one transaction per batch.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	publishers   *publisherCache
	metrics      *metrics.OutboxMetrics
	now          func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = gcpPublisherFactory(params.PubSub)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	oc := params.Config.Outbox

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		publishers:   newPublisherCache(factory),
		metrics:      params.Metrics,
		now:          now,
		batchSize:    positiveOr(oc.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(oc.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(oc.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is canceled. A full batch is followed immediately by the
// next one; an idle or failed batch sleeps first.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.publishers.stopAll()

	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = withJitter(backoff)
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			wait = withJitter(s.pollInterval)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}
