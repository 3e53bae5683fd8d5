package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval, under the lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
// Cycle failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle swallows a held lock and job failures, both of which have
// already been logged and counted.
func (s *Service) runCycle(ctx context.Context) error {
	err := s.runJobs(ctx, s.registry.Jobs())
	var failures *jobFailures
	switch {
	case errors.Is(err, ErrLockHeld):
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	case errors.As(err, &failures):
		return nil
	}
	return err
}

// RunOnce runs the named jobs, or all of them, in a single locked cycle.
// Unlike Run it surfaces a held lock as ErrLockHeld and returns every job
// failure.
func (s *Service) RunOnce(ctx context.Context, names ...string) error {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return err
	}
	return s.runJobs(ctx, jobs)
}

// jobFailures marks errors that came from jobs rather than the lock.
type jobFailures struct{ err error }

func (j *jobFailures) Error() string { return j.err.Error() }
func (j *jobFailures) Unwrap() error { return j.err }

func (s *Service) runJobs(ctx context.Context, jobs []Job) error {
	return WithLock(ctx, s.lock, func(ctx context.Context) error {
		ctx = s.logg.WithField(ctx, "jobs", len(jobs))
		s.logg.Info(ctx, "scheduled run starting")

		var failed error
		for _, job := range jobs {
			if ctx.Err() != nil {
				failed = multierr.Append(failed, ctx.Err())
				break
			}
			if err := s.runJob(ctx, job); err != nil {
				failed = multierr.Append(failed, fmt.Errorf("%s: %w", job.Name(), err))
			}
		}

		s.logg.Info(s.logg.WithField(ctx, "failed", len(multierr.Errors(failed))), "scheduled run complete")
		if failed != nil {
			return &jobFailures{err: failed}
		}
		return nil
	})
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Info(ctx, "job start")

	start := time.Now()
	err := job.Run(ctx)
	took := time.Since(start)
	s.metrics.RecordRun(job.Name(), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return err
	}
	s.logg.Info(ctx, "job completed")
	return nil
}
