package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

var retentionNow = time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

func TestOutboxRetentionJobDefaults(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, OutboxRetentionJobParams{MaxAttempts: 10})

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, repo.publishedCutoff.Equal(retentionNow.Add(-publishedRetentionDefault)))
	assert.True(t, repo.deadCutoff.Equal(retentionNow.Add(-deadRetentionDefault)))
	assert.Equal(t, 10, repo.maxAttempts)
	assert.Equal(t, 1, repo.publishedCalls)
	assert.Equal(t, 1, repo.deadCalls)
}

func TestOutboxRetentionJobHonorsRetention(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, OutboxRetentionJobParams{
		Retention:     48 * time.Hour,
		DeadRetention: 96 * time.Hour,
		MaxAttempts:   3,
	})

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, repo.publishedCutoff.Equal(retentionNow.Add(-48*time.Hour)))
	assert.True(t, repo.deadCutoff.Equal(retentionNow.Add(-96*time.Hour)))
}

func TestOutboxRetentionJobSkipsDeadPurgeWithoutMaxAttempts(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, OutboxRetentionJobParams{})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, repo.publishedCalls)
	assert.Zero(t, repo.deadCalls)
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	published := &fakeOutboxRetentionRepo{publishedErr: boom}
	err := newOutboxRetentionJob(t, published, OutboxRetentionJobParams{MaxAttempts: 3}).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, published.deadCalls, "dead purge must not run after a failure")

	dead := &fakeOutboxRetentionRepo{deadErr: boom}
	err = newOutboxRetentionJob(t, dead, OutboxRetentionJobParams{MaxAttempts: 3}).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestNewOutboxRetentionJobValidates(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Repository: &fakeOutboxRetentionRepo{}})
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.Nop()
	params.Repository = repo
	jobIface, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	job, ok := jobIface.(*outboxRetentionJob)
	require.True(t, ok, "unexpected job type %T", jobIface)
	job.now = func() time.Time { return retentionNow }
	return job
}

type fakeOutboxRetentionRepo struct {
	publishedCutoff time.Time
	deadCutoff      time.Time
	maxAttempts     int
	publishedCalls  int
	deadCalls       int
	publishedErr    error
	deadErr         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.publishedCalls++
	f.publishedCutoff = cutoff
	return 7, f.publishedErr
}

func (f *fakeOutboxRetentionRepo) DeleteExhaustedBefore(_ context.Context, cutoff time.Time, maxAttempts int) (int64, error) {
	f.deadCalls++
	f.deadCutoff = cutoff
	f.maxAttempts = maxAttempts
	return 2, f.deadErr
}
