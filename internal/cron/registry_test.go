package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	jobA := &stubJob{name: "listing-price-reindex"}
	jobB := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(jobA, nil, jobB)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])
	assert.Equal(t, []string{"listing-price-reindex", "outbox-retention"}, registry.Names())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubJob{name: "a"}))
	assert.Error(t, registry.Register(&stubJob{name: "a"}))
	assert.Error(t, registry.Register(&stubJob{name: "  "}))
	assert.Error(t, registry.Register(nil))

	assert.Panics(t, func() { NewRegistry(&stubJob{name: "x"}, &stubJob{name: "x"}) })
}

func TestRegistrySelect(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "b"})

	all, err := registry.Select()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	picked, err := registry.Select("b")
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "b", picked[0].Name())

	_, err = registry.Select("missing")
	assert.ErrorContains(t, err, "unknown cron job")

	job, ok := registry.Lookup(" a ")
	assert.True(t, ok)
	assert.Equal(t, "a", job.Name())
}
