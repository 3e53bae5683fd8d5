package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names are unique.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

// NewRegistry builds a registry preloaded with jobs, skipping nils. It panics on a
// duplicate name since that is a wiring bug.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := registry.Register(job); err != nil {
			panic(err)
		}
	}
	return registry
}

// Register adds a job. Nil jobs, blank names and duplicates are rejected.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron job is nil")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name is required")
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.byName[name] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Lookup returns the job registered under name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[strings.TrimSpace(name)]
	return job, ok
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Select returns the named jobs in the order given, or every job when names is empty.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	selected := make([]Job, 0, len(names))
	for _, name := range names {
		job, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q (registered: %s)", name, strings.Join(r.Names(), ", "))
		}
		selected = append(selected, job)
	}
	return selected, nil
}
