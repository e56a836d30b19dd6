package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with its schedule.
type Entry struct {
	Job      Job
	Schedule Schedule
}

// Registry tracks registered cron jobs.
type Registry struct {
	entries []Entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a job to the registry. A nil job or schedule is ignored.
func (r *Registry) Register(job Job, schedule Schedule) {
	if job == nil || schedule == nil {
		return
	}
	r.entries = append(r.entries, Entry{Job: job, Schedule: schedule})
}

// Entries returns the registered jobs in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Find looks a job up by name.
func (r *Registry) Find(name string) (Job, bool) {
	for _, entry := range r.entries {
		if entry.Job.Name() == name {
			return entry.Job, true
		}
	}
	return nil, false
}

// Names lists the registered job names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.Job.Name())
	}
	return names
}

type retrySpanner interface {
	RetrySpan() time.Duration
}

// LockTTL extends base by each job's retry span so a lock outlives every attempt of a run.
func (r *Registry) LockTTL(base time.Duration) TTLFunc {
	if base <= 0 {
		base = defaultLockTTL
	}
	return func(name string) time.Duration {
		job, ok := r.Find(name)
		if !ok {
			return base
		}
		if rs, ok := job.(retrySpanner); ok {
			return base + rs.RetrySpan()
		}
		return base
	}
}
