package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
)

const defaultInterval = 30 * time.Second

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	// Slots records claimed schedule slots so that only one instance runs a slot. Nil keeps
	// the record in memory.
	Slots    Store
	Keys     KeyFunc
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Clock    localtime.Clock
}

// Service polls the registry on a fixed tick and runs each due job in its own goroutine.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	slots    Store
	keys     KeyFunc
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	clock    localtime.Clock

	mu      sync.Mutex
	seen    map[string]string
	running map[string]bool
	wg      sync.WaitGroup
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := params.Clock
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	keys := params.Keys
	if keys == nil {
		keys = func(name string) string { return "cron:" + name }
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		slots:    params.Slots,
		keys:     keys,
		metrics:  params.Metrics,
		interval: interval,
		clock:    clock,
		seen:     map[string]string{},
		running:  map[string]bool{},
	}, nil
}

// Run starts the cron loop until the context is canceled, then waits for running jobs.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.wg.Wait()

	s.runCycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// RunNow runs one job immediately under its lock, outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	job, ok := s.registry.Find(name)
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown job %q", name)
	}
	return s.runLocked(ctx, job)
}

// Jobs lists the registered job names.
func (s *Service) Jobs() []string {
	return s.registry.Names()
}

func (s *Service) runCycle(ctx context.Context) {
	now := s.clock.Now()
	for _, entry := range s.registry.Entries() {
		name := entry.Job.Name()
		slot, open := entry.Schedule.Slot(now)
		if !open || !s.mark(name, slot) {
			continue
		}
		claimed, err := s.claim(ctx, name, slot, entry.Schedule.Period())
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "job", name), "claim schedule slot failed", err)
			s.unmark(name, slot)
			continue
		}
		if !claimed {
			continue
		}
		s.spawn(ctx, entry.Job)
	}
}

// mark records slot as handled locally; it reports false when the slot was already seen
// or the job is still running.
func (s *Service) mark(name, slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[name] == slot || s.running[name] {
		return false
	}
	s.seen[name] = slot
	return true
}

func (s *Service) unmark(name, slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[name] == slot {
		delete(s.seen, name)
	}
}

func (s *Service) claim(ctx context.Context, name, slot string, period time.Duration) (bool, error) {
	if s.slots == nil {
		return true, nil
	}
	return s.slots.SetNX(ctx, s.keys(name+":slot:"+slot), slot, 2*period)
}

func (s *Service) spawn(ctx context.Context, job Job) {
	s.mu.Lock()
	s.running[job.Name()] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, job.Name())
			s.mu.Unlock()
		}()
		if err := s.runLocked(ctx, job); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.logg.Error(s.logg.WithField(ctx, "job", job.Name()), "scheduled run failed", err)
		}
	}()
}

func (s *Service) runLocked(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	lock, err := s.locks(job.Name())
	if err != nil {
		return fmt.Errorf("build lock: %w", err)
	}
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(jobCtx, "another cron instance is running this job; skipping")
		s.metrics.IncSkipped(job.Name())
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "job %s is already running", job.Name())
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(jobCtx)); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", relErr)
		}
	}()
	return s.runJob(jobCtx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}
