package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newTestService(t *testing.T, store *memoryStore, clock *movingClock, reg *Registry) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: reg,
		Locks:    RedisLocks(store, func(name string) string { return "lock:" + name }, FixedTTL(time.Minute)),
		Slots:    store,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		Interval: time.Millisecond,
		Clock:    clock,
	})
	require.NoError(t, err)
	return svc
}

func everyInterval(t *testing.T, d time.Duration) Schedule {
	t.Helper()
	s, err := Every(d)
	require.NoError(t, err)
	return s
}

func TestRunCycleRunsAllDueJobsEvenOnFailure(t *testing.T) {
	store := newMemoryStore()
	clock := &movingClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	reg := NewRegistry()
	reg.Register(ok, everyInterval(t, time.Minute))
	reg.Register(failing, everyInterval(t, time.Minute))

	svc := newTestService(t, store, clock, reg)
	svc.runCycle(context.Background())
	svc.wg.Wait()

	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
	assert.False(t, store.has("lock:ok"), "lock must be released after the run")
}

func TestRunCycleRunsOncePerSlot(t *testing.T) {
	store := newMemoryStore()
	clock := &movingClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	job := &countingJob{name: "sweep"}
	reg := NewRegistry()
	reg.Register(job, everyInterval(t, 3*time.Minute))
	svc := newTestService(t, store, clock, reg)

	for i := 0; i < 3; i++ {
		svc.runCycle(context.Background())
		svc.wg.Wait()
		clock.advance(30 * time.Second)
	}
	assert.Equal(t, 1, job.count())

	clock.advance(3 * time.Minute)
	svc.runCycle(context.Background())
	svc.wg.Wait()
	assert.Equal(t, 2, job.count())
}

func TestRunCycleSkipsSlotClaimedElsewhere(t *testing.T) {
	store := newMemoryStore()
	clock := &movingClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	job := &countingJob{name: "payouts"}
	reg := NewRegistry()
	reg.Register(job, everyInterval(t, time.Hour))

	other := newTestService(t, store, clock, reg)
	other.runCycle(context.Background())
	other.wg.Wait()

	svc := newTestService(t, store, clock, reg)
	svc.runCycle(context.Background())
	svc.wg.Wait()

	assert.Equal(t, 1, job.count())
}

func TestRunCycleRetriesSlotAfterClaimError(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	clock := &movingClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	job := &countingJob{name: "sweep"}
	reg := NewRegistry()
	reg.Register(job, everyInterval(t, time.Hour))
	svc := newTestService(t, store, clock, reg)

	svc.runCycle(context.Background())
	svc.wg.Wait()
	assert.Equal(t, 0, job.count())

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	svc.runCycle(context.Background())
	svc.wg.Wait()
	assert.Equal(t, 1, job.count())
}

func TestRunNow(t *testing.T) {
	store := newMemoryStore()
	clock := &movingClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	job := &countingJob{name: "vendor-payouts", err: pkgerrors.New(pkgerrors.CodeValidation, "bad")}
	reg := NewRegistry()
	reg.Register(job, everyInterval(t, time.Hour))
	svc := newTestService(t, store, clock, reg)

	err := svc.RunNow(context.Background(), "vendor-payouts")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 1, job.count())

	err = svc.RunNow(context.Background(), "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	held, err := NewRedisLock(store, "lock:vendor-payouts", time.Minute)
	require.NoError(t, err)
	acquired, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	err = svc.RunNow(context.Background(), "vendor-payouts")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 1, job.count())
	assert.Equal(t, []string{"vendor-payouts"}, svc.Jobs())
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newMemoryStore()
	clock := &movingClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	job := &countingJob{name: "sweep", done: make(chan struct{}, 1)}
	reg := NewRegistry()
	reg.Register(job, everyInterval(t, time.Minute))
	svc := newTestService(t, store, clock, reg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a := &countingJob{name: "a"}
	reg.Register(a, everyInterval(t, time.Minute))
	reg.Register(nil, everyInterval(t, time.Minute))
	reg.Register(&countingJob{name: "b"}, nil)

	entries := reg.Entries()
	require.Len(t, entries, 1)
	entries[0].Job = nil
	assert.NotNil(t, reg.Entries()[0].Job)

	found, ok := reg.Find("a")
	assert.True(t, ok)
	assert.Same(t, a, found)
}

func TestRedisLockReleasesOnlyOwnKey(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "lock:x", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	store.mu.Lock()
	store.values["lock:x"] = "someone-else"
	store.mu.Unlock()

	require.NoError(t, lock.Release(context.Background()))
	assert.True(t, store.has("lock:x"))

	_, err = NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(store, "", 0)
	assert.Error(t, err)
}
