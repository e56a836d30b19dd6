package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/internal/orders"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
)

var sweepNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeLineItems struct {
	items   []models.OrderedFood
	failFor map[uuid.UUID]error
	set     []orders.SetStatusInput
}

func (f *fakeLineItems) ListActive(context.Context) ([]models.OrderedFood, error) {
	return f.items, nil
}

func (f *fakeLineItems) SetStatus(_ context.Context, in orders.SetStatusInput) (orders.TransitionResult, error) {
	if err := f.failFor[in.ItemID]; err != nil {
		return orders.TransitionResult{}, err
	}
	f.set = append(f.set, in)
	return orders.TransitionResult{From: enums.LineItemStatusPending, To: enums.LineItemStatusCancelled, Changed: true}, nil
}

type noopTx struct{}

func (noopTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type captureNotifier struct {
	mu   sync.Mutex
	reqs []notifications.Request
	err  error
}

func (c *captureNotifier) Request(_ context.Context, _ *gorm.DB, req notifications.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.reqs = append(c.reqs, req)
	return nil
}

type capturePublisher struct {
	published map[uuid.UUID]enums.LineItemStatus
}

func (p *capturePublisher) PublishStatus(_ context.Context, id uuid.UUID, status enums.LineItemStatus) error {
	p.published[id] = status
	return nil
}

func activeItem(age time.Duration, email string) models.OrderedFood {
	return models.OrderedFood{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		Status:    enums.LineItemStatusPending,
		Quantity:  2,
		CreatedAt: sweepNow.Add(-age),
		FoodItem: &models.FoodItem{
			FoodTitle: "Momo",
			Vendor:    &models.Vendor{User: &models.User{Email: email}},
		},
	}
}

type expiryFixture struct {
	job       *ExpiryJob
	items     *fakeLineItems
	notifier  *captureNotifier
	publisher *capturePublisher
	store     *memoryStore
	reg       *prometheus.Registry
}

func newExpiryFixture(t *testing.T, items ...models.OrderedFood) *expiryFixture {
	t.Helper()
	f := &expiryFixture{
		items:     &fakeLineItems{items: items, failFor: map[uuid.UUID]error{}},
		notifier:  &captureNotifier{},
		publisher: &capturePublisher{published: map[uuid.UUID]enums.LineItemStatus{}},
		store:     newMemoryStore(),
		reg:       prometheus.NewRegistry(),
	}
	job, err := NewExpiryJob(ExpiryJobParams{
		Items:     f.items,
		Tx:        noopTx{},
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Warnings:  f.store,
		WarningKey: func(itemID string, band int) string {
			return fmt.Sprintf("warn:%s:band%d", itemID, band)
		},
		Policy:  models.ExpiryPolicy{Window: 4 * time.Minute, NearingFrom: 2 * time.Minute},
		Bands:   []time.Duration{2 * time.Minute, 3 * time.Minute},
		Clock:   localtime.FixedClock(sweepNow),
		Metrics: metrics.NewSettlementMetrics(f.reg),
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	f.job = job
	return f
}

func TestExpirySweepCancelsExpiredItems(t *testing.T) {
	expired := activeItem(4*time.Minute, "v@example.com")
	fresh := activeItem(30*time.Second, "v@example.com")
	f := newExpiryFixture(t, expired, fresh)

	require.NoError(t, f.job.Run(context.Background()))

	require.Len(t, f.items.set, 1)
	assert.Equal(t, expired.ID, f.items.set[0].ItemID)
	assert.Equal(t, "cancelled", f.items.set[0].Status)
	assert.Equal(t, enums.UserRoleSystem, f.items.set[0].Actor.Role)
	assert.Equal(t, enums.LineItemStatusCancelled, f.publisher.published[expired.ID])
	assert.Empty(t, f.notifier.reqs, "expired items are not warned")
}

func TestExpirySweepWarnsPerBandOnce(t *testing.T) {
	early := activeItem(2*time.Minute+10*time.Second, "a@example.com")
	late := activeItem(3*time.Minute+30*time.Second, "b@example.com")
	f := newExpiryFixture(t, early, late)

	require.NoError(t, f.job.Run(context.Background()))
	require.Len(t, f.notifier.reqs, 2)

	byEmail := map[string]notifications.Request{}
	for _, r := range f.notifier.reqs {
		byEmail[r.To[0]] = r
	}
	assert.Equal(t, enums.TemplateOrderWarning, byEmail["a@example.com"].Template)
	assert.Equal(t, "0h 1m", byEmail["a@example.com"].Context["total_remaining"])
	assert.Equal(t, "0h 0m", byEmail["b@example.com"].Context["total_remaining"])
	assert.True(t, f.store.has(fmt.Sprintf("warn:%s:band1", early.ID)))
	assert.True(t, f.store.has(fmt.Sprintf("warn:%s:band2", late.ID)))

	require.NoError(t, f.job.Run(context.Background()))
	assert.Len(t, f.notifier.reqs, 2, "a second sweep inside the same band is deduplicated")
}

func TestExpirySweepResendsWithoutStore(t *testing.T) {
	item := activeItem(2*time.Minute+10*time.Second, "a@example.com")
	f := newExpiryFixture(t, item)
	f.job.warnings = nil

	require.NoError(t, f.job.Run(context.Background()))
	require.NoError(t, f.job.Run(context.Background()))
	assert.Len(t, f.notifier.reqs, 2)
}

func TestExpirySweepReleasesClaimWhenNotifyFails(t *testing.T) {
	item := activeItem(2*time.Minute+10*time.Second, "a@example.com")
	f := newExpiryFixture(t, item)
	f.notifier.err = errors.New("outbox down")

	err := f.job.Run(context.Background())
	assert.ErrorContains(t, err, "outbox down")
	assert.False(t, f.store.has(fmt.Sprintf("warn:%s:band1", item.ID)))
}

func TestExpirySweepAggregatesItemFailures(t *testing.T) {
	a := activeItem(5*time.Minute, "a@example.com")
	b := activeItem(6*time.Minute, "b@example.com")
	c := activeItem(7*time.Minute, "c@example.com")
	f := newExpiryFixture(t, a, b, c)
	f.items.failFor[a.ID] = errors.New("lock timeout")
	f.items.failFor[c.ID] = errors.New("lock timeout")

	err := f.job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	require.Len(t, f.items.set, 1)
	assert.Equal(t, b.ID, f.items.set[0].ItemID)
}

func TestExpirySweepRequiresVendorEmail(t *testing.T) {
	item := activeItem(2*time.Minute+10*time.Second, "")
	f := newExpiryFixture(t, item)
	assert.ErrorContains(t, f.job.Run(context.Background()), "vendor email")
}

func TestBuildBands(t *testing.T) {
	bands, err := BuildBands([]time.Duration{2 * time.Minute, 3 * time.Minute}, 4*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []Band{
		{Index: 1, From: 2 * time.Minute, To: 3 * time.Minute},
		{Index: 2, From: 3 * time.Minute, To: 4 * time.Minute},
	}, bands)

	b, ok := bandFor(bands, 3*time.Minute)
	assert.True(t, ok)
	assert.Equal(t, "band2", b.Name())
	_, ok = bandFor(bands, 90*time.Second)
	assert.False(t, ok)

	_, err = BuildBands([]time.Duration{4 * time.Minute}, 4*time.Minute)
	assert.Error(t, err)
}
