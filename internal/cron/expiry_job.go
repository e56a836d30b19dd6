package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// ExpiryJobName is the registry name of the expiry sweep.
const ExpiryJobName = "expiry-sweep"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineItems is the slice of the order service the sweep drives.
type LineItems interface {
	ListActive(ctx context.Context) ([]models.OrderedFood, error)
	SetStatus(ctx context.Context, input orders.SetStatusInput) (orders.TransitionResult, error)
}

// StatusPublisher fans a status change out to live subscribers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, itemID uuid.UUID, status enums.LineItemStatus) error
}

// WarningStore deduplicates warnings per item and band.
type WarningStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Band is one warning interval [From, To) of elapsed time since creation.
type Band struct {
	Index int
	From  time.Duration
	To    time.Duration
}

// Name labels the band in metrics and dedup keys.
func (b Band) Name() string { return fmt.Sprintf("band%d", b.Index) }

// BuildBands turns ascending start offsets into contiguous bands ending at window.
func BuildBands(starts []time.Duration, window time.Duration) ([]Band, error) {
	bands := make([]Band, 0, len(starts))
	for i, start := range starts {
		end := window
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start < 0 || start >= end {
			return nil, fmt.Errorf("warning band %d [%s, %s) is empty", i+1, start, end)
		}
		bands = append(bands, Band{Index: i + 1, From: start, To: end})
	}
	return bands, nil
}

func bandFor(bands []Band, elapsed time.Duration) (Band, bool) {
	for _, b := range bands {
		if elapsed >= b.From && elapsed < b.To {
			return b, true
		}
	}
	return Band{}, false
}

// ExpiryJobParams wires the expiry sweep.
type ExpiryJobParams struct {
	Items     LineItems
	Tx        txRunner
	Notifier  notifications.Notifier
	Publisher StatusPublisher
	Warnings  WarningStore
	// WarningKey names the dedup key, normally (*pkg/redis.Client).ExpiryWarningKey.
	WarningKey func(itemID string, band int) string
	Policy     models.ExpiryPolicy
	Bands      []time.Duration
	Clock      localtime.Clock
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
}

// ExpiryJob cancels line items whose acceptance window has elapsed and warns vendors
// about items that are close to it.
type ExpiryJob struct {
	items      LineItems
	tx         txRunner
	notifier   notifications.Notifier
	publisher  StatusPublisher
	warnings   WarningStore
	warningKey func(itemID string, band int) string
	policy     models.ExpiryPolicy
	bands      []Band
	clock      localtime.Clock
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
}

// NewExpiryJob validates the wiring. Warnings may be nil, in which case every sweep
// re-sends the warning for an item still inside a band.
func NewExpiryJob(params ExpiryJobParams) (*ExpiryJob, error) {
	if params.Items == nil {
		return nil, errors.New("line item service required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Policy.Window <= 0 {
		return nil, errors.New("expiry window must be positive")
	}
	bands, err := BuildBands(params.Bands, params.Policy.Window)
	if err != nil {
		return nil, err
	}
	if params.Warnings != nil && params.WarningKey == nil {
		return nil, errors.New("warning key func required with a warning store")
	}
	clock := params.Clock
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	return &ExpiryJob{
		items:      params.Items,
		tx:         params.Tx,
		notifier:   params.Notifier,
		publisher:  params.Publisher,
		warnings:   params.Warnings,
		warningKey: params.WarningKey,
		policy:     params.Policy,
		bands:      bands,
		clock:      clock,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (j *ExpiryJob) Name() string { return ExpiryJobName }

// Run sweeps every active line item once. Per-item failures are collected and returned
// together after the sweep.
func (j *ExpiryJob) Run(ctx context.Context) error {
	items, err := j.items.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active line items: %w", err)
	}

	now := j.clock.Now()
	var errs error
	var cancelled, warned int
	for i := range items {
		item := &items[i]
		itemCtx := j.logg.WithField(ctx, "item_id", item.ID.String())
		if item.IsExpired(now, j.policy) {
			if err := j.expire(itemCtx, item); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire item %s: %w", item.ID, err))
				continue
			}
			cancelled++
			continue
		}
		sent, err := j.warn(itemCtx, item, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("warn item %s: %w", item.ID, err))
			continue
		}
		if sent {
			warned++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"active":    len(items),
		"cancelled": cancelled,
		"warned":    warned,
		"failed":    len(multierr.Errors(errs)),
	}), "expiry sweep complete")
	return errs
}

func (j *ExpiryJob) expire(ctx context.Context, item *models.OrderedFood) error {
	result, err := j.items.SetStatus(ctx, orders.SetStatusInput{
		ItemID: item.ID,
		Status: string(enums.LineItemStatusCancelled),
		Actor:  orders.SystemActor(),
	})
	if err != nil {
		return err
	}
	if !result.Changed {
		return nil
	}
	j.metrics.ExpiryCancelled()
	j.logg.Info(ctx, "line item expired")
	if j.publisher != nil {
		if err := j.publisher.PublishStatus(ctx, item.ID, result.To); err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "realtime publish failed")
		}
	}
	return nil
}

func (j *ExpiryJob) warn(ctx context.Context, item *models.OrderedFood, now time.Time) (bool, error) {
	elapsed := item.TimeSinceCreation(now)
	band, ok := bandFor(j.bands, elapsed)
	if !ok {
		return false, nil
	}
	email := vendorEmail(item)
	if email == "" {
		return false, errors.New("vendor email not loaded")
	}

	var key string
	if j.warnings != nil {
		key = j.warningKey(item.ID.String(), band.Index)
		claimed, err := j.warnings.SetNX(ctx, key, now.UTC().Format(time.RFC3339), j.policy.Window)
		if err != nil {
			return false, fmt.Errorf("claim warning: %w", err)
		}
		if !claimed {
			return false, nil
		}
	}

	remaining := localtime.FormatRemaining(j.policy.Window - elapsed)
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return j.notifier.Request(ctx, tx, notifications.Request{
			Template: enums.TemplateOrderWarning,
			Subject:  fmt.Sprintf("Only %s left to accept an order", remaining),
			To:       []string{email},
			Context: map[string]any{
				"to_email":        email,
				"item_id":         item.ID.String(),
				"order_id":        item.OrderID.String(),
				"food_title":      foodTitle(item),
				"quantity":        item.Quantity,
				"total_remaining": remaining,
			},
		})
	})
	if err != nil {
		if key != "" {
			if delErr := j.warnings.Del(context.WithoutCancel(ctx), key); delErr != nil {
				err = multierr.Append(err, fmt.Errorf("release warning claim: %w", delErr))
			}
		}
		return false, err
	}
	j.metrics.WarningSent(band.Name())
	j.logg.Info(j.logg.WithField(ctx, "band", band.Name()), "expiry warning requested")
	return true, nil
}

func vendorEmail(item *models.OrderedFood) string {
	if item.FoodItem == nil || item.FoodItem.Vendor == nil || item.FoodItem.Vendor.User == nil {
		return ""
	}
	return item.FoodItem.Vendor.User.Email
}

func foodTitle(item *models.OrderedFood) string {
	if item.FoodItem == nil {
		return ""
	}
	return item.FoodItem.FoodTitle
}
