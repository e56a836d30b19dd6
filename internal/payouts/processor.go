package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
	"github.com/foodmart/foodmart-backend/pkg/money"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// VendorDirectory yields payout-eligible vendors and their civil timezone.
type VendorDirectory interface {
	ListApproved(ctx context.Context) ([]models.Vendor, error)
	Location(ctx context.Context, vendor models.Vendor) *time.Location
}

// ProcessorParams wires the payout batch.
type ProcessorParams struct {
	Tx             txRunner
	Repo           *Repository
	Vendors        VendorDirectory
	Outbox         outbox.Emitter
	Notifier       notifications.Notifier
	Clock          localtime.Clock
	Location       *time.Location
	CommissionRate decimal.Decimal
	Metrics        *metrics.SettlementMetrics
	Logger         *logger.Logger
}

// Processor creates one VendorPayout per vendor from its completed, unsettled items.
type Processor struct {
	tx       txRunner
	repo     *Repository
	vendors  VendorDirectory
	outbox   outbox.Emitter
	notifier notifications.Notifier
	clock    localtime.Clock
	loc      *time.Location
	rate     decimal.Decimal
	metrics  *metrics.SettlementMetrics
	logg     *logger.Logger
}

// RunReport summarizes one batch run.
type RunReport struct {
	Date    string `json:"date"`
	Vendors int    `json:"vendors"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// NewProcessor validates the wiring.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendor directory required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	rate := params.CommissionRate
	if rate.IsZero() {
		rate = money.DefaultCommissionRate
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Processor{
		tx:       params.Tx,
		repo:     params.Repo,
		vendors:  params.Vendors,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		clock:    clock,
		loc:      loc,
		rate:     rate,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// Run settles every approved vendor. Each vendor commits or rolls back on its own; failures
// are combined and returned after the remaining vendors have been attempted.
func (p *Processor) Run(ctx context.Context) (RunReport, error) {
	now := p.clock.Now()
	date := localtime.PreviousCivilDay(now, p.loc)
	report := RunReport{Date: date.String()}

	vendors, err := p.vendors.ListApproved(ctx)
	if err != nil {
		return report, err
	}
	report.Vendors = len(vendors)

	var errs error
	for _, vendor := range vendors {
		vctx := p.logg.WithVendorID(ctx, vendor.ID.String())
		payout, err := p.processVendor(vctx, vendor, date, now)
		switch {
		case err != nil:
			report.Failed++
			p.metrics.PayoutFailed()
			p.logg.Error(vctx, "vendor payout failed", err)
			errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", vendor.ID, err))
		case payout == nil:
			report.Skipped++
			p.metrics.PayoutSkipped()
		default:
			report.Created++
			p.metrics.PayoutCreated(payout.ItemCount)
			p.logg.Info(p.logg.WithFields(vctx, map[string]any{
				"payout_id":    payout.ID.String(),
				"total_amount": payout.TotalAmount.String(),
				"net_amount":   payout.NetAmount.String(),
				"item_count":   payout.ItemCount,
			}), "vendor payout created")
		}
	}

	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"date":    report.Date,
		"vendors": report.Vendors,
		"created": report.Created,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}), "payout batch finished")
	return report, errs
}

// processVendor returns nil without writing anything when the vendor has no candidates.
func (p *Processor) processVendor(ctx context.Context, vendor models.Vendor, date localtime.Date, now time.Time) (*models.VendorPayout, error) {
	vendorLoc := p.vendors.Location(ctx, vendor)
	var created *models.VendorPayout

	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		items, err := repo.LockCandidates(ctx, vendor.ID)
		if err != nil {
			return db.Classify(err, "select payout candidates")
		}
		if len(items) == 0 {
			return nil
		}

		total := money.Sum(lo.Map(items, func(i models.OrderedFood, _ int) decimal.Decimal { return i.Amount })...)
		count := lo.SumBy(items, func(i models.OrderedFood) int { return i.Quantity })
		foods, orders := buildSnapshots(items, vendorLoc)
		foodSnap, err := snapshot.Of(foods)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode food snapshot")
		}
		orderSnap, err := snapshot.Of(orders)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order snapshot")
		}

		payout := &models.VendorPayout{
			VendorID:      vendor.ID,
			OrderSnapshot: orderSnap,
			FoodSnapshot:  foodSnap,
			TotalAmount:   total,
			Commission:    p.rate,
			ItemCount:     count,
			Status:        enums.PayoutStatusPending,
			Date:          date.In(time.UTC),
		}
		if err := repo.Create(ctx, payout); err != nil {
			return db.Classify(err, "create payout")
		}

		ids := lo.Map(items, func(i models.OrderedFood, _ int) uuid.UUID { return i.ID })
		changed, err := repo.MarkProcessed(ctx, ids, now)
		if err != nil {
			return db.Classify(err, "mark items processed")
		}
		if changed != int64(len(ids)) {
			return pkgerrors.Newf(pkgerrors.CodeConcurrency, "expected %d items to settle, updated %d", len(ids), changed)
		}

		if err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorPayoutCreated,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			OccurredAt:    now.UTC(),
			Data: payloads.VendorPayoutCreatedEvent{
				PayoutID:    payout.ID,
				VendorID:    vendor.ID,
				Date:        date.String(),
				TotalAmount: payout.TotalAmount,
				Commission:  payout.Commission,
				NetAmount:   payout.NetAmount,
				ItemCount:   payout.ItemCount,
				ItemIDs:     ids,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payout created")
		}

		if p.notifier != nil && vendor.User != nil {
			if err := p.notifier.Request(ctx, tx, notifications.Request{
				Template: enums.TemplatePayoutCreated,
				Subject:  fmt.Sprintf("Payout for %s is being processed", date),
				To:       []string{vendor.User.Email},
				Context: map[string]any{
					"vendor_name": vendor.VendorName,
					"payout_id":   payout.ID.String(),
					"date":        date.String(),
					"net_amount":  money.Format(payout.NetAmount),
					"item_count":  payout.ItemCount,
				},
			}); err != nil {
				return err
			}
		}

		created = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
