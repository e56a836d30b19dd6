package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/orders"
	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

// AccumulationError is returned when a refund mutation fails after the refund row exists.
// Compensate marks that refund failed once the transition has rolled back.
type AccumulationError struct {
	RefundID uuid.UUID
	Err      error
}

func (e *AccumulationError) Error() string {
	return fmt.Sprintf("refund %s accumulation failed: %v", e.RefundID, e.Err)
}

func (e *AccumulationError) Unwrap() error { return e.Err }

// Compensate marks the refund failed in tx.
func (e *AccumulationError) Compensate(ctx context.Context, tx *gorm.DB) error {
	return NewRepository(tx).Update(ctx, e.RefundID, map[string]any{
		"status":     enums.RefundStatusFailed,
		"updated_at": time.Now().UTC(),
	})
}

// ItemSnapshot is the record appended to refunded_items for each cancelled line.
type ItemSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	FoodTitle   string          `json:"food_title"`
	VendorName  string          `json:"vendor_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"`
	CancelledAt string          `json:"cancelled_at"`
}

// OrderSnapshot is the order_snapshot document; Vendors is rebuilt on every accumulation.
type OrderSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   string          `json:"created_at"`
	Customer    CustomerRef     `json:"customer"`
	Vendors     []string        `json:"vendors"`
}

// CustomerRef identifies the refund recipient inside the order snapshot.
type CustomerRef struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AccumulatorParams wires the refund accumulator.
type AccumulatorParams struct {
	Outbox   outbox.Emitter
	Location *time.Location
	Metrics  *metrics.SettlementMetrics
	Logger   *logger.Logger
}

// Accumulator grows one refund aggregate per order as its line items are cancelled.
type Accumulator struct {
	outbox  outbox.Emitter
	loc     *time.Location
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
}

var _ orders.TransitionHook = (*Accumulator)(nil)

// NewAccumulator builds the transition hook.
func NewAccumulator(params AccumulatorParams) (*Accumulator, error) {
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Accumulator{outbox: params.Outbox, loc: loc, metrics: params.Metrics, logg: logg}, nil
}

// OnTransition accumulates on cancellation and refreshes eligibility on completion. Every
// other target, gateway cancellation included, is ignored.
func (a *Accumulator) OnTransition(ctx context.Context, tx *gorm.DB, event orders.TransitionEvent) error {
	switch event.To {
	case enums.LineItemStatusCancelled:
		return a.accumulate(ctx, tx, event)
	case enums.LineItemStatusCompleted:
		return a.recomputeIfExists(ctx, tx, event)
	default:
		return nil
	}
}

func (a *Accumulator) accumulate(ctx context.Context, tx *gorm.DB, event orders.TransitionEvent) error {
	repo := NewRepository(tx)
	item := event.Item

	order, err := repo.LockOrder(ctx, item.OrderID)
	if err != nil {
		return db.Classify(err, "lock order for refund")
	}
	food, err := repo.FindFood(ctx, item.FoodItemID)
	if err != nil {
		return db.Classify(err, "load refunded food")
	}
	itemSnap := ItemSnapshot{
		ID:          item.ID,
		FoodTitle:   food.FoodTitle,
		Quantity:    item.Quantity,
		Price:       item.Price,
		Amount:      item.Amount,
		CancelledAt: event.At.In(a.loc).Format(time.RFC3339),
	}
	if food.Vendor != nil {
		itemSnap.VendorName = food.Vendor.VendorName
	}

	refund, err := repo.FindByOrderID(ctx, order.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		refund, err = a.create(ctx, repo, order, itemSnap, item.Amount)
		if err != nil {
			return err
		}
		a.metrics.RefundAccumulated("created")
	case err != nil:
		return db.Classify(err, "load refund")
	case refund.Status == enums.RefundStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund for order already settled")
	default:
		if err := a.increment(ctx, repo, order, refund, itemSnap, item.Amount, event.At); err != nil {
			return &AccumulationError{RefundID: refund.ID, Err: err}
		}
		a.metrics.RefundAccumulated("incremented")
	}

	fully, err := a.refreshEligibility(ctx, repo, refund.ID, order.ID, event.At)
	if err != nil {
		return &AccumulationError{RefundID: refund.ID, Err: err}
	}
	current, err := repo.FindByID(ctx, refund.ID)
	if err != nil {
		return &AccumulationError{RefundID: refund.ID, Err: db.Classify(err, "reload refund")}
	}

	if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundAccumulated,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		OccurredAt:    event.At,
		Data: payloads.RefundAccumulatedEvent{
			RefundID:         refund.ID,
			OrderID:          order.ID,
			ItemID:           item.ID,
			ItemAmount:       item.Amount,
			RefundAmount:     current.RefundAmount,
			IsFullyCancelled: fully,
		},
	}); err != nil {
		return &AccumulationError{RefundID: refund.ID, Err: pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit refund accumulated")}
	}

	a.logg.Info(a.logg.WithFields(a.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"refund_id":          refund.ID.String(),
		"refund_amount":      current.RefundAmount.String(),
		"is_fully_cancelled": fully,
	}), "refund accumulated")
	return nil
}

func (a *Accumulator) create(ctx context.Context, repo *Repository, order *models.Order, item ItemSnapshot, amount decimal.Decimal) (*models.CustomerRefund, error) {
	orderSnap, err := a.orderSnapshot(ctx, repo, order)
	if err != nil {
		return nil, err
	}
	items, err := snapshot.Of([]ItemSnapshot{item})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode refunded items")
	}
	refund := &models.CustomerRefund{
		OrderID:       order.ID,
		UserID:        order.UserID,
		OrderSnapshot: orderSnap,
		RefundedItems: items,
		RefundAmount:  amount,
		Status:        enums.RefundStatusPending,
	}
	if err := repo.Create(ctx, refund); err != nil {
		if db.IsUniqueViolation(err, models.RefundOrderConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "refund already exists for order")
		}
		return nil, db.Classify(err, "create refund")
	}
	return refund, nil
}

func (a *Accumulator) increment(ctx context.Context, repo *Repository, order *models.Order, refund *models.CustomerRefund, item ItemSnapshot, amount decimal.Decimal, at time.Time) error {
	items, err := refund.RefundedItems.Append(item)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append refunded item")
	}
	orderSnap, err := a.orderSnapshot(ctx, repo, order)
	if err != nil {
		return err
	}
	if err := repo.Increment(ctx, refund.ID, amount, items, orderSnap, at); err != nil {
		return db.Classify(err, "increment refund")
	}
	return nil
}

// orderSnapshot reads the cancelled siblings' vendors fresh; the previous snapshot is
// never consulted.
func (a *Accumulator) orderSnapshot(ctx context.Context, repo *Repository, order *models.Order) (snapshot.Snapshot, error) {
	vendors, err := repo.CancelledVendorNames(ctx, order.ID)
	if err != nil {
		return snapshot.Snapshot{}, db.Classify(err, "load cancelled vendors")
	}
	if vendors == nil {
		vendors = []string{}
	}
	snap, err := snapshot.Of(OrderSnapshot{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		TotalAmount: order.Total,
		CreatedAt:   order.CreatedAt.In(a.loc).Format(time.RFC3339),
		Customer:    CustomerRef{ID: order.UserID, Email: order.Email},
		Vendors:     vendors,
	})
	if err != nil {
		return snapshot.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order snapshot")
	}
	return snap, nil
}

// refreshEligibility sets is_fully_cancelled from a fresh count of unresolved siblings.
func (a *Accumulator) refreshEligibility(ctx context.Context, repo *Repository, refundID, orderID uuid.UUID, at time.Time) (bool, error) {
	unresolved, err := repo.CountUnresolved(ctx, orderID)
	if err != nil {
		return false, db.Classify(err, "count unresolved items")
	}
	fully := unresolved == 0
	if err := repo.Update(ctx, refundID, map[string]any{
		"is_fully_cancelled": fully,
		"updated_at":         at.UTC(),
	}); err != nil {
		return false, db.Classify(err, "update refund eligibility")
	}
	return fully, nil
}

func (a *Accumulator) recomputeIfExists(ctx context.Context, tx *gorm.DB, event orders.TransitionEvent) error {
	repo := NewRepository(tx)
	if _, err := repo.LockOrder(ctx, event.Item.OrderID); err != nil {
		return db.Classify(err, "lock order for refund")
	}
	refund, err := repo.FindByOrderID(ctx, event.Item.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return db.Classify(err, "load refund")
	}
	fully, err := a.refreshEligibility(ctx, repo, refund.ID, event.Item.OrderID, event.At)
	if err != nil {
		return &AccumulationError{RefundID: refund.ID, Err: err}
	}
	a.metrics.RefundAccumulated("recomputed")
	a.logg.Debug(a.logg.WithFields(ctx, map[string]any{
		"refund_id":          refund.ID.String(),
		"is_fully_cancelled": fully,
	}), "refund eligibility recomputed")
	return nil
}
