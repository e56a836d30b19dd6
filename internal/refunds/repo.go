package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

// Repository persists refund aggregates and the sibling reads they depend on.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to refund operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LockOrder takes the per-order exclusive lock every refund mutation runs under.
func (r *Repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindFood loads a food item with its vendor.
func (r *Repository) FindFood(ctx context.Context, foodID uuid.UUID) (*models.FoodItem, error) {
	var food models.FoodItem
	if err := r.db.WithContext(ctx).Preload("Vendor").Where("id = ?", foodID).First(&food).Error; err != nil {
		return nil, err
	}
	return &food, nil
}

// FindByOrderID returns the order's refund aggregate.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.CustomerRefund, error) {
	var refund models.CustomerRefund
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

// FindByID loads one refund.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CustomerRefund, error) {
	var refund models.CustomerRefund
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

// LockByID loads one refund FOR UPDATE.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.CustomerRefund, error) {
	var refund models.CustomerRefund
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// Create inserts a new refund aggregate.
func (r *Repository) Create(ctx context.Context, refund *models.CustomerRefund) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(refund).Error
}

// Increment adds amount to refund_amount in place and replaces the snapshots.
func (r *Repository) Increment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, items, order snapshot.Snapshot, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomerRefund{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"refund_amount":  gorm.Expr("refund_amount + ?", amount),
			"refunded_items": items,
			"order_snapshot": order,
			"updated_at":     at.UTC(),
		}).Error
}

// Update writes the given columns of one refund.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomerRefund{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CountUnresolved counts the order's line items that are neither cancelled nor completed.
func (r *Repository) CountUnresolved(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderedFood{}).
		Where("order_id = ? AND status NOT IN ?", orderID, enums.ResolvedLineItemStatuses()).
		Count(&count).Error
	return count, err
}

// CancelledVendorNames returns the distinct vendor names of the order's cancelled items.
func (r *Repository) CancelledVendorNames(ctx context.Context, orderID uuid.UUID) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.OrderedFood{}).
		Distinct("vendors.vendor_name").
		Joins("JOIN vendors ON vendors.id = ordered_foods.vendor_id").
		Where("ordered_foods.order_id = ? AND ordered_foods.status = ?", orderID, enums.LineItemStatusCancelled).
		Order("vendors.vendor_name ASC").
		Pluck("vendors.vendor_name", &names).Error
	return names, err
}

// ListByStatus returns refunds in any of statuses, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, statuses []enums.RefundStatus, fullyCancelledOnly bool) ([]models.CustomerRefund, error) {
	var refunds []models.CustomerRefund
	query := r.db.WithContext(ctx).
		Where("status IN ?", statuses)
	if fullyCancelledOnly {
		query = query.Where("is_fully_cancelled = ?", true)
	}
	if err := query.Order("created_at ASC").Order("id ASC").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}
