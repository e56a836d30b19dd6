package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderedFood) error
	FindOrderByNumber(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderedFood, error)
	LockItem(ctx context.Context, itemID uuid.UUID) (*models.OrderedFood, error)
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.LineItemStatus, at time.Time) error
	ListActive(ctx context.Context) ([]models.OrderedFood, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderedFood, error)
	SumCompleted(ctx context.Context, vendorID uuid.UUID, from, to *time.Time) (decimal.Decimal, error)
	ListCompletedAmounts(ctx context.Context, vendorID uuid.UUID) ([]CompletedAmount, error)
}

// CompletedAmount is the projection used for the monthly earnings breakdown.
type CompletedAmount struct {
	Amount    decimal.Decimal
	CreatedAt time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Vendors.*", "Items").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderedFood) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

func (r *repository) FindOrderByNumber(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND order_number = ?", userID, orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderedFood, error) {
	var item models.OrderedFood
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) LockItem(ctx context.Context, itemID uuid.UUID) (*models.OrderedFood, error) {
	var item models.OrderedFood
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.LineItemStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderedFood{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at.UTC(),
		}).Error
}

// ListActive returns every line item the expiry sweep still has to look at, with the
// vendor owner loaded for warning recipients.
func (r *repository) ListActive(ctx context.Context) ([]models.OrderedFood, error) {
	var items []models.OrderedFood
	err := r.db.WithContext(ctx).
		Preload("FoodItem").
		Preload("FoodItem.Vendor").
		Preload("FoodItem.Vendor.User").
		Where("status NOT IN ?", []enums.LineItemStatus{
			enums.LineItemStatusCompleted,
			enums.LineItemStatusCancelled,
			enums.LineItemStatusGatewayCancelled,
		}).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderedFood, error) {
	var items []models.OrderedFood
	err := r.db.WithContext(ctx).
		Preload("FoodItem").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) SumCompleted(ctx context.Context, vendorID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.OrderedFood{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("vendor_id = ? AND status = ?", vendorID, enums.LineItemStatusCompleted)
	if from != nil {
		query = query.Where("created_at >= ?", from.UTC())
	}
	if to != nil {
		query = query.Where("created_at < ?", to.UTC())
	}
	var total decimal.Decimal
	if err := query.Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *repository) ListCompletedAmounts(ctx context.Context, vendorID uuid.UUID) ([]CompletedAmount, error) {
	var rows []CompletedAmount
	err := r.db.WithContext(ctx).
		Model(&models.OrderedFood{}).
		Select("amount, created_at").
		Where("vendor_id = ? AND status = ?", vendorID, enums.LineItemStatusCompleted).
		Order("created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
