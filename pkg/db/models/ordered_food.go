package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/money"
)

// OrderedFood is one vendor food line inside an order. Rows are never deleted.
type OrderedFood struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index:idx_ordered_foods_order_id"`
	Order             *Order               `gorm:"foreignKey:OrderID"`
	UserID            uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	VendorID          uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;index:idx_ordered_foods_vendor_payout,priority:1"`
	FoodItemID        uuid.UUID            `gorm:"column:food_item_id;type:uuid;not null"`
	FoodItem          *FoodItem            `gorm:"foreignKey:FoodItemID"`
	PaymentID         *uuid.UUID           `gorm:"column:payment_id;type:uuid"`
	Quantity          int                  `gorm:"column:quantity;not null"`
	Price             decimal.Decimal      `gorm:"column:price;type:numeric(12,2);not null"`
	Amount            decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Status            enums.LineItemStatus `gorm:"column:status;type:line_item_status;not null;default:'new';index:idx_ordered_foods_vendor_payout,priority:2"`
	IsPayoutProcessed bool                 `gorm:"column:is_payout_processed;not null;default:false;index:idx_ordered_foods_vendor_payout,priority:3"`
	ProcessedAt       *time.Time           `gorm:"column:processed_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate fixes Amount to Quantity × Price; the column is not written again.
func (f *OrderedFood) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	f.Amount = money.LineAmount(f.Price, f.Quantity)
	return nil
}

// ExpiryPolicy is the acceptance SLA applied to active line items.
type ExpiryPolicy struct {
	Window      time.Duration
	NearingFrom time.Duration
}

// TimeSinceCreation is the elapsed time between creation and now.
func (f *OrderedFood) TimeSinceCreation(now time.Time) time.Duration {
	return now.Sub(f.CreatedAt)
}

// IsExpired reports elapsed >= Window.
func (f *OrderedFood) IsExpired(now time.Time, p ExpiryPolicy) bool {
	return f.TimeSinceCreation(now) >= p.Window
}

// IsNearingExpiry reports NearingFrom < elapsed < Window.
func (f *OrderedFood) IsNearingExpiry(now time.Time, p ExpiryPolicy) bool {
	elapsed := f.TimeSinceCreation(now)
	return elapsed > p.NearingFrom && elapsed < p.Window
}
