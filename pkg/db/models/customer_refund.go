package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

// RefundOrderConstraint enforces one refund aggregate per order.
const RefundOrderConstraint = "ux_customer_refunds_order_id"

// CustomerRefund accumulates cancelled line items of one order.
type CustomerRefund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_customer_refunds_order_id"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	OrderSnapshot    snapshot.Snapshot  `gorm:"column:order_snapshot;type:jsonb"`
	RefundedItems    snapshot.Snapshot  `gorm:"column:refunded_items;type:jsonb"`
	RefundAmount     decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2);not null;default:0"`
	Status           enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	IsFullyCancelled bool               `gorm:"column:is_fully_cancelled;not null;default:false"`
	PaymentID        *uuid.UUID         `gorm:"column:payment_id;type:uuid"`
	Payment          *Payment           `gorm:"foreignKey:PaymentID"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *CustomerRefund) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
