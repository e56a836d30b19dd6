package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

// Order is one checkout. Total and TotalData are fixed when the order is placed.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user_id"`
	OrderNumber   string            `gorm:"column:order_number;type:text;not null;uniqueIndex:ux_orders_order_number"`
	Email         string            `gorm:"column:email;type:text;not null"`
	FirstName     string            `gorm:"column:first_name;type:text;not null;default:''"`
	PaymentID     *uuid.UUID        `gorm:"column:payment_id;type:uuid"`
	Payment       *Payment          `gorm:"foreignKey:PaymentID"`
	PaymentMethod string            `gorm:"column:payment_method;type:text;not null;default:'esewa'"`
	Total         decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	TotalData     snapshot.Snapshot `gorm:"column:total_data;type:jsonb"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'new'"`
	IsOrdered     bool              `gorm:"column:is_ordered;not null;default:false"`
	Vendors       []Vendor          `gorm:"many2many:order_vendors"`
	Items         []OrderedFood     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
