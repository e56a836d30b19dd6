package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/money"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

// VendorPayout is one batch settlement for a vendor.
type VendorPayout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index:idx_vendor_payouts_vendor_id"`
	Vendor        *Vendor            `gorm:"foreignKey:VendorID"`
	OrderSnapshot snapshot.Snapshot  `gorm:"column:order_snapshot;type:jsonb"`
	FoodSnapshot  snapshot.Snapshot  `gorm:"column:food_snapshot;type:jsonb"`
	TotalAmount   decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Commission    decimal.Decimal    `gorm:"column:commission;type:numeric(5,4);not null"`
	NetAmount     decimal.Decimal    `gorm:"column:net_amount;type:numeric(12,2);not null"`
	ItemCount     int                `gorm:"column:item_count;not null;default:0"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	Date          time.Time          `gorm:"column:date;type:date;not null"`
	PayoutDate    *time.Time         `gorm:"column:payout_date"`
	PaymentID     *uuid.UUID         `gorm:"column:payment_id;type:uuid"`
	Payment       *Payment           `gorm:"foreignKey:PaymentID"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *VendorPayout) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// BeforeSave derives NetAmount from TotalAmount and Commission on every save.
func (p *VendorPayout) BeforeSave(*gorm.DB) error {
	if p.Commission.IsZero() {
		p.Commission = money.DefaultCommissionRate
	}
	p.NetAmount = money.Net(p.TotalAmount, p.Commission)
	return nil
}
