package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// PaymentTransactionConstraint names the unique index guarding callback replays.
const PaymentTransactionConstraint = "ux_payments_transaction_id"

// Payment is a provider-confirmed settlement record. Only Status may change after insert.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID string              `gorm:"column:transaction_id;type:text;not null;uniqueIndex:ux_payments_transaction_id"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
