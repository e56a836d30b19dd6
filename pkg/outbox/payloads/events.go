package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// OrderPlacedEvent is emitted when a customer opens a checkout.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	VendorIDs   []uuid.UUID     `json:"vendor_ids"`
}

// CheckoutSettledEvent records a gateway-confirmed checkout and the lines it created.
type CheckoutSettledEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	ItemIDs       []uuid.UUID     `json:"item_ids"`
}

// CheckoutFailedEvent records a declined checkout.
type CheckoutFailedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
}

// LineItemStatusChangedEvent is emitted for every effective line item transition.
type LineItemStatusChangedEvent struct {
	ItemID    uuid.UUID            `json:"item_id"`
	OrderID   uuid.UUID            `json:"order_id"`
	VendorID  uuid.UUID            `json:"vendor_id"`
	From      enums.LineItemStatus `json:"from"`
	To        enums.LineItemStatus `json:"to"`
	Amount    decimal.Decimal      `json:"amount"`
	ActorRole string               `json:"actor_role,omitempty"`
	ChangedAt time.Time            `json:"changed_at"`
}

// RefundAccumulatedEvent is emitted each time a cancelled item grows a refund aggregate.
type RefundAccumulatedEvent struct {
	RefundID         uuid.UUID       `json:"refund_id"`
	OrderID          uuid.UUID       `json:"order_id"`
	ItemID           uuid.UUID       `json:"item_id"`
	ItemAmount       decimal.Decimal `json:"item_amount"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	IsFullyCancelled bool            `json:"is_fully_cancelled"`
}

// RefundSettledEvent is emitted when the gateway settles or rejects a refund.
type RefundSettledEvent struct {
	RefundID  uuid.UUID          `json:"refund_id"`
	OrderID   uuid.UUID          `json:"order_id"`
	Status    enums.RefundStatus `json:"status"`
	PaymentID *uuid.UUID         `json:"payment_id,omitempty"`
}

// VendorPayoutCreatedEvent is emitted once per payout batch row.
type VendorPayoutCreatedEvent struct {
	PayoutID    uuid.UUID       `json:"payout_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	Date        string          `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Commission  decimal.Decimal `json:"commission"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	ItemCount   int             `json:"item_count"`
	ItemIDs     []uuid.UUID     `json:"item_ids"`
}

// VendorPayoutSettledEvent is emitted when the gateway settles or rejects a payout.
type VendorPayoutSettledEvent struct {
	PayoutID  uuid.UUID          `json:"payout_id"`
	VendorID  uuid.UUID          `json:"vendor_id"`
	Status    enums.PayoutStatus `json:"status"`
	PaymentID *uuid.UUID         `json:"payment_id,omitempty"`
}

// PaymentRecordedEvent is emitted for every Payment row written from a gateway callback.
type PaymentRecordedEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	TransactionID string              `json:"transaction_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        enums.PaymentStatus `json:"status"`
	Target        string              `json:"target"`
	TargetID      uuid.UUID           `json:"target_id"`
}

// NotificationRequestedEvent asks the notification worker to deliver a templated message.
type NotificationRequestedEvent struct {
	Template enums.NotificationTemplate `json:"template"`
	Subject  string                     `json:"subject"`
	To       []string                   `json:"to"`
	Context  map[string]any             `json:"context,omitempty"`
}
