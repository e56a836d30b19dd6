package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
)

// Actor identifies who requested a transition.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	VendorID *uuid.UUID
}

// SystemActor is used by scheduled jobs.
func SystemActor() Actor {
	return Actor{Role: enums.UserRoleSystem}
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role.String()}
}

// SetStatusInput is a request to move one line item to a new status.
type SetStatusInput struct {
	ItemID uuid.UUID
	Status string
	Actor  Actor
}

// TransitionEvent is handed to every hook after the item row has been written.
type TransitionEvent struct {
	Item  models.OrderedFood
	From  enums.LineItemStatus
	To    enums.LineItemStatus
	Actor Actor
	At    time.Time
}

// TransitionHook reacts to an effective transition inside the same transaction. A
// returned error rolls back the status change.
type TransitionHook interface {
	OnTransition(ctx context.Context, tx *gorm.DB, event TransitionEvent) error
}

// Compensator is implemented by hook errors that need a follow-up write after the
// transition has rolled back.
type Compensator interface {
	Compensate(ctx context.Context, tx *gorm.DB) error
}

// TransitionResult reports what SetStatus did. Changed is false for a reapplied status.
type TransitionResult struct {
	Item    models.OrderedFood
	From    enums.LineItemStatus
	To      enums.LineItemStatus
	Changed bool
}

// PlaceOrderInput opens an order from the customer's cart.
type PlaceOrderInput struct {
	UserID        uuid.UUID
	Email         string
	FirstName     string
	PaymentMethod string
}

// EarningsReport sums completed line item amounts for one vendor in local time.
type EarningsReport struct {
	Today       decimal.Decimal  `json:"today"`
	Weekly      decimal.Decimal  `json:"weekly"`
	Monthly     decimal.Decimal  `json:"monthly"`
	Total       decimal.Decimal  `json:"total"`
	ByMonth     []MonthlyEarning `json:"by_month"`
	CurrentDate string           `json:"current_date"`
}

// MonthlyEarning is one row of the month breakdown.
type MonthlyEarning struct {
	Month    string          `json:"month"`
	Earnings decimal.Decimal `json:"earnings"`
}
