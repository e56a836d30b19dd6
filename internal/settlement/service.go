package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/cart"
	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/internal/orders"
	"github.com/foodmart/foodmart-backend/internal/payouts"
	"github.com/foodmart/foodmart-backend/internal/refunds"
	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

const receiptTimeLayout = "2006-01-02 15:04:05"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OpenChecker evaluates a vendor's opening hours, which must already be loaded.
type OpenChecker interface {
	IsOpen(ctx context.Context, vendor models.Vendor, now time.Time) bool
}

// ServiceParams wires the gateway adapter.
type ServiceParams struct {
	Tx       txRunner
	Repo     *Repository
	Orders   orders.Repository
	Cart     *cart.Repository
	Vendors  OpenChecker
	Payouts  *payouts.Repository
	Refunds  *refunds.Repository
	Outbox   outbox.Emitter
	Notifier notifications.Notifier
	Codec    *esewa.Codec
	Clock    localtime.Clock
	Location *time.Location
	Logger   *logger.Logger
}

// Service applies provider-confirmed results to orders, payouts and refunds.
type Service struct {
	tx       txRunner
	repo     *Repository
	orders   orders.Repository
	cart     *cart.Repository
	vendors  OpenChecker
	payouts  *payouts.Repository
	refunds  *refunds.Repository
	outbox   outbox.Emitter
	notifier notifications.Notifier
	codec    *esewa.Codec
	clock    localtime.Clock
	loc      *time.Location
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement repository required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case params.Cart == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	case params.Vendors == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "vendor hours checker required")
	case params.Payouts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository required")
	case params.Refunds == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds repository required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case params.Notifier == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	clock := params.Clock
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		tx:       params.Tx,
		repo:     params.Repo,
		orders:   params.Orders,
		cart:     params.Cart,
		vendors:  params.Vendors,
		payouts:  params.Payouts,
		refunds:  params.Refunds,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		codec:    params.Codec,
		clock:    clock,
		loc:      loc,
		logg:     logg,
	}, nil
}

func (s *Service) credentials(amount decimal.Decimal) (esewa.Credentials, error) {
	if s.codec == nil {
		return esewa.Credentials{}, pkgerrors.New(pkgerrors.CodeDependency, "esewa gateway not configured")
	}
	return s.codec.Credentials(amount), nil
}

func requireTransaction(id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	return nil
}

func requireComplete(status string) error {
	if status != "" && !strings.EqualFold(status, esewa.StatusComplete) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "gateway reported status %q", status).
			WithDetails(map[string]any{"status": status})
	}
	return nil
}

// recordPayment inserts a complete payment and emits payment_recorded for target.
func (s *Service) recordPayment(ctx context.Context, tx *gorm.DB, payment *models.Payment, target enums.OutboxAggregateType, targetID uuid.UUID, now time.Time) error {
	payment.Status = enums.PaymentStatusComplete
	if err := s.repo.WithTx(tx).CreatePayment(ctx, payment); err != nil {
		return err
	}
	return s.emit(ctx, tx, enums.EventPaymentRecorded, enums.AggregatePayment, payment.ID, now, payloads.PaymentRecordedEvent{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		UserID:        payment.UserID,
		Amount:        payment.Amount,
		Status:        payment.Status,
		Target:        string(target),
		TargetID:      targetID,
	})
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, id uuid.UUID, now time.Time, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   id,
		OccurredAt:    now.UTC(),
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("emit %s", eventType))
	}
	return nil
}

// finish maps transaction errors to the domain taxonomy.
func finish(err error, op string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return db.Classify(err, op)
}
