package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/money"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

// TransferCallback is a decoded success redirect for an admin-initiated payout or refund.
type TransferCallback struct {
	ID            uuid.UUID
	TransactionID string
	Status        string
}

// PayoutResult is the payout state after a gateway callback.
type PayoutResult struct {
	Payout   *models.VendorPayout `json:"payout"`
	Payment  *models.Payment      `json:"payment,omitempty"`
	Replayed bool                 `json:"replayed"`
}

// RefundResult is the refund state after a gateway callback.
type RefundResult struct {
	Refund   *models.CustomerRefund `json:"refund"`
	Payment  *models.Payment        `json:"payment,omitempty"`
	Replayed bool                   `json:"replayed"`
}

// PayoutCredentials signs a transfer of the payout's net amount.
func (s *Service) PayoutCredentials(ctx context.Context, payoutID uuid.UUID) (esewa.Credentials, error) {
	payout, err := s.payouts.FindByID(ctx, payoutID)
	if err != nil {
		return esewa.Credentials{}, finish(err, "load payout")
	}
	if payout.Status == enums.PayoutStatusCompleted {
		return esewa.Credentials{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
	}
	return s.credentials(payout.NetAmount)
}

// SettlePayoutSuccess records the vendor payment, completes the payout and sends the receipt.
func (s *Service) SettlePayoutSuccess(ctx context.Context, cb TransferCallback) (*PayoutResult, error) {
	if err := requireTransaction(cb.TransactionID); err != nil {
		return nil, err
	}
	if err := requireComplete(cb.Status); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"payout_id": cb.ID.String(), "transaction_id": cb.TransactionID})

	if existing, err := s.repo.FindPayment(ctx, cb.TransactionID); err != nil {
		return nil, finish(err, "lookup payment")
	} else if existing != nil {
		return s.payoutReplay(ctx, cb, existing)
	}

	now := s.clock.Now()
	result := &PayoutResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.payouts.WithTx(tx)
		if _, err := repo.LockByID(ctx, cb.ID); err != nil {
			return err
		}
		payout, err := repo.FindByID(ctx, cb.ID)
		if err != nil {
			return err
		}
		if payout.Status == enums.PayoutStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
		}
		if payout.Vendor == nil || payout.Vendor.User == nil {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "payout vendor account missing")
		}

		payment := &models.Payment{
			TransactionID: cb.TransactionID,
			Amount:        payout.NetAmount,
			UserID:        payout.Vendor.UserID,
		}
		if err := s.recordPayment(ctx, tx, payment, enums.AggregatePayout, payout.ID, now); err != nil {
			return err
		}
		paidAt := now.UTC()
		if err := repo.Update(ctx, payout.ID, map[string]any{
			"status":      enums.PayoutStatusCompleted,
			"payment_id":  payment.ID,
			"payout_date": paidAt,
			"updated_at":  paidAt,
		}); err != nil {
			return err
		}
		payout.Status = enums.PayoutStatusCompleted
		payout.PaymentID = &payment.ID
		payout.PayoutDate = &paidAt

		if err := s.emit(ctx, tx, enums.EventVendorPayoutSettled, enums.AggregatePayout, payout.ID, now, payloads.VendorPayoutSettledEvent{
			PayoutID:  payout.ID,
			VendorID:  payout.VendorID,
			Status:    payout.Status,
			PaymentID: &payment.ID,
		}); err != nil {
			return err
		}
		if err := s.notifier.Request(ctx, tx, notifications.Request{
			Template: enums.TemplatePayoutReceipt,
			Subject:  "payment details",
			To:       []string{payout.Vendor.User.Email},
			Context: map[string]any{
				"vendor_name":      payout.Vendor.VendorName,
				"amount":           money.Format(payout.NetAmount),
				"transaction_id":   payment.TransactionID,
				"transaction_date": paidAt.In(s.loc).Format(receiptTimeLayout),
				"to_email":         payout.Vendor.User.Email,
				"payout_id":        payout.ID.String(),
			},
		}); err != nil {
			return err
		}

		result.Payout, result.Payment = payout, payment
		return nil
	})
	if err != nil {
		if isPaymentReplay(err) {
			if existing, lookupErr := s.repo.FindPayment(ctx, cb.TransactionID); lookupErr == nil && existing != nil {
				return s.payoutReplay(ctx, cb, existing)
			}
		}
		return nil, finish(err, "settle payout")
	}
	s.logg.Info(ctx, "vendor payout settled")
	return result, nil
}

// SettlePayoutFailure marks the payout cancelled so it can be retried from the admin list.
func (s *Service) SettlePayoutFailure(ctx context.Context, payoutID uuid.UUID) (*PayoutResult, error) {
	ctx = s.logg.WithField(ctx, "payout_id", payoutID.String())
	now := s.clock.Now()
	result := &PayoutResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.payouts.WithTx(tx)
		payout, err := repo.LockByID(ctx, payoutID)
		if err != nil {
			return err
		}
		if payout.Status == enums.PayoutStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
		}
		failedAt := now.UTC()
		if err := repo.Update(ctx, payout.ID, map[string]any{
			"status":      enums.PayoutStatusCancelled,
			"payout_date": failedAt,
			"updated_at":  failedAt,
		}); err != nil {
			return err
		}
		payout.Status = enums.PayoutStatusCancelled
		payout.PayoutDate = &failedAt
		if err := s.emit(ctx, tx, enums.EventVendorPayoutSettled, enums.AggregatePayout, payout.ID, now, payloads.VendorPayoutSettledEvent{
			PayoutID: payout.ID,
			VendorID: payout.VendorID,
			Status:   payout.Status,
		}); err != nil {
			return err
		}
		result.Payout = payout
		return nil
	})
	if err != nil {
		return nil, finish(err, "fail payout")
	}
	s.logg.Warn(ctx, "vendor payout failed at gateway")
	return result, nil
}

func (s *Service) payoutReplay(ctx context.Context, cb TransferCallback, payment *models.Payment) (*PayoutResult, error) {
	payout, err := s.payouts.FindByID(ctx, cb.ID)
	if err != nil {
		return nil, finish(err, "load payout")
	}
	if payout.PaymentID == nil || *payout.PaymentID != payment.ID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already recorded for another settlement").
			WithDetails(map[string]any{"transaction_id": cb.TransactionID})
	}
	s.logg.Info(ctx, "payout callback replayed")
	return &PayoutResult{Payout: payout, Payment: payment, Replayed: true}, nil
}

// RefundCredentials signs a transfer of the refund amount back to the customer.
func (s *Service) RefundCredentials(ctx context.Context, refundID uuid.UUID) (esewa.Credentials, error) {
	refund, err := s.refunds.FindByID(ctx, refundID)
	if err != nil {
		return esewa.Credentials{}, finish(err, "load refund")
	}
	if err := requireSettleable(refund); err != nil {
		return esewa.Credentials{}, err
	}
	return s.credentials(refund.RefundAmount)
}

// requireSettleable admits only final refunds: every line of the order resolved and no
// transfer completed yet.
func requireSettleable(refund *models.CustomerRefund) error {
	switch refund.Status {
	case enums.RefundStatusPending, enums.RefundStatusFailed:
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already completed")
	}
	if !refund.IsFullyCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order still has open line items")
	}
	return nil
}

// SettleRefundSuccess records the customer payment and completes the refund.
func (s *Service) SettleRefundSuccess(ctx context.Context, cb TransferCallback) (*RefundResult, error) {
	if err := requireTransaction(cb.TransactionID); err != nil {
		return nil, err
	}
	if err := requireComplete(cb.Status); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"refund_id": cb.ID.String(), "transaction_id": cb.TransactionID})

	if existing, err := s.repo.FindPayment(ctx, cb.TransactionID); err != nil {
		return nil, finish(err, "lookup payment")
	} else if existing != nil {
		return s.refundReplay(ctx, cb, existing)
	}

	now := s.clock.Now()
	result := &RefundResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.refunds.WithTx(tx)
		refund, err := repo.LockByID(ctx, cb.ID)
		if err != nil {
			return err
		}
		if err := requireSettleable(refund); err != nil {
			return err
		}

		payment := &models.Payment{
			TransactionID: cb.TransactionID,
			Amount:        refund.RefundAmount,
			UserID:        refund.UserID,
		}
		if err := s.recordPayment(ctx, tx, payment, enums.AggregateRefund, refund.ID, now); err != nil {
			return err
		}
		if err := repo.Update(ctx, refund.ID, map[string]any{
			"status":     enums.RefundStatusCompleted,
			"payment_id": payment.ID,
			"updated_at": now.UTC(),
		}); err != nil {
			return err
		}
		refund.Status = enums.RefundStatusCompleted
		refund.PaymentID = &payment.ID

		if err := s.emit(ctx, tx, enums.EventRefundSettled, enums.AggregateRefund, refund.ID, now, payloads.RefundSettledEvent{
			RefundID:  refund.ID,
			OrderID:   refund.OrderID,
			Status:    refund.Status,
			PaymentID: &payment.ID,
		}); err != nil {
			return err
		}

		order, err := s.repo.WithTx(tx).FindOrder(ctx, refund.OrderID)
		if err != nil {
			return err
		}
		if err := s.notifier.Request(ctx, tx, notifications.Request{
			Template: enums.TemplateRefundCompleted,
			Subject:  "Your refund has been processed",
			To:       []string{order.Email},
			Context: map[string]any{
				"user_first_name": order.FirstName,
				"order_number":    order.OrderNumber,
				"amount":          money.Format(refund.RefundAmount),
				"transaction_id":  payment.TransactionID,
				"to_email":        order.Email,
			},
		}); err != nil {
			return err
		}

		result.Refund, result.Payment = refund, payment
		return nil
	})
	if err != nil {
		if isPaymentReplay(err) {
			if existing, lookupErr := s.repo.FindPayment(ctx, cb.TransactionID); lookupErr == nil && existing != nil {
				return s.refundReplay(ctx, cb, existing)
			}
		}
		return nil, finish(err, "settle refund")
	}
	s.logg.Info(ctx, "customer refund settled")
	return result, nil
}

// SettleRefundFailure marks the refund failed; it stays in the settleable list.
func (s *Service) SettleRefundFailure(ctx context.Context, refundID uuid.UUID) (*RefundResult, error) {
	ctx = s.logg.WithField(ctx, "refund_id", refundID.String())
	now := s.clock.Now()
	result := &RefundResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.refunds.WithTx(tx)
		refund, err := repo.LockByID(ctx, refundID)
		if err != nil {
			return err
		}
		if refund.Status == enums.RefundStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already completed")
		}
		if err := repo.Update(ctx, refund.ID, map[string]any{
			"status":     enums.RefundStatusFailed,
			"updated_at": now.UTC(),
		}); err != nil {
			return err
		}
		refund.Status = enums.RefundStatusFailed
		if err := s.emit(ctx, tx, enums.EventRefundSettled, enums.AggregateRefund, refund.ID, now, payloads.RefundSettledEvent{
			RefundID: refund.ID,
			OrderID:  refund.OrderID,
			Status:   refund.Status,
		}); err != nil {
			return err
		}
		result.Refund = refund
		return nil
	})
	if err != nil {
		return nil, finish(err, "fail refund")
	}
	s.logg.Warn(ctx, "customer refund failed at gateway")
	return result, nil
}

func (s *Service) refundReplay(ctx context.Context, cb TransferCallback, payment *models.Payment) (*RefundResult, error) {
	refund, err := s.refunds.FindByID(ctx, cb.ID)
	if err != nil {
		return nil, finish(err, "load refund")
	}
	if refund.PaymentID == nil || *refund.PaymentID != payment.ID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already recorded for another settlement").
			WithDetails(map[string]any{"transaction_id": cb.TransactionID})
	}
	s.logg.Info(ctx, "refund callback replayed")
	return &RefundResult{Refund: refund, Payment: payment, Replayed: true}, nil
}
