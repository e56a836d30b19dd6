package settlement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

// CheckoutCallback is a decoded success redirect for a customer order.
type CheckoutCallback struct {
	OrderNumber   string
	CustomerID    uuid.UUID
	TransactionID string
	Status        string
}

// CheckoutFailure identifies the order whose payment was declined or abandoned.
type CheckoutFailure struct {
	OrderNumber string
	CustomerID  uuid.UUID
}

// CheckoutResult is the order state after a checkout callback.
type CheckoutResult struct {
	Order    *models.Order        `json:"order"`
	Payment  *models.Payment      `json:"payment,omitempty"`
	Items    []models.OrderedFood `json:"items"`
	Replayed bool                 `json:"replayed"`
}

// CheckoutCredentials signs a payment form for an order that has not been paid.
func (s *Service) CheckoutCredentials(ctx context.Context, customerID uuid.UUID, orderNumber string) (esewa.Credentials, error) {
	order, err := s.orders.FindOrderByNumber(ctx, customerID, strings.TrimSpace(orderNumber))
	if err != nil {
		return esewa.Credentials{}, finish(err, "load order")
	}
	if order.IsOrdered {
		return esewa.Credentials{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
	}
	return s.credentials(order.Total)
}

// SettleCheckoutSuccess records the payment, completes the order and turns the open vendors'
// cart lines into pending line items. A transaction id seen before returns the stored result.
func (s *Service) SettleCheckoutSuccess(ctx context.Context, cb CheckoutCallback) (*CheckoutResult, error) {
	if err := requireTransaction(cb.TransactionID); err != nil {
		return nil, err
	}
	if err := requireComplete(cb.Status); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_number":   cb.OrderNumber,
		"transaction_id": cb.TransactionID,
		"user_id":        cb.CustomerID.String(),
	})

	if existing, err := s.repo.FindPayment(ctx, cb.TransactionID); err != nil {
		return nil, finish(err, "lookup payment")
	} else if existing != nil {
		return s.checkoutReplay(ctx, cb, existing)
	}

	now := s.clock.Now()
	result := &CheckoutResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockOrder(ctx, cb.CustomerID, cb.OrderNumber)
		if err != nil {
			return err
		}
		if order.IsOrdered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		}

		payment := &models.Payment{
			TransactionID: cb.TransactionID,
			Amount:        order.Total,
			UserID:        order.UserID,
		}
		if err := s.recordPayment(ctx, tx, payment, enums.AggregateOrder, order.ID, now); err != nil {
			return err
		}
		if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
			"status":     enums.OrderStatusCompleted,
			"is_ordered": true,
			"payment_id": payment.ID,
			"updated_at": now.UTC(),
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCompleted
		order.IsOrdered = true
		order.PaymentID = &payment.ID

		lines, items, err := s.materialize(ctx, tx, order, now, enums.LineItemStatusPending, &payment.ID)
		if err != nil {
			return err
		}
		if err := s.cart.WithTx(tx).DeleteByIDs(ctx, order.UserID, lo.Map(lines, func(l models.CartItem, _ int) uuid.UUID { return l.ID })); err != nil {
			return err
		}

		if err := s.emit(ctx, tx, enums.EventCheckoutSettled, enums.AggregateOrder, order.ID, now, payloads.CheckoutSettledEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			TransactionID: payment.TransactionID,
			Amount:        payment.Amount,
			ItemIDs:       itemIDs(items),
		}); err != nil {
			return err
		}
		if err := s.notifyCheckout(ctx, tx, order, payment, lines); err != nil {
			return err
		}

		result.Order = order
		result.Payment = payment
		result.Items = items
		return nil
	})
	if err != nil {
		if isPaymentReplay(err) {
			existing, lookupErr := s.repo.FindPayment(ctx, cb.TransactionID)
			if lookupErr == nil && existing != nil {
				return s.checkoutReplay(ctx, cb, existing)
			}
		}
		return nil, finish(err, "settle checkout")
	}

	s.logg.Info(s.logg.WithField(ctx, "items", len(result.Items)), "checkout settled")
	return result, nil
}

// SettleCheckoutFailure cancels the order and records the open vendors' cart lines as
// cancelled in the gateway. The cart is kept so the customer can retry. Refunds are not
// involved because nothing was captured.
func (s *Service) SettleCheckoutFailure(ctx context.Context, in CheckoutFailure) (*CheckoutResult, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_number": in.OrderNumber,
		"user_id":      in.CustomerID.String(),
	})
	now := s.clock.Now()
	result := &CheckoutResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockOrder(ctx, in.CustomerID, in.OrderNumber)
		if err != nil {
			return err
		}
		if order.IsOrdered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		}
		if order.Status == enums.OrderStatusCancelled {
			items, err := s.orders.WithTx(tx).ListForOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			result.Order, result.Items, result.Replayed = order, items, true
			return nil
		}

		if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
			"status":     enums.OrderStatusCancelled,
			"is_ordered": false,
			"updated_at": now.UTC(),
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCancelled
		order.IsOrdered = false

		_, items, err := s.materialize(ctx, tx, order, now, enums.LineItemStatusGatewayCancelled, nil)
		if err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventCheckoutFailed, enums.AggregateOrder, order.ID, now, payloads.CheckoutFailedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			ItemIDs:     itemIDs(items),
		}); err != nil {
			return err
		}
		result.Order, result.Items = order, items
		return nil
	})
	if err != nil {
		return nil, finish(err, "fail checkout")
	}
	if !result.Replayed {
		s.logg.Info(ctx, "checkout failed at gateway")
	}
	return result, nil
}

// materialize creates one line item per cart line whose vendor is open at now and returns
// those cart lines with the created items.
func (s *Service) materialize(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time, status enums.LineItemStatus, paymentID *uuid.UUID) ([]models.CartItem, []models.OrderedFood, error) {
	lines, err := s.cart.WithTx(tx).ListForUser(ctx, order.UserID)
	if err != nil {
		return nil, nil, err
	}
	open := lo.Filter(lines, func(line models.CartItem, _ int) bool {
		return line.FoodItem != nil && line.FoodItem.Vendor != nil && s.vendors.IsOpen(ctx, *line.FoodItem.Vendor, now)
	})
	items := lo.Map(open, func(line models.CartItem, _ int) models.OrderedFood {
		return models.OrderedFood{
			OrderID:    order.ID,
			UserID:     order.UserID,
			VendorID:   line.FoodItem.VendorID,
			FoodItemID: line.FoodItemID,
			PaymentID:  paymentID,
			Quantity:   line.Quantity,
			Price:      line.FoodItem.Price,
			Status:     status,
		}
	})
	if err := s.orders.WithTx(tx).CreateItems(ctx, items); err != nil {
		return nil, nil, err
	}
	return open, items, nil
}

func (s *Service) notifyCheckout(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, lines []models.CartItem) error {
	if err := s.notifier.Request(ctx, tx, notifications.Request{
		Template: enums.TemplateOrderConfirmation,
		Subject:  "Thanks for ordering with us",
		To:       []string{order.Email},
		Context: map[string]any{
			"user_first_name":      order.FirstName,
			"order_id":             order.OrderNumber,
			"order_transaction_id": payment.TransactionID,
			"to_email":             order.Email,
		},
	}); err != nil {
		return err
	}

	vendorEmails := lo.Uniq(lo.FilterMap(lines, func(line models.CartItem, _ int) (string, bool) {
		v := line.FoodItem.Vendor
		if v.User == nil {
			return "", false
		}
		return v.User.Email, true
	}))
	if len(vendorEmails) == 0 {
		return nil
	}
	return s.notifier.Request(ctx, tx, notifications.Request{
		Template: enums.TemplateNewOrderReceived,
		Subject:  "You have received an order",
		To:       vendorEmails,
		Context: map[string]any{
			"to_email":     vendorEmails,
			"order_number": order.OrderNumber,
		},
	})
}

func (s *Service) checkoutReplay(ctx context.Context, cb CheckoutCallback, payment *models.Payment) (*CheckoutResult, error) {
	order, err := s.orders.FindOrderByNumber(ctx, cb.CustomerID, cb.OrderNumber)
	if err != nil {
		return nil, finish(err, "load order")
	}
	if order.PaymentID == nil || *order.PaymentID != payment.ID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already recorded for another order").
			WithDetails(map[string]any{"transaction_id": cb.TransactionID})
	}
	items, err := s.orders.ListForOrder(ctx, order.ID)
	if err != nil {
		return nil, finish(err, "load order items")
	}
	s.logg.Info(ctx, "checkout callback replayed")
	return &CheckoutResult{Order: order, Payment: payment, Items: items, Replayed: true}, nil
}

func itemIDs(items []models.OrderedFood) []uuid.UUID {
	return lo.Map(items, func(i models.OrderedFood, _ int) uuid.UUID { return i.ID })
}
