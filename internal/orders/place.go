package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/money"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

const defaultPaymentMethod = "esewa"

// PlaceOrder opens a new order from the customer's cart. Only lines of vendors open right
// now count toward the total and the vendor list.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if s.cart == nil || s.vendors == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order placement not configured")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	lines, err := s.cart.ListForUser(ctx, input.UserID)
	if err != nil {
		return nil, db.Classify(err, "load cart")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	now := s.clock.Now()
	vendorIDs := lo.Uniq(lo.Map(lines, func(line models.CartItem, _ int) uuid.UUID {
		return line.FoodItem.VendorID
	}))
	openIDs, err := s.vendors.OpenVendorIDs(ctx, vendorIDs, now)
	if err != nil {
		return nil, err
	}
	open := lo.SliceToMap(openIDs, func(id uuid.UUID) (uuid.UUID, bool) { return id, true })

	subtotals := map[uuid.UUID]decimal.Decimal{}
	vendors := map[uuid.UUID]models.Vendor{}
	for _, line := range lines {
		vendorID := line.FoodItem.VendorID
		if !open[vendorID] {
			continue
		}
		subtotals[vendorID] = subtotals[vendorID].Add(money.LineAmount(line.FoodItem.Price, line.Quantity))
		if line.FoodItem.Vendor != nil {
			vendors[vendorID] = *line.FoodItem.Vendor
		} else {
			vendors[vendorID] = models.Vendor{ID: vendorID}
		}
	}
	if len(subtotals) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no vendor in the cart is open")
	}

	totalData := lo.MapEntries(subtotals, func(id uuid.UUID, amount decimal.Decimal) (string, string) {
		return id.String(), money.Round(amount).StringFixed(money.Scale)
	})
	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		method = defaultPaymentMethod
	}

	id := uuid.New()
	order := &models.Order{
		ID:            id,
		UserID:        input.UserID,
		OrderNumber:   orderNumber(now.In(s.loc), id),
		Email:         input.Email,
		FirstName:     input.FirstName,
		PaymentMethod: method,
		Total:         money.Sum(lo.Values(subtotals)...),
		TotalData:     snapshot.MustOf(totalData),
		Status:        enums.OrderStatusNew,
		Vendors:       lo.Values(vendors),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return db.Classify(err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderPlacedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				Total:       order.Total,
				VendorIDs:   lo.Keys(vendors),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order placed")
	return order, nil
}

// orderNumber is the local timestamp followed by the first id segment.
func orderNumber(localNow time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s%s", localNow.Format("20060102150405"), strings.ToUpper(id.String()[:8]))
}
