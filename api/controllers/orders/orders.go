package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/api/middleware"
	"github.com/foodmart/foodmart-backend/api/responses"
	"github.com/foodmart/foodmart-backend/api/validators"
	internalorders "github.com/foodmart/foodmart-backend/internal/orders"
	"github.com/foodmart/foodmart-backend/internal/vendors"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// Service is the slice of the order service the handlers call.
type Service interface {
	PlaceOrder(ctx context.Context, input internalorders.PlaceOrderInput) (*models.Order, error)
	SetStatus(ctx context.Context, input internalorders.SetStatusInput) (internalorders.TransitionResult, error)
	Earnings(ctx context.Context, vendorID uuid.UUID) (*internalorders.EarningsReport, error)
}

// VendorStatus reports which vendors in a customer's cart are open.
type VendorStatus interface {
	VendorStatus(ctx context.Context, userID uuid.UUID) (*vendors.Status, error)
}

// StatusPublisher pushes an effective status change to live subscribers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, itemID uuid.UUID, status enums.LineItemStatus) error
}

type placeOrderRequest struct {
	Email         string `json:"email" validate:"required,email,max=254"`
	FirstName     string `json:"first_name" validate:"required,max=100"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=esewa"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,max=32"`
}

// StatusResponse is returned by both status routes.
type StatusResponse struct {
	ItemID  uuid.UUID            `json:"item_id"`
	From    enums.LineItemStatus `json:"from"`
	Status  enums.LineItemStatus `json:"status"`
	Changed bool                 `json:"changed"`
}

// Place opens an order from the caller's cart.
func Place(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing"))
			return
		}
		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.PlaceOrder(r.Context(), internalorders.PlaceOrderInput{
			UserID:        id.UserID,
			Email:         validators.SanitizeString(req.Email, 254),
			FirstName:     validators.SanitizeString(req.FirstName, 100),
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// SetStatus applies a status change for the caller in the context: a customer or vendor
// behind Auth, or the system role behind InternalToken.
func SetStatus(svc Service, publisher StatusPublisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing"))
			return
		}
		itemID, err := validators.PathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SetStatus(r.Context(), internalorders.SetStatusInput{
			ItemID: itemID,
			Status: req.Status,
			Actor:  internalorders.Actor{UserID: id.UserID, Role: id.Role, VendorID: id.VendorID},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.Changed && publisher != nil {
			if err := publisher.PublishStatus(r.Context(), itemID, result.To); err != nil && logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "realtime publish failed")
			}
		}

		responses.WriteSuccess(w, StatusResponse{
			ItemID:  itemID,
			From:    result.From,
			Status:  result.To,
			Changed: result.Changed,
		})
	}
}

// Earnings returns the caller vendor's completed sales report.
func Earnings(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := middleware.IdentityFromContext(r.Context())
		if id.VendorID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context required"))
			return
		}
		report, err := svc.Earnings(r.Context(), *id.VendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// CartVendorStatus splits the caller's cart vendors into open and closed.
func CartVendorStatus(svc VendorStatus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing"))
			return
		}
		status, err := svc.VendorStatus(r.Context(), id.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
