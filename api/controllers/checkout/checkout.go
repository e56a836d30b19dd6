package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/api/middleware"
	"github.com/foodmart/foodmart-backend/api/responses"
	"github.com/foodmart/foodmart-backend/api/validators"
	"github.com/foodmart/foodmart-backend/internal/settlement"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

const maxOrderNumber = 64

// Service is the checkout half of the gateway adapter.
type Service interface {
	CheckoutCredentials(ctx context.Context, customerID uuid.UUID, orderNumber string) (esewa.Credentials, error)
	SettleCheckoutSuccess(ctx context.Context, cb settlement.CheckoutCallback) (*settlement.CheckoutResult, error)
	SettleCheckoutFailure(ctx context.Context, in settlement.CheckoutFailure) (*settlement.CheckoutResult, error)
}

// Decoder verifies and decodes a gateway redirect payload.
type Decoder interface {
	Decode(data string) (esewa.Callback, error)
}

type orderRequest struct {
	OrderNumber string `json:"order_number" validate:"required,max=64"`
}

// Credentials signs the payment form for one of the caller's unpaid orders.
func Credentials(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req orderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		creds, err := svc.CheckoutCredentials(r.Context(), userID, validators.SanitizeString(req.OrderNumber, maxOrderNumber))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, creds)
	}
}

// Success settles the redirect the gateway sends after a captured payment. The order
// number travels as a query parameter next to the signed data.
func Success(svc Service, decoder Decoder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderNumber, err := validators.RequiredQuery(r, "order_number", maxOrderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cb, err := DecodeCallback(r, decoder)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SettleCheckoutSuccess(r.Context(), settlement.CheckoutCallback{
			OrderNumber:   orderNumber,
			CustomerID:    userID,
			TransactionID: cb.TransactionCode,
			Status:        cb.Status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Failure records a declined or abandoned payment; the cart is kept for another attempt.
func Failure(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req orderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SettleCheckoutFailure(r.Context(), settlement.CheckoutFailure{
			OrderNumber: validators.SanitizeString(req.OrderNumber, maxOrderNumber),
			CustomerID:  userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// DecodeCallback reads the data query parameter and maps codec failures to API errors.
func DecodeCallback(r *http.Request, decoder Decoder) (esewa.Callback, error) {
	if decoder == nil {
		return esewa.Callback{}, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	data, err := validators.RequiredQuery(r, "data", 0)
	if err != nil {
		return esewa.Callback{}, err
	}
	cb, err := decoder.Decode(data)
	switch {
	case err == nil:
		return cb, nil
	case errors.Is(err, esewa.ErrBadSignature), errors.Is(err, esewa.ErrMissingSignature):
		return esewa.Callback{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "gateway signature rejected")
	default:
		return esewa.Callback{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gateway payload")
	}
}

func customerID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	return id.UserID, nil
}
