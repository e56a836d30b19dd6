package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/api/controllers/checkout"
	"github.com/foodmart/foodmart-backend/api/responses"
	"github.com/foodmart/foodmart-backend/api/validators"
	"github.com/foodmart/foodmart-backend/internal/settlement"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// Transfers is the admin half of the gateway adapter.
type Transfers interface {
	PayoutCredentials(ctx context.Context, payoutID uuid.UUID) (esewa.Credentials, error)
	SettlePayoutSuccess(ctx context.Context, cb settlement.TransferCallback) (*settlement.PayoutResult, error)
	SettlePayoutFailure(ctx context.Context, payoutID uuid.UUID) (*settlement.PayoutResult, error)
	RefundCredentials(ctx context.Context, refundID uuid.UUID) (esewa.Credentials, error)
	SettleRefundSuccess(ctx context.Context, cb settlement.TransferCallback) (*settlement.RefundResult, error)
	SettleRefundFailure(ctx context.Context, refundID uuid.UUID) (*settlement.RefundResult, error)
}

// PayoutLister lists payouts still owed to vendors.
type PayoutLister interface {
	ListOutstanding(ctx context.Context) ([]models.VendorPayout, error)
}

// RefundLister lists refunds ready to be sent to customers.
type RefundLister interface {
	ListSettleable(ctx context.Context) ([]models.CustomerRefund, error)
	ListPending(ctx context.Context) ([]models.CustomerRefund, error)
}

func ListPayouts(svc PayoutLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListOutstanding(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ListRefunds returns settleable refunds; ?scope=pending includes orders that still have open lines.
func ListRefunds(svc RefundLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := svc.ListSettleable
		switch r.URL.Query().Get("scope") {
		case "", "settleable":
		case "pending":
			list = svc.ListPending
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "scope must be settleable or pending"))
			return
		}
		rows, err := list(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func PayoutCredentials(svc Transfers, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.PayoutCredentials(r.Context(), id)
	})
}

func PayoutSuccess(svc Transfers, decoder checkout.Decoder, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		cb, err := checkout.DecodeCallback(r, decoder)
		if err != nil {
			return nil, err
		}
		return svc.SettlePayoutSuccess(r.Context(), transfer(id, cb))
	})
}

func PayoutFailure(svc Transfers, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.SettlePayoutFailure(r.Context(), id)
	})
}

func RefundCredentials(svc Transfers, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.RefundCredentials(r.Context(), id)
	})
}

func RefundSuccess(svc Transfers, decoder checkout.Decoder, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		cb, err := checkout.DecodeCallback(r, decoder)
		if err != nil {
			return nil, err
		}
		return svc.SettleRefundSuccess(r.Context(), transfer(id, cb))
	})
}

func RefundFailure(svc Transfers, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.SettleRefundFailure(r.Context(), id)
	})
}

func transfer(id uuid.UUID, cb esewa.Callback) settlement.TransferCallback {
	return settlement.TransferCallback{ID: id, TransactionID: cb.TransactionCode, Status: cb.Status}
}

// withID parses the {id} path parameter and writes fn's result as the success payload.
func withID(logg *logger.Logger, fn func(r *http.Request, id uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "target_id", id.String())
		}
		out, err := fn(r.WithContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
