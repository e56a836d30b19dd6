package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/api/middleware"
	"github.com/foodmart/foodmart-backend/api/responses"
	"github.com/foodmart/foodmart-backend/api/validators"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// ItemReader loads one line item.
type ItemReader interface {
	Item(ctx context.Context, itemID uuid.UUID) (*models.OrderedFood, error)
}

// StatusStreamer relays status frames over an upgraded connection.
type StatusStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, itemID uuid.UUID)
}

// OrderStream subscribes the caller to the status channel of an item they can see.
func OrderStream(items ItemReader, stream StatusStreamer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.PathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := items.Item(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, _ := middleware.IdentityFromContext(r.Context())
		if !canWatch(id, item) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "line item not visible"))
			return
		}
		stream.Serve(w, r, itemID)
	}
}

func canWatch(id middleware.Identity, item *models.OrderedFood) bool {
	switch id.Role {
	case enums.UserRoleAdmin:
		return true
	case enums.UserRoleCustomer:
		return id.UserID == item.UserID
	case enums.UserRoleVendor:
		return id.VendorID != nil && *id.VendorID == item.VendorID
	}
	return false
}
