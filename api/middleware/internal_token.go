package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/foodmart/foodmart-backend/api/responses"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

const internalTokenHeader = "X-Internal-Token"

// InternalToken guards server-to-server routes with a shared secret. Accepted callers act
// as the system role. An empty secret closes the routes.
func InternalToken(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get(internalTokenHeader))
			if secret == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "internal token required"))
				return
			}
			ctx := WithIdentity(r.Context(), Identity{Role: enums.UserRoleSystem})
			if logg != nil {
				ctx = logg.WithActorRole(ctx, enums.UserRoleSystem.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
