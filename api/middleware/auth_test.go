package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/pkg/auth"
	"github.com/foodmart/foodmart-backend/pkg/config"
	"github.com/foodmart/foodmart-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsVendorIdentity(t *testing.T) {
	userID := uuid.New()
	vendorID := uuid.New()
	token := mintTestToken(t, userID, enums.UserRoleVendor, &vendorID)

	var captured Identity
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.UserID != userID || captured.Role != enums.UserRoleVendor {
		t.Fatalf("unexpected identity %+v", captured)
	}
	if captured.VendorID == nil || *captured.VendorID != vendorID {
		t.Fatalf("expected vendor id %s got %v", vendorID, captured.VendorID)
	}
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.UserRoleCustomer, nil)

	var role enums.UserRole
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/orders/x?token="+token, nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role got %q", role)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleVendor, enums.UserRoleCustomer)(okHandler())

	cases := []struct {
		role enums.UserRole
		want int
	}{
		{enums.UserRoleVendor, http.StatusOK},
		{enums.UserRoleCustomer, http.StatusOK},
		{enums.UserRoleAdmin, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New(), Role: tc.role}))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("role %q: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}

func TestInternalToken(t *testing.T) {
	var role enums.UserRole
	handler := InternalToken("s3cret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(internalTokenHeader, "wrong")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(internalTokenHeader, "s3cret")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || role != enums.UserRoleSystem {
		t.Fatalf("expected system caller, got status %d role %q", resp.Code, role)
	}

	closed := InternalToken("", nil)(okHandler())
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(internalTokenHeader, "anything")
	resp = httptest.NewRecorder()
	closed.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected empty secret to reject, got %d", resp.Code)
	}
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.UserRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID:   userID,
		Role:     role,
		VendorID: vendorID,
		JTI:      uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
