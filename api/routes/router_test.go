package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmart/foodmart-backend/internal/orders"
	"github.com/foodmart/foodmart-backend/internal/settlement"
	"github.com/foodmart/foodmart-backend/internal/vendors"
	pkgAuth "github.com/foodmart/foodmart-backend/pkg/auth"
	"github.com/foodmart/foodmart-backend/pkg/config"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type memoryIdempotency struct{ data map[string]string }

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string { return scope + ":" + id }

type stubOrders struct {
	placed    int
	setInputs []orders.SetStatusInput
	setErr    error
}

func (s *stubOrders) PlaceOrder(_ context.Context, in orders.PlaceOrderInput) (*models.Order, error) {
	s.placed++
	return &models.Order{UserID: in.UserID, Email: in.Email, OrderNumber: "20260101-0001"}, nil
}

func (s *stubOrders) SetStatus(_ context.Context, in orders.SetStatusInput) (orders.TransitionResult, error) {
	s.setInputs = append(s.setInputs, in)
	if s.setErr != nil {
		return orders.TransitionResult{}, s.setErr
	}
	return orders.TransitionResult{From: enums.LineItemStatusPending, To: enums.LineItemStatus(in.Status), Changed: true}, nil
}

func (s *stubOrders) Earnings(context.Context, uuid.UUID) (*orders.EarningsReport, error) {
	return &orders.EarningsReport{Total: decimal.NewFromInt(250), CurrentDate: "2026-01-01"}, nil
}

func (s *stubOrders) Item(_ context.Context, id uuid.UUID) (*models.OrderedFood, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
}

type stubVendors struct{}

func (stubVendors) VendorStatus(context.Context, uuid.UUID) (*vendors.Status, error) {
	return &vendors.Status{Open: []string{"Momo House"}, AllOpen: true}, nil
}

type recordingPublisher struct{ published []enums.LineItemStatus }

func (p *recordingPublisher) PublishStatus(_ context.Context, _ uuid.UUID, status enums.LineItemStatus) error {
	p.published = append(p.published, status)
	return nil
}

type noStream struct{}

func (noStream) Serve(w http.ResponseWriter, _ *http.Request, _ uuid.UUID) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type stubSettlement struct {
	checkout []settlement.CheckoutCallback
}

func (s *stubSettlement) CheckoutCredentials(context.Context, uuid.UUID, string) (esewa.Credentials, error) {
	return esewa.Credentials{TransactionUUID: "tx-uuid", Signature: "sig"}, nil
}

func (s *stubSettlement) SettleCheckoutSuccess(_ context.Context, cb settlement.CheckoutCallback) (*settlement.CheckoutResult, error) {
	s.checkout = append(s.checkout, cb)
	return &settlement.CheckoutResult{}, nil
}

func (s *stubSettlement) SettleCheckoutFailure(context.Context, settlement.CheckoutFailure) (*settlement.CheckoutResult, error) {
	return &settlement.CheckoutResult{}, nil
}

func (s *stubSettlement) PayoutCredentials(context.Context, uuid.UUID) (esewa.Credentials, error) {
	return esewa.Credentials{}, nil
}

func (s *stubSettlement) SettlePayoutSuccess(_ context.Context, cb settlement.TransferCallback) (*settlement.PayoutResult, error) {
	return &settlement.PayoutResult{Payout: &models.VendorPayout{ID: cb.ID}}, nil
}

func (s *stubSettlement) SettlePayoutFailure(_ context.Context, id uuid.UUID) (*settlement.PayoutResult, error) {
	return &settlement.PayoutResult{Payout: &models.VendorPayout{ID: id}}, nil
}

func (s *stubSettlement) RefundCredentials(context.Context, uuid.UUID) (esewa.Credentials, error) {
	return esewa.Credentials{}, nil
}

func (s *stubSettlement) SettleRefundSuccess(context.Context, settlement.TransferCallback) (*settlement.RefundResult, error) {
	return &settlement.RefundResult{}, nil
}

func (s *stubSettlement) SettleRefundFailure(context.Context, uuid.UUID) (*settlement.RefundResult, error) {
	return &settlement.RefundResult{}, nil
}

type stubDecoder struct{}

func (stubDecoder) Decode(data string) (esewa.Callback, error) {
	if data == "forged" {
		return esewa.Callback{}, esewa.ErrBadSignature
	}
	return esewa.Callback{TransactionCode: "000AWEO", Status: esewa.StatusComplete}, nil
}

type stubLists struct{}

func (stubLists) ListOutstanding(context.Context) ([]models.VendorPayout, error) {
	return []models.VendorPayout{{}}, nil
}

func (stubLists) ListSettleable(context.Context) ([]models.CustomerRefund, error) {
	return nil, nil
}

func (stubLists) ListPending(context.Context) ([]models.CustomerRefund, error) {
	return []models.CustomerRefund{{}, {}}, nil
}

type stubJobs struct{ ran []string }

func (j *stubJobs) RunNow(_ context.Context, name string) error {
	if name != "expiry-sweep" {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown job %q", name)
	}
	j.ran = append(j.ran, name)
	return nil
}

func (j *stubJobs) Jobs() []string { return []string{"expiry-sweep"} }

type harness struct {
	router     http.Handler
	cfg        *config.Config
	orders     *stubOrders
	publisher  *recordingPublisher
	settlement *stubSettlement
	jobs       *stubJobs
}

func newHarness(t *testing.T, mutate func(*Deps)) harness {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "foodmart", ExpirationMinutes: 60},
		Service: config.ServiceConfig{InternalToken: "internal"},
	}
	h := harness{
		cfg:        cfg,
		orders:     &stubOrders{},
		publisher:  &recordingPublisher{},
		settlement: &stubSettlement{},
		jobs:       &stubJobs{},
	}
	deps := Deps{
		Config:      cfg,
		Logger:      logger.Nop(),
		DB:          stubPinger{},
		Redis:       stubPinger{},
		Idempotency: &memoryIdempotency{data: map[string]string{}},
		Orders:      h.orders,
		Items:       h.orders,
		Vendors:     stubVendors{},
		Publisher:   h.publisher,
		Stream:      noStream{},
		Checkout:    h.settlement,
		Transfers:   h.settlement,
		Decoder:     stubDecoder{},
		Payouts:     stubLists{},
		Refunds:     stubLists{},
		Jobs:        h.jobs,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.router = NewRouter(deps)
	return h
}

func (h harness) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	payload := pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role}
	if role == enums.UserRoleVendor {
		vendorID := uuid.New()
		payload.VendorID = &vendorID
	}
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), payload)
	require.NoError(t, err)
	return token
}

func (h harness) do(t *testing.T, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/ready", "", "", nil).Code)

	down := newHarness(t, func(d *Deps) { d.Redis = stubPinger{err: errors.New("connection refused")} })
	rec := down.do(t, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestCustomerRoutesRequireRole(t *testing.T) {
	h := newHarness(t, nil)
	body := `{"email":"asha@example.com","first_name":"Asha"}`
	headers := map[string]string{"Idempotency-Key": "k1"}

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/orders", "", body, headers).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/v1/orders", h.token(t, enums.UserRoleVendor), body, headers).Code)

	customer := h.token(t, enums.UserRoleCustomer)
	assert.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/orders", customer, body, headers).Code)
	assert.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/orders", customer, body, headers).Code)
	assert.Equal(t, 1, h.orders.placed, "replayed idempotency key must not place twice")

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/orders", customer, body, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/cart/vendor-status", customer, "", nil).Code)
}

func TestSetStatusRoutes(t *testing.T) {
	h := newHarness(t, nil)
	itemID := uuid.New()
	path := fmt.Sprintf("/api/v1/order-items/%s/status", itemID)

	rec := h.do(t, http.MethodPost, path, h.token(t, enums.UserRoleVendor), `{"status":"accepted"}`, map[string]string{"Idempotency-Key": "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.orders.setInputs, 1)
	assert.Equal(t, enums.UserRoleVendor, h.orders.setInputs[0].Actor.Role)
	assert.NotNil(t, h.orders.setInputs[0].Actor.VendorID)
	assert.Equal(t, []enums.LineItemStatus{enums.LineItemStatusAccepted}, h.publisher.published)

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, path, h.token(t, enums.UserRoleAdmin), `{"status":"accepted"}`, map[string]string{"Idempotency-Key": "s2"}).Code)

	internal := fmt.Sprintf("/internal/order-items/%s/status", itemID)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, internal, "", `{"status":"completed"}`, nil).Code)
	rec = h.do(t, http.MethodPost, internal, "", `{"status":"completed"}`, map[string]string{"X-Internal-Token": "internal"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.UserRoleSystem, h.orders.setInputs[len(h.orders.setInputs)-1].Actor.Role)
}

func TestSetStatusSurfacesStateConflict(t *testing.T) {
	h := newHarness(t, nil)
	h.orders.setErr = pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move completed to pending")

	rec := h.do(t, http.MethodPost, fmt.Sprintf("/internal/order-items/%s/status", uuid.New()), "", `{"status":"pending"}`, map[string]string{"X-Internal-Token": "internal"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
	assert.Empty(t, h.publisher.published)
}

func TestCheckoutSuccessRoute(t *testing.T) {
	h := newHarness(t, nil)
	customer := h.token(t, enums.UserRoleCustomer)

	rec := h.do(t, http.MethodGet, "/api/v1/checkout/esewa/success?data=abc&order_number=20260101-0001", customer, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.settlement.checkout, 1)
	assert.Equal(t, "000AWEO", h.settlement.checkout[0].TransactionID)
	assert.Equal(t, "20260101-0001", h.settlement.checkout[0].OrderNumber)

	rec = h.do(t, http.MethodGet, "/api/v1/checkout/esewa/success?data=forged&order_number=20260101-0001", customer, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/checkout/esewa/success?data=abc", customer, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noGateway := newHarness(t, func(d *Deps) { d.Decoder = nil })
	rec = noGateway.do(t, http.MethodGet, "/api/v1/checkout/esewa/success?data=abc&order_number=1", noGateway.token(t, enums.UserRoleCustomer), "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.token(t, enums.UserRoleAdmin)

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/admin/payouts", h.token(t, enums.UserRoleCustomer), "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/admin/payouts", admin, "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/admin/refunds", admin, "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/admin/refunds?scope=pending", admin, "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/admin/refunds?scope=all", admin, "", nil).Code)

	payoutID := uuid.New()
	rec := h.do(t, http.MethodGet, fmt.Sprintf("/api/admin/payouts/%s/esewa/success?data=abc", payoutID), admin, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/admin/payouts/not-a-uuid/esewa/failure", admin, "", map[string]string{"Idempotency-Key": "f1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/admin/jobs/expiry-sweep/run", admin, "", map[string]string{"Idempotency-Key": "j1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"expiry-sweep"}, h.jobs.ran)

	rec = h.do(t, http.MethodPost, "/api/admin/jobs/unknown/run", admin, "", map[string]string{"Idempotency-Key": "j2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderStreamChecksItem(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, fmt.Sprintf("/ws/orders/%s", uuid.New()), h.token(t, enums.UserRoleCustomer), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, fmt.Sprintf("/ws/orders/%s", uuid.New()), "", "", nil).Code)
}
