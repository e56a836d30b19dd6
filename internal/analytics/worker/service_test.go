package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmart/foodmart-backend/internal/analytics/types"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
)

func TestBuildEnvelope(t *testing.T) {
	svc := newTestService(t)
	payload := outbox.PayloadEnvelope{
		EventID:    "evt-1",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(`{"payout_id":"p-1"}`),
	}
	msg := buildMessage(payload, map[string]string{
		"event_type":     "vendor_payout_created",
		"aggregate_type": "vendor_payout",
		"aggregate_id":   "p-1",
	})

	env, err := svc.buildEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, enums.EventVendorPayoutCreated, env.EventType)
	assert.Equal(t, enums.AggregatePayout, env.AggregateType)
	assert.Equal(t, "p-1", env.AggregateID)
	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, payload.OccurredAt, env.OccurredAt)
}

func TestBuildEnvelopeFallsBackToAttributes(t *testing.T) {
	svc := newTestService(t)
	msg := buildMessage(outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, map[string]string{
		"event_id":       "evt-attr",
		"event_type":     "payment_recorded",
		"aggregate_type": "payment",
		"aggregate_id":   "pay-1",
		"created_at":     "2026-03-02T08:00:00Z",
	})

	env, err := svc.buildEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, "evt-attr", env.EventID)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), env.OccurredAt)
}

func TestBuildEnvelopeRejectsUnknownTypes(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.buildEnvelope(buildMessage(outbox.PayloadEnvelope{EventID: "e"}, map[string]string{
		"event_type":     "license_created",
		"aggregate_type": "payment",
		"aggregate_id":   "x",
	}))
	assert.ErrorContains(t, err, "event_type")

	_, err = svc.buildEnvelope(buildMessage(outbox.PayloadEnvelope{EventID: "e"}, map[string]string{
		"event_type":     "payment_recorded",
		"aggregate_type": "store",
		"aggregate_id":   "x",
	}))
	assert.ErrorContains(t, err, "aggregate_type")
}

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{checkResult: true}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildFactMessage(t, "payment_recorded"))
	assert.False(t, res.nack)
	assert.False(t, handler.called)
	assert.Len(t, manager.checked, 1)
}

func TestProcessHandlerErrorRetries(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("boom")}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildFactMessage(t, "payment_recorded"))
	assert.True(t, res.nack)
	assert.True(t, handler.called)
	assert.Len(t, manager.deleted, 1)
}

func TestProcessInvalidEnvelope(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), &gcppubsub.Message{Data: []byte("invalid json")})
	assert.False(t, res.nack)
	assert.False(t, handler.called)
	assert.Empty(t, manager.checked)
}

func TestProcessSkipsUnsupportedEvent(t *testing.T) {
	manager := &stubManager{}
	handler := &filteringHandler{supported: enums.EventPaymentRecorded}
	svc := newTestServiceWithDeps(t, handler, manager)

	res := svc.process(context.Background(), buildFactMessage(t, "checkout_failed"))
	assert.False(t, res.nack)
	assert.False(t, handler.called)
	assert.Empty(t, manager.checked)

	res = svc.process(context.Background(), buildFactMessage(t, "payment_recorded"))
	assert.False(t, res.nack)
	assert.True(t, handler.called)
}

func TestNewServiceValidation(t *testing.T) {
	logg := logger.Nop()
	_, err := NewService(nil, &stubHandler{}, &stubManager{}, logg)
	assert.Error(t, err)
	_, err = NewService(stubReceiver{}, nil, &stubManager{}, logg)
	assert.Error(t, err)
	_, err = NewService(stubReceiver{}, &stubHandler{}, nil, logg)
	assert.Error(t, err)
	_, err = NewService(stubReceiver{}, &stubHandler{}, &stubManager{}, nil)
	assert.Error(t, err)
}

func buildFactMessage(t *testing.T, eventType string) *gcppubsub.Message {
	t.Helper()
	payload := outbox.PayloadEnvelope{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"payment_id":"` + uuid.NewString() + `"}`),
	}
	return buildMessage(payload, map[string]string{
		"event_type":     eventType,
		"aggregate_type": "payment",
		"aggregate_id":   "abc-123",
	})
}

func buildMessage(payload outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	data, _ := json.Marshal(payload)
	return &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: attrs,
	}
}

func newTestService(t *testing.T) *Service {
	return newTestServiceWithDeps(t, &stubHandler{}, &stubManager{})
}

func newTestServiceWithDeps(t *testing.T, handler Handler, manager *stubManager) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.Nop(),
	}
}

type stubReceiver struct{}

func (stubReceiver) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type filteringHandler struct {
	stubHandler
	supported enums.OutboxEventType
}

func (h *filteringHandler) Supports(eventType enums.OutboxEventType) bool {
	return eventType == h.supported
}

type stubManager struct {
	checkResult bool
	checkErr    error
	deleteErr   error
	checked     []uuid.UUID
	deleted     []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	return s.deleteErr
}
