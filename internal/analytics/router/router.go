package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foodmart/foodmart-backend/internal/analytics/types"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertFact(ctx context.Context, row types.SettlementFactRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventVendorPayoutCreated: {
			factory: func() any { return &payloads.VendorPayoutCreatedEvent{} },
			handler: newFactHandler(writer, logg, payoutCreatedRow),
		},
		enums.EventRefundAccumulated: {
			factory: func() any { return &payloads.RefundAccumulatedEvent{} },
			handler: newFactHandler(writer, logg, refundAccumulatedRow),
		},
		enums.EventLineItemStatusChanged: {
			factory: func() any { return &payloads.LineItemStatusChangedEvent{} },
			handler: newFactHandler(writer, logg, lineItemStatusRow),
		},
		enums.EventPaymentRecorded: {
			factory: func() any { return &payloads.PaymentRecordedEvent{} },
			handler: newFactHandler(writer, logg, paymentRecordedRow),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Supports reports whether eventType has a handler.
func (r *Router) Supports(eventType enums.OutboxEventType) bool {
	_, ok := r.handlers[eventType]
	return ok
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
