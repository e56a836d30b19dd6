package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodmart/foodmart-backend/internal/analytics/types"
	"github.com/foodmart/foodmart-backend/internal/analytics/writer"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

// rowBuilder fills the event-specific columns of a fact row.
type rowBuilder func(row *types.SettlementFactRow, payload any) error

type factHandler struct {
	writer Writer
	logg   *logger.Logger
	build  rowBuilder
}

func newFactHandler(w Writer, logg *logger.Logger, build rowBuilder) Handler {
	return &factHandler{writer: w, logg: logg, build: build}
}

func (h *factHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	row, err := baseRow(envelope, payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode fact payload", err)
		return err
	}
	if err := h.build(&row, payload); err != nil {
		h.logg.Error(logCtx, "failed to build settlement fact", err)
		return err
	}
	if err := h.writer.InsertFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert settlement fact", err)
		return err
	}
	h.logg.Info(logCtx, "settlement fact inserted")
	return nil
}

func baseRow(envelope types.Envelope, payload any) (types.SettlementFactRow, error) {
	encoded, err := writer.EncodeJSON(payload)
	if err != nil {
		return types.SettlementFactRow{}, err
	}
	return types.SettlementFactRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt.UTC(),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		Payload:       encoded,
	}, nil
}

func payoutCreatedRow(row *types.SettlementFactRow, payload any) error {
	event, ok := payload.(*payloads.VendorPayoutCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for vendor_payout_created")
	}
	row.PayoutID = idPtr(event.PayoutID)
	row.VendorID = idPtr(event.VendorID)
	row.GrossCents = centsPtr(event.TotalAmount)
	row.NetCents = centsPtr(event.NetAmount)
	row.AmountCents = centsPtr(event.TotalAmount.Sub(event.NetAmount))
	row.ItemCount = int64Ptr(int64(event.ItemCount))
	return nil
}

func refundAccumulatedRow(row *types.SettlementFactRow, payload any) error {
	event, ok := payload.(*payloads.RefundAccumulatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for refund_accumulated")
	}
	row.RefundID = idPtr(event.RefundID)
	row.OrderID = idPtr(event.OrderID)
	row.ItemID = idPtr(event.ItemID)
	row.AmountCents = centsPtr(event.ItemAmount)
	row.GrossCents = centsPtr(event.RefundAmount)
	if event.IsFullyCancelled {
		row.Status = stringPtr("fully_cancelled")
	}
	return nil
}

func lineItemStatusRow(row *types.SettlementFactRow, payload any) error {
	event, ok := payload.(*payloads.LineItemStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for line_item_status_changed")
	}
	row.ItemID = idPtr(event.ItemID)
	row.OrderID = idPtr(event.OrderID)
	row.VendorID = idPtr(event.VendorID)
	row.FromStatus = stringPtr(string(event.From))
	row.Status = stringPtr(string(event.To))
	row.AmountCents = centsPtr(event.Amount)
	return nil
}

func paymentRecordedRow(row *types.SettlementFactRow, payload any) error {
	event, ok := payload.(*payloads.PaymentRecordedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for payment_recorded")
	}
	row.PaymentID = idPtr(event.PaymentID)
	row.UserID = idPtr(event.UserID)
	row.Status = stringPtr(string(event.Status))
	row.AmountCents = centsPtr(event.Amount)
	switch enums.OutboxAggregateType(event.Target) {
	case enums.AggregateOrder:
		row.OrderID = idPtr(event.TargetID)
	case enums.AggregatePayout:
		row.PayoutID = idPtr(event.TargetID)
	case enums.AggregateRefund:
		row.RefundID = idPtr(event.TargetID)
	}
	return nil
}

func idPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	return stringPtr(id.String())
}

// centsPtr converts a rupee amount to paisa.
func centsPtr(amount decimal.Decimal) *int64 {
	return int64Ptr(amount.Shift(2).Round(0).IntPart())
}
