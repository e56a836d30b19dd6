package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateOrderedFood  OutboxAggregateType = "ordered_food"
	AggregateRefund       OutboxAggregateType = "customer_refund"
	AggregatePayout       OutboxAggregateType = "vendor_payout"
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOrderedFood,
	AggregateRefund,
	AggregatePayout,
	AggregatePayment,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderPlaced           OutboxEventType = "order_placed"
	EventCheckoutSettled       OutboxEventType = "checkout_settled"
	EventCheckoutFailed        OutboxEventType = "checkout_failed"
	EventLineItemStatusChanged OutboxEventType = "line_item_status_changed"
	EventRefundAccumulated     OutboxEventType = "refund_accumulated"
	EventRefundSettled         OutboxEventType = "refund_settled"
	EventVendorPayoutCreated   OutboxEventType = "vendor_payout_created"
	EventVendorPayoutSettled   OutboxEventType = "vendor_payout_settled"
	EventPaymentRecorded       OutboxEventType = "payment_recorded"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventCheckoutSettled,
	EventCheckoutFailed,
	EventLineItemStatusChanged,
	EventRefundAccumulated,
	EventRefundSettled,
	EventVendorPayoutCreated,
	EventVendorPayoutSettled,
	EventPaymentRecorded,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
