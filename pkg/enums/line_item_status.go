package enums

import "fmt"

// LineItemStatus tracks one ordered food item from placement to settlement.
type LineItemStatus string

const (
	LineItemStatusNew       LineItemStatus = "new"
	LineItemStatusPending   LineItemStatus = "pending"
	LineItemStatusAccepted  LineItemStatus = "accepted"
	LineItemStatusCompleted LineItemStatus = "completed"
	LineItemStatusCancelled LineItemStatus = "cancelled"
	// LineItemStatusGatewayCancelled marks lines persisted for a checkout the gateway declined.
	LineItemStatusGatewayCancelled LineItemStatus = "cancelled_in_payment_gateway"
)

var validLineItemStatuses = []LineItemStatus{
	LineItemStatusNew,
	LineItemStatusPending,
	LineItemStatusAccepted,
	LineItemStatusCompleted,
	LineItemStatusCancelled,
	LineItemStatusGatewayCancelled,
}

// String implements fmt.Stringer.
func (l LineItemStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LineItemStatus.
func (l LineItemStatus) IsValid() bool {
	for _, candidate := range validLineItemStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (l LineItemStatus) IsTerminal() bool {
	switch l {
	case LineItemStatusCompleted, LineItemStatusCancelled, LineItemStatusGatewayCancelled:
		return true
	default:
		return false
	}
}

// IsResolved reports whether the item counts as settled for refund eligibility.
func (l LineItemStatus) IsResolved() bool {
	return l == LineItemStatusCompleted || l == LineItemStatusCancelled
}

// ResolvedLineItemStatuses lists the statuses that close an item for refund eligibility
// and for the expiry sweep.
func ResolvedLineItemStatuses() []LineItemStatus {
	return []LineItemStatus{LineItemStatusCompleted, LineItemStatusCancelled}
}

// ParseLineItemStatus converts raw input into a LineItemStatus.
func ParseLineItemStatus(value string) (LineItemStatus, error) {
	for _, candidate := range validLineItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item status %q", value)
}

// LineItemStatuses lists every status in lifecycle order.
func LineItemStatuses() []LineItemStatus {
	return append([]LineItemStatus(nil), validLineItemStatuses...)
}
