package orders

import (
	"strings"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
)

// Transition is one allowed line item status change.
type Transition struct {
	From enums.LineItemStatus
	To   enums.LineItemStatus
}

var validTransitions = []Transition{
	{From: enums.LineItemStatusNew, To: enums.LineItemStatusPending},
	{From: enums.LineItemStatusNew, To: enums.LineItemStatusAccepted},
	{From: enums.LineItemStatusNew, To: enums.LineItemStatusCompleted},
	{From: enums.LineItemStatusPending, To: enums.LineItemStatusAccepted},
	{From: enums.LineItemStatusPending, To: enums.LineItemStatusCompleted},
	{From: enums.LineItemStatusAccepted, To: enums.LineItemStatusCompleted},

	{From: enums.LineItemStatusNew, To: enums.LineItemStatusCancelled},
	{From: enums.LineItemStatusPending, To: enums.LineItemStatusCancelled},
	{From: enums.LineItemStatusAccepted, To: enums.LineItemStatusCancelled},
	{From: enums.LineItemStatusNew, To: enums.LineItemStatusGatewayCancelled},
	{From: enums.LineItemStatusPending, To: enums.LineItemStatusGatewayCancelled},
	{From: enums.LineItemStatusAccepted, To: enums.LineItemStatusGatewayCancelled},
}

var transitionSet = func() map[Transition]bool {
	m := make(map[Transition]bool, len(validTransitions))
	for _, t := range validTransitions {
		m[t] = true
	}
	return m
}()

// ValidTransitionsFrom lists the statuses reachable from status.
func ValidTransitionsFrom(status enums.LineItemStatus) []enums.LineItemStatus {
	var next []enums.LineItemStatus
	for _, t := range validTransitions {
		if t.From == status {
			next = append(next, t.To)
		}
	}
	return next
}

// CanTransition returns a state conflict error when from→to is not in the table.
func CanTransition(from, to enums.LineItemStatus) error {
	if transitionSet[Transition{From: from, To: to}] {
		return nil
	}
	allowed := ValidTransitionsFrom(from)
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "line item cannot move from %s to %s", from, to).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": describe(allowed),
		})
}

func describe(statuses []enums.LineItemStatus) string {
	if len(statuses) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// roleMayRequest reports whether role may ask for target at all. Customers may only
// cancel their own items; the gateway-cancelled state is reserved for checkout settlement.
func roleMayRequest(role enums.UserRole, target enums.LineItemStatus) bool {
	switch role {
	case enums.UserRoleCustomer:
		return target == enums.LineItemStatusCancelled
	case enums.UserRoleVendor:
		return target != enums.LineItemStatusGatewayCancelled
	case enums.UserRoleAdmin, enums.UserRoleSystem:
		return true
	default:
		return false
	}
}
