package enums

import "fmt"

// PaymentStatus is the provider-reported state of a settlement payment.
type PaymentStatus string

const (
	PaymentStatusComplete PaymentStatus = "complete"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusPending  PaymentStatus = "pending"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusComplete,
	PaymentStatusCanceled,
	PaymentStatusPending,
}

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
