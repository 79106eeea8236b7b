package enums

import "fmt"

// PaymentSlipStatus tracks admin review of an uploaded bank transfer slip.
type PaymentSlipStatus string

const (
	PaymentSlipStatusSubmitted PaymentSlipStatus = "submitted"
	PaymentSlipStatusApproved  PaymentSlipStatus = "approved"
	PaymentSlipStatusRejected  PaymentSlipStatus = "rejected"
)

var validPaymentSlipStatuses = []PaymentSlipStatus{
	PaymentSlipStatusSubmitted,
	PaymentSlipStatusApproved,
	PaymentSlipStatusRejected,
}

func (s PaymentSlipStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentSlipStatus.
func (s PaymentSlipStatus) IsValid() bool {
	for _, candidate := range validPaymentSlipStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentSlipStatus converts raw input into a PaymentSlipStatus.
func ParsePaymentSlipStatus(value string) (PaymentSlipStatus, error) {
	for _, candidate := range validPaymentSlipStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment slip status %q", value)
}
