package enums

import "fmt"

// PaymentFrequency is the cadence of scheduled contract payments.
type PaymentFrequency string

const (
	PaymentFrequencyWeekly   PaymentFrequency = "weekly"
	PaymentFrequencyBiweekly PaymentFrequency = "biweekly"
	PaymentFrequencyMonthly  PaymentFrequency = "monthly"
)

var validPaymentFrequencies = []PaymentFrequency{
	PaymentFrequencyWeekly,
	PaymentFrequencyBiweekly,
	PaymentFrequencyMonthly,
}

// String implements fmt.Stringer.
func (p PaymentFrequency) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentFrequency.
func (p PaymentFrequency) IsValid() bool {
	for _, candidate := range validPaymentFrequencies {
		if candidate == p {
			return true
		}
	}
	return false
}

// Days returns the fixed gap in days, or 0 for calendar-month advancement.
func (p PaymentFrequency) Days() int {
	switch p {
	case PaymentFrequencyWeekly:
		return 7
	case PaymentFrequencyBiweekly:
		return 14
	}
	return 0
}

// ParsePaymentFrequency converts raw input into a PaymentFrequency.
func ParsePaymentFrequency(value string) (PaymentFrequency, error) {
	for _, candidate := range validPaymentFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment frequency %q", value)
}
