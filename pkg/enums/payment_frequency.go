package enums

import "fmt"

// PaymentFrequency maps to the payment_frequency_enum in Postgres.
type PaymentFrequency string

const (
	PaymentFrequencyOneTime   PaymentFrequency = "one_time"
	PaymentFrequencyWeekly    PaymentFrequency = "weekly"
	PaymentFrequencyMonthly   PaymentFrequency = "monthly"
	PaymentFrequencyQuarterly PaymentFrequency = "quarterly"
	PaymentFrequencyYearly    PaymentFrequency = "yearly"
)

var validPaymentFrequencies = []PaymentFrequency{
	PaymentFrequencyOneTime,
	PaymentFrequencyWeekly,
	PaymentFrequencyMonthly,
	PaymentFrequencyQuarterly,
	PaymentFrequencyYearly,
}

// IsValid reports whether the payment frequency is recognized.
func (p PaymentFrequency) IsValid() bool {
	for _, candidate := range validPaymentFrequencies {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentFrequency converts a raw string into a PaymentFrequency.
func ParsePaymentFrequency(value string) (PaymentFrequency, error) {
	for _, candidate := range validPaymentFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment frequency %q", value)
}
