package enums

import "fmt"

// DeliveryStatus is the tri-state outcome of a post-commit notification.
type DeliveryStatus string

const (
	DeliveryStatusSent         DeliveryStatus = "sent"
	DeliveryStatusFailed       DeliveryStatus = "failed"
	DeliveryStatusNotAttempted DeliveryStatus = "not_attempted"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusSent,
	DeliveryStatusFailed,
	DeliveryStatusNotAttempted,
}

// IsValid checks whether the given status matches the canonical enum.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts raw strings into DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

// NotificationEvent names the ledger facts announced to downstream consumers.
type NotificationEvent string

const (
	NotificationEventEquipmentDelivered NotificationEvent = "equipment_delivered"
	NotificationEventEquipmentReturned  NotificationEvent = "equipment_returned"
	NotificationEventRentalCreated      NotificationEvent = "rental_contract_created"
)
