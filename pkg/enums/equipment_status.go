package enums

import "fmt"

// EquipmentStatus maps to the equipment_status_enum in Postgres.
type EquipmentStatus string

const (
	EquipmentStatusOperational EquipmentStatus = "operational"
	EquipmentStatusMaintenance EquipmentStatus = "maintenance"
	EquipmentStatusDamaged     EquipmentStatus = "damaged"
	EquipmentStatusBroken      EquipmentStatus = "broken"
)

var validEquipmentStatuses = []EquipmentStatus{
	EquipmentStatusOperational,
	EquipmentStatusMaintenance,
	EquipmentStatusDamaged,
	EquipmentStatusBroken,
}

// String implements fmt.Stringer.
func (s EquipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s EquipmentStatus) IsValid() bool {
	for _, candidate := range validEquipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEquipmentStatus converts a raw string into an EquipmentStatus.
func ParseEquipmentStatus(value string) (EquipmentStatus, error) {
	for _, candidate := range validEquipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid equipment status %q", value)
}
