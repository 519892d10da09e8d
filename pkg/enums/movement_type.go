package enums

import "fmt"

// MovementType maps to the movement_type_enum in Postgres.
type MovementType string

const (
	MovementTypeDelivery MovementType = "delivery"
	MovementTypeReturn   MovementType = "return"
)

var validMovementTypes = []MovementType{
	MovementTypeDelivery,
	MovementTypeReturn,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the movement type is recognized.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts a raw string into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
