package enums

import "fmt"

// ContractStatus maps to the contract_status_enum in Postgres.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "Active"
	ContractStatusCancelled ContractStatus = "Cancelled"
)

var validContractStatuses = []ContractStatus{
	ContractStatusActive,
	ContractStatusCancelled,
}

// IsValid reports whether the contract status is recognized.
func (c ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContractStatus converts a raw string into a ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}
