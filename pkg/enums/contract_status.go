package enums

import "fmt"

// ContractStatus tracks the lifecycle of a rent-to-own contract.
type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusDefaulted ContractStatus = "defaulted"
	ContractStatusCancelled ContractStatus = "cancelled"
)

var validContractStatuses = []ContractStatus{
	ContractStatusPending,
	ContractStatusActive,
	ContractStatusCompleted,
	ContractStatusDefaulted,
	ContractStatusCancelled,
}

// String implements fmt.Stringer.
func (c ContractStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ContractStatus.
func (c ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (c ContractStatus) IsTerminal() bool {
	switch c {
	case ContractStatusCompleted, ContractStatusDefaulted, ContractStatusCancelled:
		return true
	}
	return false
}

// ParseContractStatus converts raw input into a ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}
