package enums

import "fmt"

// TransactionKind distinguishes how a borrow is paid for.
type TransactionKind string

const (
	TransactionKindFree      TransactionKind = "free"
	TransactionKindPaid      TransactionKind = "paid"
	TransactionKindRentToOwn TransactionKind = "rent_to_own"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindFree,
	TransactionKindPaid,
	TransactionKindRentToOwn,
}

// String implements fmt.Stringer.
func (t TransactionKind) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
