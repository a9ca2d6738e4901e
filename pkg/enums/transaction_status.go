package enums

import "fmt"

// TransactionStatus tracks the borrow/lend custody lifecycle.
type TransactionStatus string

const (
	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusApproved      TransactionStatus = "approved"
	TransactionStatusPaid          TransactionStatus = "paid"
	TransactionStatusPickedUp      TransactionStatus = "picked_up"
	TransactionStatusReturnPending TransactionStatus = "return_pending"
	TransactionStatusReturned      TransactionStatus = "returned"
	TransactionStatusCompleted     TransactionStatus = "completed"
	TransactionStatusCancelled     TransactionStatus = "cancelled"
	TransactionStatusDisputed      TransactionStatus = "disputed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusApproved,
	TransactionStatusPaid,
	TransactionStatusPickedUp,
	TransactionStatusReturnPending,
	TransactionStatusReturned,
	TransactionStatusCompleted,
	TransactionStatusCancelled,
	TransactionStatusDisputed,
}

// transactionTransitions is the single source of truth for legal edges.
// Leaving disputed is owned by an external dispute-resolution flow.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:       {TransactionStatusApproved, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusApproved:      {TransactionStatusPaid, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusPaid:          {TransactionStatusPickedUp, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusPickedUp:      {TransactionStatusReturnPending, TransactionStatusReturned, TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusReturnPending: {TransactionStatusReturned},
	TransactionStatusReturned:      {TransactionStatusCompleted},
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the edge t -> target is legal.
func (t TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	for _, candidate := range transactionTransitions[t] {
		if candidate == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges.
func (t TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[t]) == 0
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
