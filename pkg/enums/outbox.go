package enums

import "fmt"

// OutboxEventType names the domain events emitted through the outbox.
type OutboxEventType string

const (
	OutboxEventContractRequested          OutboxEventType = "contract_requested"
	OutboxEventContractActivated          OutboxEventType = "contract_activated"
	OutboxEventContractDeclined           OutboxEventType = "contract_declined"
	OutboxEventContractPaymentRecorded    OutboxEventType = "contract_payment_recorded"
	OutboxEventContractCompleted          OutboxEventType = "contract_completed"
	OutboxEventContractCancelled          OutboxEventType = "contract_cancelled"
	OutboxEventContractDefaulted          OutboxEventType = "contract_defaulted"
	OutboxEventOwnershipTransferRequested OutboxEventType = "ownership_transfer_requested"
	OutboxEventTransactionStateChanged    OutboxEventType = "transaction_state_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventContractRequested,
	OutboxEventContractActivated,
	OutboxEventContractDeclined,
	OutboxEventContractPaymentRecorded,
	OutboxEventContractCompleted,
	OutboxEventContractCancelled,
	OutboxEventContractDefaulted,
	OutboxEventOwnershipTransferRequested,
	OutboxEventTransactionStateChanged,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregate names the entity an outbox event is about.
type OutboxAggregate string

const (
	OutboxAggregateRTOContract       OutboxAggregate = "rto_contract"
	OutboxAggregateRentalTransaction OutboxAggregate = "rental_transaction"
	OutboxAggregateListing           OutboxAggregate = "listing"
)

var validOutboxAggregates = []OutboxAggregate{
	OutboxAggregateRTOContract,
	OutboxAggregateRentalTransaction,
	OutboxAggregateListing,
}

// String implements fmt.Stringer.
func (o OutboxAggregate) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OutboxAggregate) IsValid() bool {
	for _, candidate := range validOutboxAggregates {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxStatus is the delivery state of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// String implements fmt.Stringer.
func (o OutboxStatus) String() string {
	return string(o)
}
