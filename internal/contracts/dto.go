package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/internal/ledger"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
)

// CreateInput is a borrower's request to buy a listing on installments.
type CreateInput struct {
	ListingID        uuid.UUID
	BorrowerID       uuid.UUID
	TotalPayments    int
	PaymentFrequency enums.PaymentFrequency
	FirstPaymentDate time.Time
}

// ActionInput identifies who is driving a contract transition.
type ActionInput struct {
	ContractID uuid.UUID
	ActorID    uuid.UUID
}

// DeclineInput carries the lender's optional reason.
type DeclineInput struct {
	ContractID uuid.UUID
	ActorID    uuid.UUID
	Reason     *string
}

// PayInput carries the buyer's payment source for one installment capture.
type PayInput struct {
	ContractID      uuid.UUID
	ActorID         uuid.UUID
	PaymentSourceID string
}

// CancelInput carries the mandatory cancellation reason.
type CancelInput struct {
	ContractID uuid.UUID
	ActorID    uuid.UUID
	Reason     string
}

// View is the consistent snapshot every mutating operation returns.
type View struct {
	Contract *models.RTOContract `json:"contract"`
	Payments []models.RTOPayment `json:"payments"`
	Progress *ledger.Progress    `json:"progress"`
}

// ContractEvent is the common payload for contract lifecycle events.
type ContractEvent struct {
	ContractID uuid.UUID            `json:"contract_id"`
	ListingID  uuid.UUID            `json:"listing_id"`
	BuyerID    uuid.UUID            `json:"buyer_id"`
	SellerID   uuid.UUID            `json:"seller_id"`
	Status     enums.ContractStatus `json:"status"`
	Reason     *string              `json:"reason,omitempty"`
}

// PaymentRecordedEvent is emitted after each successful installment capture.
type PaymentRecordedEvent struct {
	ContractID    uuid.UUID `json:"contract_id"`
	PaymentNumber int       `json:"payment_number"`
	AmountCents   int64     `json:"amount_cents"`
	EquityCents   int64     `json:"equity_cents"`
	CaptureRef    string    `json:"capture_ref,omitempty"`
	PaymentsMade  int       `json:"payments_made"`
	TotalPayments int       `json:"total_payments"`
}

// CancelledEvent snapshots accrued equity for the downstream settlement flow.
type CancelledEvent struct {
	ContractID                 uuid.UUID `json:"contract_id"`
	ListingID                  uuid.UUID `json:"listing_id"`
	BuyerID                    uuid.UUID `json:"buyer_id"`
	SellerID                   uuid.UUID `json:"seller_id"`
	Reason                     string    `json:"reason"`
	EquityAccruedAtCancelCents int64     `json:"equity_accrued_at_cancel_cents"`
}

// OwnershipTransferEvent signals the buyer now owns the item.
type OwnershipTransferEvent struct {
	ContractID uuid.UUID `json:"contract_id"`
	ListingID  uuid.UUID `json:"listing_id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
}
