package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/pkg/enums"
)

// RentalTransaction tracks custody of an item between lender and borrower.
// A rent_to_own transaction is driven by its contract: the contract service
// moves it through the custody states as the contract progresses.
type RentalTransaction struct {
	ID            uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID     uuid.UUID               `gorm:"column:listing_id;type:uuid;not null;index"`
	LenderID      uuid.UUID               `gorm:"column:lender_id;type:uuid;not null;index"`
	BorrowerID    uuid.UUID               `gorm:"column:borrower_id;type:uuid;not null;index"`
	Kind          enums.TransactionKind   `gorm:"column:kind;type:transaction_kind;not null;default:'free'"`
	Status        enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	RTOContractID *uuid.UUID              `gorm:"column:rto_contract_id;type:uuid;index"`
	ApprovedAt    *time.Time              `gorm:"column:approved_at"`
	PaidAt        *time.Time              `gorm:"column:paid_at"`
	PickedUpAt    *time.Time              `gorm:"column:picked_up_at"`
	ReturnedAt    *time.Time              `gorm:"column:returned_at"`
	CompletedAt   *time.Time              `gorm:"column:completed_at"`
	CancelledAt   *time.Time              `gorm:"column:cancelled_at"`
	DisputedAt    *time.Time              `gorm:"column:disputed_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
