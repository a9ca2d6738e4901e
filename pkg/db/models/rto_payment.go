package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/pkg/enums"
)

// RTOPayment is one scheduled installment in a contract's ledger.
// (contract_id, payment_number) is unique so a seed can never double-write
// and a capture can never land twice on the same slot.
type RTOPayment struct {
	ID            uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID    uuid.UUID               `gorm:"column:contract_id;type:uuid;not null;uniqueIndex:idx_rto_payments_contract_number"`
	PaymentNumber int                     `gorm:"column:payment_number;not null;uniqueIndex:idx_rto_payments_contract_number"`
	Status        enums.InstallmentStatus `gorm:"column:status;type:installment_status;not null;default:'pending'"`
	AmountCents   int64                   `gorm:"column:amount_cents;not null"`
	EquityCents   int64                   `gorm:"column:equity_cents;not null"`
	RentalCents   int64                   `gorm:"column:rental_cents;not null"`
	DueDate       time.Time               `gorm:"column:due_date;not null"`
	PaidAt        *time.Time              `gorm:"column:paid_at"`
	CaptureRef    *string                 `gorm:"column:capture_ref"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
