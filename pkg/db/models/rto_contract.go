package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/pkg/enums"
)

// RTOContract is the agreement header for a rent-to-own purchase. Terms are
// snapshotted at creation so later listing edits never change a live contract.
type RTOContract struct {
	ID                 uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID          uuid.UUID              `gorm:"column:listing_id;type:uuid;not null;index"`
	TransactionID      *uuid.UUID             `gorm:"column:transaction_id;type:uuid;uniqueIndex"`
	BuyerID            uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID           uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	Status             enums.ContractStatus   `gorm:"column:status;type:contract_status;not null;default:'pending'"`
	Currency           enums.Currency         `gorm:"column:currency;not null;default:'USD'"`
	PurchasePriceCents int64                  `gorm:"column:purchase_price_cents;not null"`
	RentalCreditPct    int                    `gorm:"column:rental_credit_pct;not null"`
	NumberOfPayments   int                    `gorm:"column:number_of_payments;not null"`
	PaymentFrequency   enums.PaymentFrequency `gorm:"column:payment_frequency;type:payment_frequency;not null"`
	PaymentAmountCents int64                  `gorm:"column:payment_amount_cents;not null"`
	PaymentsMade       int                    `gorm:"column:payments_made;not null;default:0"`
	EquityCents        int64                  `gorm:"column:equity_cents;not null;default:0"`

	// EquityAccruedAtCancelCents snapshots equity at the moment of
	// cancellation so the settlement flow has a stable figure.
	EquityAccruedAtCancelCents *int64 `gorm:"column:equity_accrued_at_cancel_cents"`

	GracePeriodDays int        `gorm:"column:grace_period_days;not null"`
	StartDate       *time.Time `gorm:"column:start_date"`
	ActivatedAt     *time.Time `gorm:"column:activated_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at"`
	DefaultedAt     *time.Time `gorm:"column:defaulted_at"`
	DeclinedAt      *time.Time `gorm:"column:declined_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
