package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/pkg/enums"
)

// Listing is an item a lender has made available to borrow.
// The rto_* columns are the lender's published rent-to-own offer and are
// only meaningful when rto_enabled is true.
type Listing struct {
	ID                    uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID               uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index"`
	Title                 string              `gorm:"column:title;not null"`
	Description           *string             `gorm:"column:description"`
	Status                enums.ListingStatus `gorm:"column:status;type:listing_status;not null;default:'active'"`
	Currency              enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	DailyRateCents        int64               `gorm:"column:daily_rate_cents;not null;default:0"`
	RTOEnabled            bool                `gorm:"column:rto_enabled;not null;default:false"`
	RTOPurchasePriceCents *int64              `gorm:"column:rto_purchase_price_cents"`
	RTORentalCreditPct    *int                `gorm:"column:rto_rental_credit_pct"`
	RTOMinPayments        *int                `gorm:"column:rto_min_payments"`
	RTOMaxPayments        *int                `gorm:"column:rto_max_payments"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
