package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/internal/ledger"
	"github.com/lendaround/lendaround-backend/internal/rto"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/outbox"
	"github.com/lendaround/lendaround-backend/pkg/square"
)

// Repository defines persistence operations for rent-to-own contracts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.RTOContract) (*models.RTOContract, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.RTOContract, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RTOContract, error)
	HasActiveContractForListing(ctx context.Context, listingID uuid.UUID) (bool, error)
	FindActiveWithPaymentDueBefore(ctx context.Context, cutoff time.Time) ([]models.RTOContract, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PaymentCapturer charges the buyer's payment source before a payment is
// recorded. Implemented by the Square client.
type PaymentCapturer interface {
	CapturePayment(ctx context.Context, params square.CapturePaymentParams) (*square.Capture, error)
}

// LedgerService is the slice of the payment ledger the orchestrator drives.
type LedgerService interface {
	Seed(ctx context.Context, tx *gorm.DB, contract *models.RTOContract, installments []rto.Installment) ([]models.RTOPayment, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, paymentNumber int, paidAt time.Time, captureRef string) (*models.RTOPayment, error)
	NextDue(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error)
	Payments(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error)
	Progress(ctx context.Context, contractID uuid.UUID, purchasePriceCents int64) (*ledger.Progress, error)
}

// TransactionBinder keeps the bound rental transaction in lockstep with the
// contract lifecycle.
type TransactionBinder interface {
	OnContractActivated(ctx context.Context, tx *gorm.DB, contract *models.RTOContract) (uuid.UUID, error)
	OnContractCompleted(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error
	OnContractCancelled(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error
}

// ListingReader resolves the listing a contract is requested against.
type ListingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// OwnershipTransferrer hands the listing to the buyer at completion.
type OwnershipTransferrer interface {
	TransferOwnership(ctx context.Context, tx *gorm.DB, listingID, newOwnerID uuid.UUID) error
}
