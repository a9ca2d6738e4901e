package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
)

// Repository defines persistence operations for the per-contract payment ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, payments []models.RTOPayment) error
	CountByContract(ctx context.Context, contractID uuid.UUID) (int64, error)
	FindByContract(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error)
	FindByContractAndNumber(ctx context.Context, contractID uuid.UUID, paymentNumber int) (*models.RTOPayment, error)
	FindNextPending(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error)
	CountPendingBefore(ctx context.Context, contractID uuid.UUID, paymentNumber int) (int64, error)
	MarkCompleted(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
}
