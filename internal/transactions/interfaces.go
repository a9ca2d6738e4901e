package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
)

// Repository defines persistence operations for rental transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.RentalTransaction) (*models.RentalTransaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error)
	FindByContractID(ctx context.Context, contractID uuid.UUID) (*models.RentalTransaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RentalTransaction, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}
