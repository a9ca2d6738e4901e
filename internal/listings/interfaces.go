package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
)

// Repository defines persistence operations for listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// ContractGuard reports whether a listing is pinned by a live contract.
// Implemented by the contracts repository.
type ContractGuard interface {
	HasActiveContractForListing(ctx context.Context, listingID uuid.UUID) (bool, error)
}
