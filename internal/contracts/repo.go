package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a contracts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.RTOContract) (*models.RTOContract, error) {
	if err := r.db.WithContext(ctx).Create(contract).Error; err != nil {
		return nil, err
	}
	return contract, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RTOContract, error) {
	var contract models.RTOContract
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// FindByIDForUpdate takes the per-contract row lock. Every state-changing
// operation goes through this so concurrent pay/cancel calls serialize and
// the loser sees a clean state error.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RTOContract, error) {
	var contract models.RTOContract
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) HasActiveContractForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RTOContract{}).
		Where("listing_id = ? AND status = ?", listingID, enums.ContractStatusActive).
		Count(&count).Error
	return count > 0, err
}

// FindActiveWithPaymentDueBefore returns active contracts whose next pending
// installment came due before the cutoff. The caller applies the grace window
// by shifting the cutoff.
func (r *repository) FindActiveWithPaymentDueBefore(ctx context.Context, cutoff time.Time) ([]models.RTOContract, error) {
	var rows []models.RTOContract
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ContractStatusActive).
		Where(`EXISTS (
			SELECT 1 FROM rto_payments p
			WHERE p.contract_id = rto_contracts.id
			  AND p.status = ?
			  AND p.due_date < ?
		)`, enums.InstallmentStatusPending, cutoff).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.RTOContract{}).
		Where("id = ?", id).
		Updates(updates).Error
}
