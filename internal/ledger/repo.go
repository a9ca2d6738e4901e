package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, payments []models.RTOPayment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&payments).Error
}

func (r *repository) CountByContract(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RTOPayment{}).
		Where("contract_id = ?", contractID).
		Count(&count).Error
	return count, err
}

func (r *repository) FindByContract(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error) {
	var rows []models.RTOPayment
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("payment_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindByContractAndNumber(ctx context.Context, contractID uuid.UUID, paymentNumber int) (*models.RTOPayment, error) {
	var row models.RTOPayment
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND payment_number = ?", contractID, paymentNumber).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindNextPending(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error) {
	var row models.RTOPayment
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND status = ?", contractID, enums.InstallmentStatusPending).
		Order("payment_number ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CountPendingBefore(ctx context.Context, contractID uuid.UUID, paymentNumber int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RTOPayment{}).
		Where("contract_id = ? AND status = ? AND payment_number < ?",
			contractID, enums.InstallmentStatusPending, paymentNumber).
		Count(&count).Error
	return count, err
}

func (r *repository) MarkCompleted(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.RTOPayment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}
