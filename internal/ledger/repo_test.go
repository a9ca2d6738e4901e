package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS rto_payments (
  id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL,
  payment_number INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_cents INTEGER NOT NULL,
  equity_cents INTEGER NOT NULL,
  rental_cents INTEGER NOT NULL,
  due_date DATETIME NOT NULL,
  paid_at DATETIME,
  capture_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (contract_id, payment_number)
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedRows(t *testing.T, repo Repository, contractID uuid.UUID, n int) {
	t.Helper()
	rows := make([]models.RTOPayment, 0, n)
	base := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		rows = append(rows, models.RTOPayment{
			ID:            uuid.New(),
			ContractID:    contractID,
			PaymentNumber: i,
			Status:        enums.InstallmentStatusPending,
			AmountCents:   6667,
			EquityCents:   3333,
			RentalCents:   3334,
			DueDate:       base.AddDate(0, 0, 7*(i-1)),
		})
	}
	require.NoError(t, repo.CreateBatch(context.Background(), rows))
}

func TestRepositoryOrderingAndPendingQueries(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	contractID := uuid.New()
	seedRows(t, repo, contractID, 3)

	count, err := repo.CountByContract(ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	next, err := repo.FindNextPending(ctx, contractID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 1, next.PaymentNumber)

	paidAt := time.Now().UTC()
	require.NoError(t, repo.MarkCompleted(ctx, next.ID, map[string]any{
		"status":  enums.InstallmentStatusCompleted,
		"paid_at": paidAt,
	}))

	next, err = repo.FindNextPending(ctx, contractID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.PaymentNumber)

	pending, err := repo.CountPendingBefore(ctx, contractID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	rows, err := repo.FindByContract(ctx, contractID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, i+1, row.PaymentNumber)
	}
	assert.Equal(t, enums.InstallmentStatusCompleted, rows[0].Status)
}

func TestRepositoryFindByContractAndNumber(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	contractID := uuid.New()
	seedRows(t, repo, contractID, 2)

	row, err := repo.FindByContractAndNumber(ctx, contractID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, row.PaymentNumber)
	assert.Equal(t, int64(6667), row.AmountCents)

	_, err = repo.FindByContractAndNumber(ctx, contractID, 5)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUniqueContractNumber(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	contractID := uuid.New()
	seedRows(t, repo, contractID, 1)

	dup := []models.RTOPayment{{
		ID:            uuid.New(),
		ContractID:    contractID,
		PaymentNumber: 1,
		Status:        enums.InstallmentStatusPending,
		AmountCents:   6667,
		EquityCents:   3333,
		RentalCents:   3334,
		DueDate:       time.Now(),
	}}
	assert.Error(t, repo.CreateBatch(ctx, dup))
}
