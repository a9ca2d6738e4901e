package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/internal/rto"
	"github.com/lendaround/lendaround-backend/pkg/db"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
)

// Progress aggregates completed rows into the view the client renders.
type Progress struct {
	PaymentsCompleted      int     `json:"payments_completed"`
	EquityAccumulatedCents int64   `json:"equity_accumulated_cents"`
	RemainingEquityCents   int64   `json:"remaining_equity_cents"`
	ProgressPercent        float64 `json:"progress_percent"`
}

// Service owns the ordered payment sequence of one contract. Mutations run in
// the caller's transaction so ledger writes commit atomically with the
// contract row they belong to.
type Service interface {
	Seed(ctx context.Context, tx *gorm.DB, contract *models.RTOContract, installments []rto.Installment) ([]models.RTOPayment, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, paymentNumber int, paidAt time.Time, captureRef string) (*models.RTOPayment, error)
	NextDue(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error)
	Payments(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error)
	Progress(ctx context.Context, contractID uuid.UUID, purchasePriceCents int64) (*Progress, error)
}

type service struct {
	repo Repository
}

// NewService builds a ledger service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Seed writes the full installment schedule for a contract exactly once.
func (s *service) Seed(ctx context.Context, tx *gorm.DB, contract *models.RTOContract, installments []rto.Installment) ([]models.RTOPayment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if contract == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract required")
	}
	if len(installments) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTerms, "empty installment schedule")
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.CountByContract(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadySeeded, "ledger already seeded for contract")
	}

	payments := make([]models.RTOPayment, 0, len(installments))
	for _, inst := range installments {
		payments = append(payments, models.RTOPayment{
			ContractID:    contract.ID,
			PaymentNumber: inst.Number,
			Status:        enums.InstallmentStatusPending,
			AmountCents:   inst.AmountCents,
			EquityCents:   inst.EquityCents,
			RentalCents:   inst.RentalCents,
			DueDate:       inst.DueDate,
		})
	}
	if err := repo.CreateBatch(ctx, payments); err != nil {
		// A concurrent activation can slip past the count check; the unique
		// (contract_id, payment_number) constraint is the backstop.
		if db.IsUniqueViolation(err, "idx_rto_payments_contract_number") {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadySeeded, "ledger already seeded for contract")
		}
		return nil, err
	}
	return payments, nil
}

// MarkPaid transitions exactly one pending row to completed. Payments are
// captured strictly in order, mirroring the sequential external capture.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, paymentNumber int, paidAt time.Time, captureRef string) (*models.RTOPayment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	repo := s.repo.WithTx(tx)
	payment, err := repo.FindByContractAndNumber(ctx, contractID, paymentNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePaymentNotFound, "payment number not found for contract")
		}
		return nil, err
	}
	if payment.Status == enums.InstallmentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyPaid, "payment already completed")
	}

	pendingBefore, err := repo.CountPendingBefore(ctx, contractID, paymentNumber)
	if err != nil {
		return nil, err
	}
	if pendingBefore > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfOrder, "earlier payment still pending")
	}

	updates := map[string]any{
		"status":  enums.InstallmentStatusCompleted,
		"paid_at": paidAt,
	}
	if captureRef != "" {
		updates["capture_ref"] = captureRef
	}
	if err := repo.MarkCompleted(ctx, payment.ID, updates); err != nil {
		return nil, err
	}

	payment.Status = enums.InstallmentStatusCompleted
	payment.PaidAt = &paidAt
	if captureRef != "" {
		payment.CaptureRef = &captureRef
	}
	return payment, nil
}

// NextDue returns the lowest-numbered pending row, or nil when the ledger is
// exhausted.
func (s *service) NextDue(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error) {
	return s.repo.FindNextPending(ctx, contractID)
}

func (s *service) Payments(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error) {
	return s.repo.FindByContract(ctx, contractID)
}

// Progress aggregates completed rows. Percent is equity over purchase price,
// clamped to [0, 100].
func (s *service) Progress(ctx context.Context, contractID uuid.UUID, purchasePriceCents int64) (*Progress, error) {
	rows, err := s.repo.FindByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return computeProgress(rows, purchasePriceCents), nil
}

func computeProgress(rows []models.RTOPayment, purchasePriceCents int64) *Progress {
	p := &Progress{}
	for _, row := range rows {
		if row.Status != enums.InstallmentStatusCompleted {
			continue
		}
		p.PaymentsCompleted++
		p.EquityAccumulatedCents += row.EquityCents
	}
	p.RemainingEquityCents = purchasePriceCents - p.EquityAccumulatedCents
	if p.RemainingEquityCents < 0 {
		p.RemainingEquityCents = 0
	}
	if purchasePriceCents > 0 {
		pct := decimal.NewFromInt(p.EquityAccumulatedCents).
			Div(decimal.NewFromInt(purchasePriceCents)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		p.ProgressPercent = pct.InexactFloat64()
	}
	if p.ProgressPercent > 100 {
		p.ProgressPercent = 100
	}
	if p.ProgressPercent < 0 {
		p.ProgressPercent = 0
	}
	return p
}
