package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/internal/rto"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
)

type stubLedgerRepo struct {
	rows []models.RTOPayment
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubLedgerRepo) CreateBatch(ctx context.Context, payments []models.RTOPayment) error {
	for i := range payments {
		if payments[i].ID == uuid.Nil {
			payments[i].ID = uuid.New()
		}
		s.rows = append(s.rows, payments[i])
	}
	return nil
}

func (s *stubLedgerRepo) CountByContract(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var count int64
	for _, row := range s.rows {
		if row.ContractID == contractID {
			count++
		}
	}
	return count, nil
}

func (s *stubLedgerRepo) FindByContract(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error) {
	var out []models.RTOPayment
	for _, row := range s.rows {
		if row.ContractID == contractID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNumber < out[j].PaymentNumber })
	return out, nil
}

func (s *stubLedgerRepo) FindByContractAndNumber(ctx context.Context, contractID uuid.UUID, paymentNumber int) (*models.RTOPayment, error) {
	for i := range s.rows {
		if s.rows[i].ContractID == contractID && s.rows[i].PaymentNumber == paymentNumber {
			row := s.rows[i]
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLedgerRepo) FindNextPending(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error) {
	var next *models.RTOPayment
	for i := range s.rows {
		row := &s.rows[i]
		if row.ContractID != contractID || row.Status != enums.InstallmentStatusPending {
			continue
		}
		if next == nil || row.PaymentNumber < next.PaymentNumber {
			next = row
		}
	}
	if next == nil {
		return nil, nil
	}
	copied := *next
	return &copied, nil
}

func (s *stubLedgerRepo) CountPendingBefore(ctx context.Context, contractID uuid.UUID, paymentNumber int) (int64, error) {
	var count int64
	for _, row := range s.rows {
		if row.ContractID == contractID && row.Status == enums.InstallmentStatusPending && row.PaymentNumber < paymentNumber {
			count++
		}
	}
	return count, nil
}

func (s *stubLedgerRepo) MarkCompleted(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	for i := range s.rows {
		if s.rows[i].ID != paymentID {
			continue
		}
		s.rows[i].Status = enums.InstallmentStatusCompleted
		if paidAt, ok := updates["paid_at"].(time.Time); ok {
			s.rows[i].PaidAt = &paidAt
		}
		if ref, ok := updates["capture_ref"].(string); ok {
			s.rows[i].CaptureRef = &ref
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func testInstallments(t *testing.T, priceCents int64, pct, n int) []rto.Installment {
	t.Helper()
	rows, err := rto.Amortize(rto.Terms{
		PurchasePriceCents: priceCents,
		RentalCreditPct:    pct,
		TotalPayments:      n,
		PaymentFrequency:   enums.PaymentFrequencyWeekly,
		FirstPaymentDate:   time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("amortize: %v", err)
	}
	return rows
}

func newTestLedger(t *testing.T) (Service, *stubLedgerRepo) {
	t.Helper()
	repo := &stubLedgerRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestSeedWritesFullSchedule(t *testing.T) {
	svc, repo := newTestLedger(t)
	contract := &models.RTOContract{ID: uuid.New(), PurchasePriceCents: 120000}

	payments, err := svc.Seed(context.Background(), &gorm.DB{}, contract, testInstallments(t, 120000, 50, 12))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(payments) != 12 {
		t.Fatalf("seeded %d rows, want 12", len(payments))
	}
	if len(repo.rows) != 12 {
		t.Fatalf("repo has %d rows, want 12", len(repo.rows))
	}
	for i, row := range repo.rows {
		if row.PaymentNumber != i+1 {
			t.Errorf("row %d number = %d", i, row.PaymentNumber)
		}
		if row.Status != enums.InstallmentStatusPending {
			t.Errorf("row %d status = %s", i, row.Status)
		}
	}
}

func TestSeedTwiceFailsAndLeavesLedgerUnchanged(t *testing.T) {
	svc, repo := newTestLedger(t)
	contract := &models.RTOContract{ID: uuid.New(), PurchasePriceCents: 120000}
	installments := testInstallments(t, 120000, 50, 12)

	if _, err := svc.Seed(context.Background(), &gorm.DB{}, contract, installments); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	_, err := svc.Seed(context.Background(), &gorm.DB{}, contract, installments)
	if !pkgerrors.Is(err, pkgerrors.CodeAlreadySeeded) {
		t.Fatalf("expected already seeded error, got %v", err)
	}
	if len(repo.rows) != 12 {
		t.Fatalf("ledger changed after failed seed: %d rows", len(repo.rows))
	}
}

func TestMarkPaidInOrder(t *testing.T) {
	svc, _ := newTestLedger(t)
	contract := &models.RTOContract{ID: uuid.New(), PurchasePriceCents: 10000}
	if _, err := svc.Seed(context.Background(), &gorm.DB{}, contract, testInstallments(t, 10000, 50, 3)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	paidAt := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	payment, err := svc.MarkPaid(context.Background(), &gorm.DB{}, contract.ID, 1, paidAt, "sq-ref-1")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if payment.Status != enums.InstallmentStatusCompleted {
		t.Errorf("status = %s", payment.Status)
	}
	if payment.PaidAt == nil || !payment.PaidAt.Equal(paidAt) {
		t.Errorf("paid at = %v", payment.PaidAt)
	}
	if payment.CaptureRef == nil || *payment.CaptureRef != "sq-ref-1" {
		t.Errorf("capture ref = %v", payment.CaptureRef)
	}

	next, err := svc.NextDue(context.Background(), contract.ID)
	if err != nil {
		t.Fatalf("next due: %v", err)
	}
	if next == nil || next.PaymentNumber != 2 {
		t.Fatalf("next due = %+v, want payment 2", next)
	}
}

func TestMarkPaidGuards(t *testing.T) {
	svc, _ := newTestLedger(t)
	contract := &models.RTOContract{ID: uuid.New(), PurchasePriceCents: 10000}
	if _, err := svc.Seed(context.Background(), &gorm.DB{}, contract, testInstallments(t, 10000, 50, 3)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Now()

	if _, err := svc.MarkPaid(context.Background(), &gorm.DB{}, contract.ID, 9, now, ""); !pkgerrors.Is(err, pkgerrors.CodePaymentNotFound) {
		t.Errorf("unknown number: got %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), &gorm.DB{}, contract.ID, 2, now, ""); !pkgerrors.Is(err, pkgerrors.CodeOutOfOrder) {
		t.Errorf("out of order: got %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), &gorm.DB{}, contract.ID, 1, now, ""); err != nil {
		t.Fatalf("first pay: %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), &gorm.DB{}, contract.ID, 1, now, ""); !pkgerrors.Is(err, pkgerrors.CodeAlreadyPaid) {
		t.Errorf("double pay: got %v", err)
	}
}

func TestProgressAggregation(t *testing.T) {
	svc, _ := newTestLedger(t)
	contract := &models.RTOContract{ID: uuid.New(), PurchasePriceCents: 10000}
	if _, err := svc.Seed(context.Background(), &gorm.DB{}, contract, testInstallments(t, 10000, 50, 3)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Now()

	progress, err := svc.Progress(context.Background(), contract.ID, contract.PurchasePriceCents)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.PaymentsCompleted != 0 || progress.EquityAccumulatedCents != 0 || progress.ProgressPercent != 0 {
		t.Fatalf("fresh progress = %+v", progress)
	}

	for i := 1; i <= 3; i++ {
		if _, err := svc.MarkPaid(context.Background(), &gorm.DB{}, contract.ID, i, now, ""); err != nil {
			t.Fatalf("pay %d: %v", i, err)
		}
	}

	progress, err = svc.Progress(context.Background(), contract.ID, contract.PurchasePriceCents)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.PaymentsCompleted != 3 {
		t.Errorf("payments completed = %d", progress.PaymentsCompleted)
	}
	if progress.EquityAccumulatedCents != 10000 {
		t.Errorf("equity = %d, want 10000", progress.EquityAccumulatedCents)
	}
	if progress.RemainingEquityCents != 0 {
		t.Errorf("remaining = %d, want 0", progress.RemainingEquityCents)
	}
	if progress.ProgressPercent != 100 {
		t.Errorf("percent = %v, want exactly 100", progress.ProgressPercent)
	}

	next, err := svc.NextDue(context.Background(), contract.ID)
	if err != nil {
		t.Fatalf("next due: %v", err)
	}
	if next != nil {
		t.Errorf("next due = %+v, want none", next)
	}
}
