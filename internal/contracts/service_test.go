package contracts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/internal/ledger"
	"github.com/lendaround/lendaround-backend/internal/rto"
	"github.com/lendaround/lendaround-backend/pkg/config"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/outbox"
	"github.com/lendaround/lendaround-backend/pkg/square"
)

type stubContractRepo struct {
	rows map[uuid.UUID]*models.RTOContract
}

func newStubContractRepo() *stubContractRepo {
	return &stubContractRepo{rows: make(map[uuid.UUID]*models.RTOContract)}
}

func (s *stubContractRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubContractRepo) Create(ctx context.Context, contract *models.RTOContract) (*models.RTOContract, error) {
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	copied := *contract
	s.rows[contract.ID] = &copied
	return contract, nil
}

func (s *stubContractRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.RTOContract, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (s *stubContractRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RTOContract, error) {
	return s.FindByID(ctx, id)
}

func (s *stubContractRepo) HasActiveContractForListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	for _, row := range s.rows {
		if row.ListingID == listingID && row.Status == enums.ContractStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubContractRepo) FindActiveWithPaymentDueBefore(ctx context.Context, cutoff time.Time) ([]models.RTOContract, error) {
	return nil, nil
}

func (s *stubContractRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	row, ok := s.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.ContractStatus); ok {
		row.Status = status
	}
	if made, ok := updates["payments_made"].(int); ok {
		row.PaymentsMade = made
	}
	if equity, ok := updates["equity_cents"].(int64); ok {
		row.EquityCents = equity
	}
	if snap, ok := updates["equity_accrued_at_cancel_cents"].(int64); ok {
		row.EquityAccruedAtCancelCents = &snap
	}
	if id, ok := updates["transaction_id"].(uuid.UUID); ok {
		row.TransactionID = &id
	}
	for column, field := range map[string]**time.Time{
		"activated_at": &row.ActivatedAt,
		"completed_at": &row.CompletedAt,
		"cancelled_at": &row.CancelledAt,
		"defaulted_at": &row.DefaultedAt,
		"declined_at":  &row.DeclinedAt,
	} {
		if at, ok := updates[column].(time.Time); ok {
			stamped := at
			*field = &stamped
		}
	}
	return nil
}

// stubLedger keeps the schedule in memory with the same ordering guards the
// real ledger enforces.
type stubLedger struct {
	rows map[uuid.UUID][]models.RTOPayment
}

func newStubLedger() *stubLedger {
	return &stubLedger{rows: make(map[uuid.UUID][]models.RTOPayment)}
}

func (s *stubLedger) Seed(ctx context.Context, tx *gorm.DB, contract *models.RTOContract, installments []rto.Installment) ([]models.RTOPayment, error) {
	if len(s.rows[contract.ID]) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadySeeded, "already seeded")
	}
	var out []models.RTOPayment
	for _, inst := range installments {
		out = append(out, models.RTOPayment{
			ID:            uuid.New(),
			ContractID:    contract.ID,
			PaymentNumber: inst.Number,
			Status:        enums.InstallmentStatusPending,
			AmountCents:   inst.AmountCents,
			EquityCents:   inst.EquityCents,
			RentalCents:   inst.RentalCents,
			DueDate:       inst.DueDate,
		})
	}
	s.rows[contract.ID] = out
	return out, nil
}

func (s *stubLedger) MarkPaid(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, paymentNumber int, paidAt time.Time, captureRef string) (*models.RTOPayment, error) {
	rows := s.rows[contractID]
	for i := range rows {
		if rows[i].PaymentNumber != paymentNumber {
			continue
		}
		if rows[i].Status == enums.InstallmentStatusCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyPaid, "already paid")
		}
		rows[i].Status = enums.InstallmentStatusCompleted
		rows[i].PaidAt = &paidAt
		rows[i].CaptureRef = &captureRef
		copied := rows[i]
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodePaymentNotFound, "not found")
}

func (s *stubLedger) NextDue(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error) {
	for _, row := range s.rows[contractID] {
		if row.Status == enums.InstallmentStatusPending {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) Payments(ctx context.Context, contractID uuid.UUID) ([]models.RTOPayment, error) {
	return s.rows[contractID], nil
}

func (s *stubLedger) Progress(ctx context.Context, contractID uuid.UUID, purchasePriceCents int64) (*ledger.Progress, error) {
	progress := &ledger.Progress{RemainingEquityCents: purchasePriceCents}
	for _, row := range s.rows[contractID] {
		if row.Status == enums.InstallmentStatusCompleted {
			progress.PaymentsCompleted++
			progress.EquityAccumulatedCents += row.EquityCents
			progress.RemainingEquityCents -= row.EquityCents
		}
	}
	return progress, nil
}

type stubBinder struct {
	activated []uuid.UUID
	completed []uuid.UUID
	cancelled []uuid.UUID
	boundTxn  uuid.UUID
}

func (s *stubBinder) OnContractActivated(ctx context.Context, tx *gorm.DB, contract *models.RTOContract) (uuid.UUID, error) {
	s.activated = append(s.activated, contract.ID)
	s.boundTxn = uuid.New()
	return s.boundTxn, nil
}

func (s *stubBinder) OnContractCompleted(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error {
	s.completed = append(s.completed, contractID)
	return nil
}

func (s *stubBinder) OnContractCancelled(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error {
	s.cancelled = append(s.cancelled, contractID)
	return nil
}

type stubListings struct {
	rows map[uuid.UUID]*models.Listing
}

func (s *stubListings) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return row, nil
}

type stubTransferrer struct {
	transfers []uuid.UUID
}

func (s *stubTransferrer) TransferOwnership(ctx context.Context, tx *gorm.DB, listingID, newOwnerID uuid.UUID) error {
	s.transfers = append(s.transfers, listingID)
	return nil
}

type stubCapturer struct {
	err      error
	captures []square.CapturePaymentParams
}

func (s *stubCapturer) CapturePayment(ctx context.Context, params square.CapturePaymentParams) (*square.Capture, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.captures = append(s.captures, params)
	return &square.Capture{Reference: fmt.Sprintf("sq-%d", len(s.captures)), Status: "COMPLETED"}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type contractFixture struct {
	svc        Service
	repo       *stubContractRepo
	ledger     *stubLedger
	binder     *stubBinder
	listings   *stubListings
	transfers  *stubTransferrer
	capturer   *stubCapturer
	outbox     *stubOutbox
	listing    *models.Listing
	buyerID    uuid.UUID
	sellerID   uuid.UUID
}

func newContractFixture(t *testing.T) *contractFixture {
	t.Helper()
	price := int64(120000)
	pct := 50
	minP, maxP := 3, 24
	f := &contractFixture{
		repo:      newStubContractRepo(),
		ledger:    newStubLedger(),
		binder:    &stubBinder{},
		transfers: &stubTransferrer{},
		capturer:  &stubCapturer{},
		outbox:    &stubOutbox{},
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
	}
	f.listing = &models.Listing{
		ID:                    uuid.New(),
		OwnerID:               f.sellerID,
		Status:                enums.ListingStatusActive,
		Currency:              enums.CurrencyUSD,
		RTOEnabled:            true,
		RTOPurchasePriceCents: &price,
		RTORentalCreditPct:    &pct,
		RTOMinPayments:        &minP,
		RTOMaxPayments:        &maxP,
	}
	f.listings = &stubListings{rows: map[uuid.UUID]*models.Listing{f.listing.ID: f.listing}}

	svc, err := NewService(ServiceParams{
		Repo:         f.repo,
		Ledger:       f.ledger,
		Transactions: f.binder,
		Listings:     f.listings,
		Ownership:    f.transfers,
		Capturer:     f.capturer,
		Tx:           stubTxRunner{},
		Outbox:       f.outbox,
		RTOConfig: config.RTOConfig{
			DefaultGracePeriod: 5 * 24 * time.Hour,
			CaptureTimeout:     time.Second,
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *contractFixture) createInput(n int) CreateInput {
	return CreateInput{
		ListingID:        f.listing.ID,
		BorrowerID:       f.buyerID,
		TotalPayments:    n,
		PaymentFrequency: enums.PaymentFrequencyMonthly,
		FirstPaymentDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	}
}

func (f *contractFixture) mustCreate(t *testing.T, n int) *View {
	t.Helper()
	view, err := f.svc.Create(context.Background(), f.createInput(n))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return view
}

func (f *contractFixture) mustActivate(t *testing.T, n int) *View {
	t.Helper()
	created := f.mustCreate(t, n)
	view, err := f.svc.Approve(context.Background(), ActionInput{ContractID: created.Contract.ID, ActorID: f.sellerID})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return view
}

func TestCreateSnapshotsListingTerms(t *testing.T) {
	f := newContractFixture(t)

	view := f.mustCreate(t, 12)
	c := view.Contract
	if c.Status != enums.ContractStatusPending {
		t.Errorf("status = %s, want pending", c.Status)
	}
	if c.PurchasePriceCents != 120000 || c.RentalCreditPct != 50 {
		t.Errorf("terms not snapshotted: price=%d pct=%d", c.PurchasePriceCents, c.RentalCreditPct)
	}
	// 120000 / (0.50 * 12)
	if c.PaymentAmountCents != 20000 {
		t.Errorf("payment amount = %d, want 20000", c.PaymentAmountCents)
	}
	if c.GracePeriodDays != 5 {
		t.Errorf("grace period = %d, want 5", c.GracePeriodDays)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.OutboxEventContractRequested {
		t.Errorf("events = %+v", f.outbox.events)
	}
}

func TestCreateRejectsPaymentCountOutsideBounds(t *testing.T) {
	f := newContractFixture(t)

	for _, n := range []int{2, 25} {
		_, err := f.svc.Create(context.Background(), f.createInput(n))
		if !pkgerrors.Is(err, pkgerrors.CodeOutOfRange) {
			t.Errorf("n=%d: got %v, want out of range", n, err)
		}
	}
}

func TestCreateRejectsOwnListing(t *testing.T) {
	f := newContractFixture(t)

	input := f.createInput(12)
	input.BorrowerID = f.sellerID
	if _, err := f.svc.Create(context.Background(), input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("got %v, want validation", err)
	}
}

func TestCreateRejectsListingWithoutOffer(t *testing.T) {
	f := newContractFixture(t)
	f.listing.RTOEnabled = false

	if _, err := f.svc.Create(context.Background(), f.createInput(12)); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("got %v, want validation", err)
	}
}

func TestApproveChecksActorBeforeState(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 12)

	// The contract is already active. A stranger still gets the authorization
	// error, not the state error.
	_, err := f.svc.Approve(context.Background(), ActionInput{ContractID: view.Contract.ID, ActorID: uuid.New()})
	if !pkgerrors.Is(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("stranger approve: got %v", err)
	}

	_, err = f.svc.Approve(context.Background(), ActionInput{ContractID: view.Contract.ID, ActorID: f.sellerID})
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("double approve: got %v", err)
	}
}

func TestApproveSeedsLedgerAndBindsTransaction(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 12)

	if view.Contract.Status != enums.ContractStatusActive {
		t.Errorf("status = %s, want active", view.Contract.Status)
	}
	if view.Contract.ActivatedAt == nil {
		t.Error("activated_at not stamped")
	}
	if view.Contract.TransactionID == nil || *view.Contract.TransactionID != f.binder.boundTxn {
		t.Errorf("transaction binding = %v", view.Contract.TransactionID)
	}
	if len(view.Payments) != 12 {
		t.Fatalf("ledger rows = %d, want 12", len(view.Payments))
	}
	if view.Payments[0].AmountCents != 20000 || view.Payments[0].EquityCents != 10000 {
		t.Errorf("first row amount=%d equity=%d", view.Payments[0].AmountCents, view.Payments[0].EquityCents)
	}
}

func TestDeclineIsLenderOnlyAndPendingOnly(t *testing.T) {
	f := newContractFixture(t)
	created := f.mustCreate(t, 12)

	_, err := f.svc.Decline(context.Background(), DeclineInput{ContractID: created.Contract.ID, ActorID: f.buyerID})
	if !pkgerrors.Is(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("buyer decline: got %v", err)
	}

	view, err := f.svc.Decline(context.Background(), DeclineInput{ContractID: created.Contract.ID, ActorID: f.sellerID})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if view.Contract.Status != enums.ContractStatusCancelled {
		t.Errorf("status = %s, want cancelled", view.Contract.Status)
	}
	if view.Contract.DeclinedAt == nil {
		t.Error("declined_at not stamped")
	}
	// Nothing was activated, so no transaction is driven.
	if len(f.binder.cancelled) != 0 {
		t.Errorf("binder cancelled = %v", f.binder.cancelled)
	}

	_, err = f.svc.Decline(context.Background(), DeclineInput{ContractID: created.Contract.ID, ActorID: f.sellerID})
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("double decline: got %v", err)
	}
}

func TestPayRecordsInstallmentAndAccruesEquity(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 12)
	ctx := context.Background()

	paid, err := f.svc.Pay(ctx, PayInput{ContractID: view.Contract.ID, ActorID: f.buyerID, PaymentSourceID: "src-1"})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Contract.PaymentsMade != 1 {
		t.Errorf("payments made = %d", paid.Contract.PaymentsMade)
	}
	if paid.Contract.EquityCents != 10000 {
		t.Errorf("equity = %d, want 10000", paid.Contract.EquityCents)
	}
	if len(f.capturer.captures) != 1 {
		t.Fatalf("captures = %d", len(f.capturer.captures))
	}
	capture := f.capturer.captures[0]
	if capture.AmountCents != 20000 {
		t.Errorf("captured %d, want 20000", capture.AmountCents)
	}
	wantKey := fmt.Sprintf("contract-%s-payment-1", view.Contract.ID)
	if capture.IdempotencyKey != wantKey {
		t.Errorf("idempotency key = %q, want %q", capture.IdempotencyKey, wantKey)
	}
}

func TestPayIsBuyerOnlyAndActiveOnly(t *testing.T) {
	f := newContractFixture(t)
	created := f.mustCreate(t, 12)
	ctx := context.Background()

	_, err := f.svc.Pay(ctx, PayInput{ContractID: created.Contract.ID, ActorID: f.sellerID, PaymentSourceID: "src-1"})
	if !pkgerrors.Is(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("seller pay: got %v", err)
	}
	_, err = f.svc.Pay(ctx, PayInput{ContractID: created.Contract.ID, ActorID: f.buyerID, PaymentSourceID: "src-1"})
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("pay on pending: got %v", err)
	}
}

func TestPayCaptureFailureLeavesContractUntouched(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 12)
	f.capturer.err = pkgerrors.New(pkgerrors.CodeCaptureTimeout, "capture timed out")

	_, err := f.svc.Pay(context.Background(), PayInput{ContractID: view.Contract.ID, ActorID: f.buyerID, PaymentSourceID: "src-1"})
	if !pkgerrors.Is(err, pkgerrors.CodeCaptureTimeout) {
		t.Fatalf("got %v, want capture timeout", err)
	}

	after, err := f.svc.Get(context.Background(), view.Contract.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Contract.PaymentsMade != 0 || after.Contract.EquityCents != 0 {
		t.Errorf("contract mutated after failed capture: made=%d equity=%d",
			after.Contract.PaymentsMade, after.Contract.EquityCents)
	}
	if after.Contract.Status != enums.ContractStatusActive {
		t.Errorf("status = %s, want active", after.Contract.Status)
	}
}

func TestFinalPaymentCompletesContractAndTransfersOwnership(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 3)
	ctx := context.Background()

	var last *View
	for i := 0; i < 3; i++ {
		var err error
		last, err = f.svc.Pay(ctx, PayInput{ContractID: view.Contract.ID, ActorID: f.buyerID, PaymentSourceID: "src-1"})
		if err != nil {
			t.Fatalf("pay %d: %v", i+1, err)
		}
	}

	if last.Contract.Status != enums.ContractStatusCompleted {
		t.Errorf("status = %s, want completed", last.Contract.Status)
	}
	if last.Contract.EquityCents != 120000 {
		t.Errorf("equity = %d, want full purchase price", last.Contract.EquityCents)
	}
	if len(f.binder.completed) != 1 {
		t.Errorf("binder completed = %v", f.binder.completed)
	}
	if len(f.transfers.transfers) != 1 || f.transfers.transfers[0] != f.listing.ID {
		t.Errorf("ownership transfers = %v", f.transfers.transfers)
	}

	var sawTransfer, sawCompleted bool
	for _, event := range f.outbox.events {
		switch event.EventType {
		case enums.OutboxEventOwnershipTransferRequested:
			sawTransfer = true
		case enums.OutboxEventContractCompleted:
			sawCompleted = true
		}
	}
	if !sawTransfer || !sawCompleted {
		t.Errorf("missing completion events: transfer=%v completed=%v", sawTransfer, sawCompleted)
	}

	_, err := f.svc.Pay(ctx, PayInput{ContractID: view.Contract.ID, ActorID: f.buyerID, PaymentSourceID: "src-1"})
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("pay on completed: got %v", err)
	}
}

func TestCancelSnapshotsAccruedEquity(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 12)
	ctx := context.Background()

	if _, err := f.svc.Pay(ctx, PayInput{ContractID: view.Contract.ID, ActorID: f.buyerID, PaymentSourceID: "src-1"}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	_, err := f.svc.Cancel(ctx, CancelInput{ContractID: view.Contract.ID, ActorID: f.buyerID})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("cancel without reason: got %v", err)
	}

	_, err = f.svc.Cancel(ctx, CancelInput{ContractID: view.Contract.ID, ActorID: uuid.New(), Reason: "moving away"})
	if !pkgerrors.Is(err, pkgerrors.CodeNotAuthorized) {
		t.Fatalf("stranger cancel: got %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, CancelInput{ContractID: view.Contract.ID, ActorID: f.buyerID, Reason: "moving away"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Contract.Status != enums.ContractStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Contract.Status)
	}
	if cancelled.Contract.EquityAccruedAtCancelCents == nil || *cancelled.Contract.EquityAccruedAtCancelCents != 10000 {
		t.Errorf("equity snapshot = %v, want 10000", cancelled.Contract.EquityAccruedAtCancelCents)
	}
	if len(f.binder.cancelled) != 1 {
		t.Errorf("binder cancelled = %v", f.binder.cancelled)
	}
}

func TestMarkDefaultedDrivesBoundTransaction(t *testing.T) {
	f := newContractFixture(t)
	view := f.mustActivate(t, 12)

	defaulted, err := f.svc.MarkDefaulted(context.Background(), view.Contract.ID)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if defaulted.Contract.Status != enums.ContractStatusDefaulted {
		t.Errorf("status = %s, want defaulted", defaulted.Contract.Status)
	}
	if defaulted.Contract.DefaultedAt == nil {
		t.Error("defaulted_at not stamped")
	}
	if len(f.binder.cancelled) != 1 {
		t.Errorf("binder cancelled = %v", f.binder.cancelled)
	}

	if _, err := f.svc.MarkDefaulted(context.Background(), view.Contract.ID); !pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("double default: got %v", err)
	}
}
