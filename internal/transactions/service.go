package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
	"github.com/lendaround/lendaround-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RequestInput captures a borrower asking to borrow a listing.
type RequestInput struct {
	ListingID  uuid.UUID
	LenderID   uuid.UUID
	BorrowerID uuid.UUID
	Kind       enums.TransactionKind
}

// ActionInput identifies who is driving a custody transition.
type ActionInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
}

// StateChangedEvent is emitted on every custody transition.
type StateChangedEvent struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	ListingID     uuid.UUID               `json:"listing_id"`
	From          enums.TransactionStatus `json:"from"`
	To            enums.TransactionStatus `json:"to"`
}

// Service drives the rental custody state machine. Public operations cover
// ordinary borrows; the OnContract hooks are called by the contract service
// inside its own transaction to keep an RTO-backed transaction in lockstep
// with its contract.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.RentalTransaction, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.RentalTransaction, error)
	Approve(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	Pay(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	Pickup(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	RequestReturn(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	ConfirmReturn(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	Complete(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	Cancel(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)
	Dispute(ctx context.Context, input ActionInput) (*models.RentalTransaction, error)

	OnContractActivated(ctx context.Context, tx *gorm.DB, contract *models.RTOContract) (uuid.UUID, error)
	OnContractCompleted(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error
	OnContractCancelled(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// ServiceParams wires the transaction service dependencies.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
}

// NewService builds a transactions service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.RentalTransaction, error) {
	if input.ListingID == uuid.Nil || input.LenderID == uuid.Nil || input.BorrowerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing, lender and borrower ids required")
	}
	if input.LenderID == input.BorrowerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot borrow your own listing")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction kind")
	}
	if input.Kind == enums.TransactionKindRentToOwn {
		// RTO transactions are created by contract activation only.
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent to own transactions are created through a contract")
	}

	txn := &models.RentalTransaction{
		ListingID:  input.ListingID,
		LenderID:   input.LenderID,
		BorrowerID: input.BorrowerID,
		Kind:       input.Kind,
		Status:     enums.TransactionStatusPending,
	}
	var created *models.RentalTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		created, err = repo.Create(ctx, txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.RentalTransaction, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Approve(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusApproved, actorLender)
}

func (s *service) Pay(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusPaid, actorBorrower)
}

func (s *service) Pickup(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusPickedUp, actorBorrower)
}

func (s *service) RequestReturn(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusReturnPending, actorBorrower)
}

func (s *service) ConfirmReturn(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusReturned, actorLender)
}

func (s *service) Complete(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusCompleted, actorLender)
}

func (s *service) Cancel(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusCancelled, actorEither)
}

func (s *service) Dispute(ctx context.Context, input ActionInput) (*models.RentalTransaction, error) {
	return s.transition(ctx, input, enums.TransactionStatusDisputed, actorEither)
}

type actorRule int

const (
	actorLender actorRule = iota
	actorBorrower
	actorEither
)

func checkActor(txn *models.RentalTransaction, actorID uuid.UUID, rule actorRule) error {
	switch rule {
	case actorLender:
		if actorID != txn.LenderID {
			return pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the lender may perform this action")
		}
	case actorBorrower:
		if actorID != txn.BorrowerID {
			return pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the borrower may perform this action")
		}
	default:
		if actorID != txn.LenderID && actorID != txn.BorrowerID {
			return pkgerrors.New(pkgerrors.CodeNotAuthorized, "actor is not a party to this transaction")
		}
	}
	return nil
}

// statusTimestampColumn maps a target status to the lifecycle column stamped
// on entry.
func statusTimestampColumn(status enums.TransactionStatus) string {
	switch status {
	case enums.TransactionStatusApproved:
		return "approved_at"
	case enums.TransactionStatusPaid:
		return "paid_at"
	case enums.TransactionStatusPickedUp:
		return "picked_up_at"
	case enums.TransactionStatusReturned:
		return "returned_at"
	case enums.TransactionStatusCompleted:
		return "completed_at"
	case enums.TransactionStatusCancelled:
		return "cancelled_at"
	case enums.TransactionStatusDisputed:
		return "disputed_at"
	}
	return ""
}

func (s *service) transition(ctx context.Context, input ActionInput, target enums.TransactionStatus, rule actorRule) (*models.RentalTransaction, error) {
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.RentalTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindByIDForUpdate(ctx, input.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return err
		}
		if err := checkActor(txn, input.ActorID, rule); err != nil {
			return err
		}
		if txn.Kind == enums.TransactionKindRentToOwn && txn.Status == enums.TransactionStatusPickedUp &&
			target != enums.TransactionStatusDisputed {
			// While a contract is live the borrower keeps possession; only
			// the contract machine may move the transaction on.
			return pkgerrors.New(pkgerrors.CodeInvalidState, "transaction is bound to an active rent to own contract")
		}
		if !txn.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeInvalidState,
				fmt.Sprintf("cannot move transaction from %s to %s", txn.Status, target))
		}
		updated, err = s.applyTransition(ctx, tx, repo, txn, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, repo Repository, txn *models.RentalTransaction, target enums.TransactionStatus) (*models.RentalTransaction, error) {
	now := time.Now().UTC()
	updates := map[string]any{"status": target}
	if col := statusTimestampColumn(target); col != "" {
		updates[col] = now
	}
	if err := repo.Update(ctx, txn.ID, updates); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.OutboxEventTransactionStateChanged,
		AggregateType: enums.OutboxAggregateRentalTransaction,
		AggregateID:   txn.ID,
		Data: StateChangedEvent{
			TransactionID: txn.ID,
			ListingID:     txn.ListingID,
			From:          txn.Status,
			To:            target,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	from := txn.Status
	txn.Status = target
	stampTimestamp(txn, target, now)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transaction_id": txn.ID.String(),
			"from":           from,
			"to":             target,
		})
		s.logg.Info(logCtx, "transaction state changed")
	}
	return txn, nil
}

func stampTimestamp(txn *models.RentalTransaction, status enums.TransactionStatus, at time.Time) {
	switch status {
	case enums.TransactionStatusApproved:
		txn.ApprovedAt = &at
	case enums.TransactionStatusPaid:
		txn.PaidAt = &at
	case enums.TransactionStatusPickedUp:
		txn.PickedUpAt = &at
	case enums.TransactionStatusReturned:
		txn.ReturnedAt = &at
	case enums.TransactionStatusCompleted:
		txn.CompletedAt = &at
	case enums.TransactionStatusCancelled:
		txn.CancelledAt = &at
	case enums.TransactionStatusDisputed:
		txn.DisputedAt = &at
	}
}

// OnContractActivated binds a picked_up rent-to-own transaction to the newly
// activated contract. Runs in the contract service's transaction.
func (s *service) OnContractActivated(ctx context.Context, tx *gorm.DB, contract *models.RTOContract) (uuid.UUID, error) {
	if tx == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if contract == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "contract required")
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByContractID(ctx, contract.ID)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeConflict, "contract already has a bound transaction")
	}

	now := time.Now().UTC()
	contractID := contract.ID
	txn := &models.RentalTransaction{
		ListingID:     contract.ListingID,
		LenderID:      contract.SellerID,
		BorrowerID:    contract.BuyerID,
		Kind:          enums.TransactionKindRentToOwn,
		Status:        enums.TransactionStatusPickedUp,
		RTOContractID: &contractID,
		ApprovedAt:    &now,
		PaidAt:        &now,
		PickedUpAt:    &now,
	}
	if _, err := repo.Create(ctx, txn); err != nil {
		return uuid.Nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.OutboxEventTransactionStateChanged,
		AggregateType: enums.OutboxAggregateRentalTransaction,
		AggregateID:   txn.ID,
		Data: StateChangedEvent{
			TransactionID: txn.ID,
			ListingID:     txn.ListingID,
			From:          enums.TransactionStatusPending,
			To:            enums.TransactionStatusPickedUp,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return uuid.Nil, err
	}
	return txn.ID, nil
}

// OnContractCompleted drives the bound transaction to completed (ownership
// transfers instead of a physical return). Runs in the contract service's
// transaction.
func (s *service) OnContractCompleted(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error {
	return s.driveBoundTransaction(ctx, tx, contractID, enums.TransactionStatusCompleted)
}

// OnContractCancelled drives the bound transaction to cancelled. Runs in the
// contract service's transaction.
func (s *service) OnContractCancelled(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error {
	return s.driveBoundTransaction(ctx, tx, contractID, enums.TransactionStatusCancelled)
}

func (s *service) driveBoundTransaction(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, target enums.TransactionStatus) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	txn, err := repo.FindByContractID(ctx, contractID)
	if err != nil {
		return err
	}
	if txn == nil {
		// Contracts declined before activation never had a transaction.
		return nil
	}
	if txn.Status == target {
		return nil
	}
	if !txn.Status.CanTransitionTo(target) {
		return pkgerrors.New(pkgerrors.CodeInvalidState,
			fmt.Sprintf("cannot move bound transaction from %s to %s", txn.Status, target))
	}
	_, err = s.applyTransition(ctx, tx, repo, txn, target)
	return err
}
