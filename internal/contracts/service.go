package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/internal/rto"
	"github.com/lendaround/lendaround-backend/pkg/config"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
	"github.com/lendaround/lendaround-backend/pkg/outbox"
	"github.com/lendaround/lendaround-backend/pkg/square"
)

// Service orchestrates the rent-to-own contract lifecycle: terms snapshot,
// approval and ledger seeding, sequential payment capture, completion with
// ownership transfer, cancellation and default.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*View, error)
	Get(ctx context.Context, contractID uuid.UUID) (*View, error)
	Approve(ctx context.Context, input ActionInput) (*View, error)
	Decline(ctx context.Context, input DeclineInput) (*View, error)
	Pay(ctx context.Context, input PayInput) (*View, error)
	Cancel(ctx context.Context, input CancelInput) (*View, error)
	MarkDefaulted(ctx context.Context, contractID uuid.UUID) (*View, error)
}

type service struct {
	repo         Repository
	ledger       LedgerService
	transactions TransactionBinder
	listings     ListingReader
	ownership    OwnershipTransferrer
	capturer     PaymentCapturer
	tx           txRunner
	outbox       outboxPublisher
	logg         *logger.Logger
	rtoCfg       config.RTOConfig
}

// ServiceParams wires the contract service dependencies.
type ServiceParams struct {
	Repo         Repository
	Ledger       LedgerService
	Transactions TransactionBinder
	Listings     ListingReader
	Ownership    OwnershipTransferrer
	Capturer     PaymentCapturer
	Tx           txRunner
	Outbox       outboxPublisher
	Logger       *logger.Logger
	RTOConfig    config.RTOConfig
}

// NewService builds a contract service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("contracts repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction binder required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listing reader required")
	}
	if params.Ownership == nil {
		return nil, fmt.Errorf("ownership transferrer required")
	}
	if params.Capturer == nil {
		return nil, fmt.Errorf("payment capturer required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.RTOConfig.DefaultGracePeriod <= 0 {
		return nil, fmt.Errorf("default grace period required")
	}
	return &service{
		repo:         params.Repo,
		ledger:       params.Ledger,
		transactions: params.Transactions,
		listings:     params.Listings,
		ownership:    params.Ownership,
		capturer:     params.Capturer,
		tx:           params.Tx,
		outbox:       params.Outbox,
		logg:         params.Logger,
		rtoCfg:       params.RTOConfig,
	}, nil
}

// Create validates the request against the listing's published offer and
// persists a pending contract with the terms snapshotted.
func (s *service) Create(ctx context.Context, input CreateInput) (*View, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.BorrowerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentFrequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTerms, "invalid payment frequency")
	}
	if input.FirstPaymentDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTerms, "first payment date required")
	}

	listing, err := s.listings.Get(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.RTOEnabled || listing.RTOPurchasePriceCents == nil || listing.RTORentalCreditPct == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is not offered for rent to own")
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "listing is not available")
	}
	if listing.OwnerID == input.BorrowerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own listing")
	}
	if listing.RTOMinPayments != nil && input.TotalPayments < *listing.RTOMinPayments {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("total payments below the listing minimum of %d", *listing.RTOMinPayments))
	}
	if listing.RTOMaxPayments != nil && input.TotalPayments > *listing.RTOMaxPayments {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("total payments above the listing maximum of %d", *listing.RTOMaxPayments))
	}

	amount, err := rto.ComputePaymentAmountCents(*listing.RTOPurchasePriceCents, *listing.RTORentalCreditPct, input.TotalPayments)
	if err != nil {
		return nil, err
	}

	startDate := input.FirstPaymentDate
	contract := &models.RTOContract{
		ListingID:          listing.ID,
		BuyerID:            input.BorrowerID,
		SellerID:           listing.OwnerID,
		Status:             enums.ContractStatusPending,
		Currency:           listing.Currency,
		PurchasePriceCents: *listing.RTOPurchasePriceCents,
		RentalCreditPct:    *listing.RTORentalCreditPct,
		NumberOfPayments:   input.TotalPayments,
		PaymentFrequency:   input.PaymentFrequency,
		PaymentAmountCents: amount,
		GracePeriodDays:    int(s.rtoCfg.DefaultGracePeriod / (24 * time.Hour)),
		StartDate:          &startDate,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, contract); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContractRequested,
			AggregateType: enums.OutboxAggregateRTOContract,
			AggregateID:   contract.ID,
			Data:          s.contractEvent(contract, nil),
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, contract.ID, "contract requested")
	return s.Get(ctx, contract.ID)
}

// Get assembles the consistent snapshot the client renders: the contract row,
// the full ledger, and the derived progress.
func (s *service) Get(ctx context.Context, contractID uuid.UUID) (*View, error) {
	contract, err := s.findContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	payments, err := s.ledger.Payments(ctx, contractID)
	if err != nil {
		return nil, err
	}
	progress, err := s.ledger.Progress(ctx, contractID, contract.PurchasePriceCents)
	if err != nil {
		return nil, err
	}
	return &View{Contract: contract, Payments: payments, Progress: progress}, nil
}

// Approve seeds the ledger and activates the contract. Lender only, from
// pending only.
func (s *service) Approve(ctx context.Context, input ActionInput) (*View, error) {
	err := s.locked(ctx, input.ContractID, func(tx *gorm.DB, contract *models.RTOContract) error {
		if err := requireActor(input.ActorID, contract.SellerID, "only the lender may approve"); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusPending {
			return invalidState("approve", contract.Status)
		}

		firstDate := time.Now().UTC()
		if contract.StartDate != nil {
			firstDate = *contract.StartDate
		}
		installments, err := rto.Amortize(rto.Terms{
			PurchasePriceCents: contract.PurchasePriceCents,
			RentalCreditPct:    contract.RentalCreditPct,
			TotalPayments:      contract.NumberOfPayments,
			PaymentFrequency:   contract.PaymentFrequency,
			FirstPaymentDate:   firstDate,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Seed(ctx, tx, contract, installments); err != nil {
			return err
		}

		transactionID, err := s.transactions.OnContractActivated(ctx, tx, contract)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":         enums.ContractStatusActive,
			"activated_at":   now,
			"transaction_id": transactionID,
		}
		if err := s.repo.WithTx(tx).Update(ctx, contract.ID, updates); err != nil {
			return err
		}
		contract.Status = enums.ContractStatusActive
		contract.ActivatedAt = &now
		contract.TransactionID = &transactionID

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContractActivated,
			AggregateType: enums.OutboxAggregateRTOContract,
			AggregateID:   contract.ID,
			Data:          s.contractEvent(contract, nil),
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, input.ContractID, "contract activated")
	return s.Get(ctx, input.ContractID)
}

// Decline cancels a pending contract. Lender only. No ledger was seeded, so
// there is nothing to unwind.
func (s *service) Decline(ctx context.Context, input DeclineInput) (*View, error) {
	err := s.locked(ctx, input.ContractID, func(tx *gorm.DB, contract *models.RTOContract) error {
		if err := requireActor(input.ActorID, contract.SellerID, "only the lender may decline"); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusPending {
			return invalidState("decline", contract.Status)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":       enums.ContractStatusCancelled,
			"declined_at":  now,
			"cancelled_at": now,
		}
		if err := s.repo.WithTx(tx).Update(ctx, contract.ID, updates); err != nil {
			return err
		}
		contract.Status = enums.ContractStatusCancelled
		contract.DeclinedAt = &now
		contract.CancelledAt = &now

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContractDeclined,
			AggregateType: enums.OutboxAggregateRTOContract,
			AggregateID:   contract.ID,
			Data:          s.contractEvent(contract, input.Reason),
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, input.ContractID, "contract declined")
	return s.Get(ctx, input.ContractID)
}

// Pay captures the next due installment and records it. The capture is
// awaited inside the locked transaction: a failed or timed-out capture rolls
// everything back, leaving the contract untouched so the caller can retry
// with the same idempotency key.
func (s *service) Pay(ctx context.Context, input PayInput) (*View, error) {
	if input.PaymentSourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}

	err := s.locked(ctx, input.ContractID, func(tx *gorm.DB, contract *models.RTOContract) error {
		if err := requireActor(input.ActorID, contract.BuyerID, "only the buyer may pay"); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusActive {
			return invalidState("pay", contract.Status)
		}

		next, err := s.ledger.NextDue(ctx, contract.ID)
		if err != nil {
			return err
		}
		if next == nil {
			return pkgerrors.New(pkgerrors.CodePaymentNotFound, "no pending payment on contract")
		}

		capture, err := s.capture(ctx, contract, next, input.PaymentSourceID)
		if err != nil {
			return err
		}

		paidAt := time.Now().UTC()
		payment, err := s.ledger.MarkPaid(ctx, tx, contract.ID, next.PaymentNumber, paidAt, capture.Reference)
		if err != nil {
			return err
		}

		paymentsMade := contract.PaymentsMade + 1
		equity := contract.EquityCents + payment.EquityCents
		updates := map[string]any{
			"payments_made": paymentsMade,
			"equity_cents":  equity,
		}
		contract.PaymentsMade = paymentsMade
		contract.EquityCents = equity

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContractPaymentRecorded,
			AggregateType: enums.OutboxAggregateRTOContract,
			AggregateID:   contract.ID,
			Data: PaymentRecordedEvent{
				ContractID:    contract.ID,
				PaymentNumber: payment.PaymentNumber,
				AmountCents:   payment.AmountCents,
				EquityCents:   payment.EquityCents,
				CaptureRef:    capture.Reference,
				PaymentsMade:  paymentsMade,
				TotalPayments: contract.NumberOfPayments,
			},
		}); err != nil {
			return err
		}

		if payment.PaymentNumber == contract.NumberOfPayments {
			if err := s.complete(ctx, tx, contract, updates); err != nil {
				return err
			}
		}
		return s.repo.WithTx(tx).Update(ctx, contract.ID, updates)
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, input.ContractID, "installment recorded")
	return s.Get(ctx, input.ContractID)
}

// complete finishes the contract after its final payment: the bound
// transaction closes out and the listing changes hands.
func (s *service) complete(ctx context.Context, tx *gorm.DB, contract *models.RTOContract, updates map[string]any) error {
	now := time.Now().UTC()
	updates["status"] = enums.ContractStatusCompleted
	updates["completed_at"] = now
	contract.Status = enums.ContractStatusCompleted
	contract.CompletedAt = &now

	if err := s.transactions.OnContractCompleted(ctx, tx, contract.ID); err != nil {
		return err
	}
	if err := s.ownership.TransferOwnership(ctx, tx, contract.ListingID, contract.BuyerID); err != nil {
		return err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventOwnershipTransferRequested,
		AggregateType: enums.OutboxAggregateListing,
		AggregateID:   contract.ListingID,
		Data: OwnershipTransferEvent{
			ContractID: contract.ID,
			ListingID:  contract.ListingID,
			FromUserID: contract.SellerID,
			ToUserID:   contract.BuyerID,
		},
	}); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventContractCompleted,
		AggregateType: enums.OutboxAggregateRTOContract,
		AggregateID:   contract.ID,
		Data:          s.contractEvent(contract, nil),
	})
}

// capture charges the installment with a deterministic idempotency key so a
// retry after a timeout can never double-charge.
func (s *service) capture(ctx context.Context, contract *models.RTOContract, payment *models.RTOPayment, sourceID string) (*square.Capture, error) {
	captureCtx := ctx
	if s.rtoCfg.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		captureCtx, cancel = context.WithTimeout(ctx, s.rtoCfg.CaptureTimeout)
		defer cancel()
	}
	capture, err := s.capturer.CapturePayment(captureCtx, square.CapturePaymentParams{
		SourceID:       sourceID,
		AmountCents:    payment.AmountCents,
		Currency:       contract.Currency.String(),
		IdempotencyKey: fmt.Sprintf("contract-%s-payment-%d", contract.ID, payment.PaymentNumber),
		Note:           fmt.Sprintf("rent to own installment %d of %d", payment.PaymentNumber, contract.NumberOfPayments),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeCaptureTimeout, err, "payment capture timed out")
		}
		return nil, err
	}
	return capture, nil
}

// Cancel ends an active contract early. Either party may cancel but must give
// a reason. Accrued equity is snapshotted for the downstream settlement flow;
// the settlement itself is not decided here.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*View, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	err := s.locked(ctx, input.ContractID, func(tx *gorm.DB, contract *models.RTOContract) error {
		if input.ActorID != contract.BuyerID && input.ActorID != contract.SellerID {
			return pkgerrors.New(pkgerrors.CodeNotAuthorized, "actor is not a party to this contract")
		}
		if contract.Status != enums.ContractStatusActive {
			return invalidState("cancel", contract.Status)
		}

		now := time.Now().UTC()
		equity := contract.EquityCents
		updates := map[string]any{
			"status":                         enums.ContractStatusCancelled,
			"cancelled_at":                   now,
			"equity_accrued_at_cancel_cents": equity,
		}
		if err := s.repo.WithTx(tx).Update(ctx, contract.ID, updates); err != nil {
			return err
		}
		contract.Status = enums.ContractStatusCancelled
		contract.CancelledAt = &now
		contract.EquityAccruedAtCancelCents = &equity

		if err := s.transactions.OnContractCancelled(ctx, tx, contract.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContractCancelled,
			AggregateType: enums.OutboxAggregateRTOContract,
			AggregateID:   contract.ID,
			Data: CancelledEvent{
				ContractID:                 contract.ID,
				ListingID:                  contract.ListingID,
				BuyerID:                    contract.BuyerID,
				SellerID:                   contract.SellerID,
				Reason:                     input.Reason,
				EquityAccruedAtCancelCents: equity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, input.ContractID, "contract cancelled")
	return s.Get(ctx, input.ContractID)
}

// MarkDefaulted is invoked by the scheduler when a due payment sat uncaptured
// past the grace window.
func (s *service) MarkDefaulted(ctx context.Context, contractID uuid.UUID) (*View, error) {
	err := s.locked(ctx, contractID, func(tx *gorm.DB, contract *models.RTOContract) error {
		if contract.Status != enums.ContractStatusActive {
			return invalidState("default", contract.Status)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":       enums.ContractStatusDefaulted,
			"defaulted_at": now,
		}
		if err := s.repo.WithTx(tx).Update(ctx, contract.ID, updates); err != nil {
			return err
		}
		contract.Status = enums.ContractStatusDefaulted
		contract.DefaultedAt = &now

		if err := s.transactions.OnContractCancelled(ctx, tx, contract.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventContractDefaulted,
			AggregateType: enums.OutboxAggregateRTOContract,
			AggregateID:   contract.ID,
			Data:          s.contractEvent(contract, nil),
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, contractID, "contract defaulted")
	return s.Get(ctx, contractID)
}

// locked runs fn with the contract row locked for update.
func (s *service) locked(ctx context.Context, contractID uuid.UUID, fn func(tx *gorm.DB, contract *models.RTOContract) error) error {
	if contractID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		contract, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, contractID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
			}
			return err
		}
		return fn(tx, contract)
	})
}

func (s *service) findContract(ctx context.Context, contractID uuid.UUID) (*models.RTOContract, error) {
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, err
	}
	return contract, nil
}

func (s *service) info(ctx context.Context, contractID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithContractID(ctx, contractID.String()), msg)
}

func (s *service) contractEvent(contract *models.RTOContract, reason *string) ContractEvent {
	return ContractEvent{
		ContractID: contract.ID,
		ListingID:  contract.ListingID,
		BuyerID:    contract.BuyerID,
		SellerID:   contract.SellerID,
		Status:     contract.Status,
		Reason:     reason,
	}
}

func requireActor(actorID, expected uuid.UUID, msg string) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actorID != expected {
		return pkgerrors.New(pkgerrors.CodeNotAuthorized, msg)
	}
	return nil
}

func invalidState(op string, status enums.ContractStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState,
		fmt.Sprintf("cannot %s a contract in status %s", op, status))
}
