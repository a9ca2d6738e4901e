package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries a new listing, including the optional rent-to-own offer.
type CreateInput struct {
	OwnerID               uuid.UUID
	Title                 string
	Description           *string
	Currency              enums.Currency
	DailyRateCents        int64
	RTOEnabled            bool
	RTOPurchasePriceCents *int64
	RTORentalCreditPct    *int
	RTOMinPayments        *int
	RTOMaxPayments        *int
}

// UpdateInput carries mutable listing fields. Nil means unchanged.
type UpdateInput struct {
	ListingID      uuid.UUID
	ActorID        uuid.UUID
	Title          *string
	Description    *string
	Status         *enums.ListingStatus
	DailyRateCents *int64
}

// Service manages listings and the ownership handover at contract completion.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error)
	Update(ctx context.Context, input UpdateInput) (*models.Listing, error)
	TransferOwnership(ctx context.Context, tx *gorm.DB, listingID, newOwnerID uuid.UUID) error
}

type service struct {
	repo  Repository
	guard ContractGuard
	tx    txRunner
	logg  *logger.Logger
}

// ServiceParams wires the listings service dependencies.
type ServiceParams struct {
	Repo   Repository
	Guard  ContractGuard
	Tx     txRunner
	Logger *logger.Logger
}

// NewService builds a listings service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("contract guard required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  params.Repo,
		guard: params.Guard,
		tx:    params.Tx,
		logg:  params.Logger,
	}, nil
}

func validateRTOOffer(input CreateInput) error {
	if !input.RTOEnabled {
		return nil
	}
	if input.RTOPurchasePriceCents == nil || *input.RTOPurchasePriceCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "rent to own purchase price must be positive")
	}
	if input.RTORentalCreditPct == nil || *input.RTORentalCreditPct <= 0 || *input.RTORentalCreditPct > 100 {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "rental credit percent must be between 1 and 100")
	}
	if input.RTOMinPayments == nil || *input.RTOMinPayments < 1 {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "minimum payments must be at least 1")
	}
	if input.RTOMaxPayments == nil || *input.RTOMaxPayments < *input.RTOMinPayments {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "maximum payments must be at least the minimum")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Listing, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if err := validateRTOOffer(input); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		OwnerID:               input.OwnerID,
		Title:                 input.Title,
		Description:           input.Description,
		Status:                enums.ListingStatusActive,
		Currency:              currency,
		DailyRateCents:        input.DailyRateCents,
		RTOEnabled:            input.RTOEnabled,
		RTOPurchasePriceCents: input.RTOPurchasePriceCents,
		RTORentalCreditPct:    input.RTORentalCreditPct,
		RTOMinPayments:        input.RTOMinPayments,
		RTOMaxPayments:        input.RTOMaxPayments,
	}
	var created *models.Listing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.repo.WithTx(tx).Create(ctx, listing)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, err
	}
	return listing, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Update edits a listing. A listing referenced by a live contract is frozen:
// the contract snapshotted its terms at creation, and custody of the item is
// spoken for until the contract resolves.
func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Listing, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	listing, err := s.Get(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotAuthorized, "only the owner may edit a listing")
	}

	pinned, err := s.guard.HasActiveContractForListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if pinned {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "listing is locked by an active rent to own contract")
	}

	updates := map[string]any{}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid listing status")
		}
		updates["status"] = *input.Status
	}
	if input.DailyRateCents != nil {
		if *input.DailyRateCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily rate cannot be negative")
		}
		updates["daily_rate_cents"] = *input.DailyRateCents
	}
	if len(updates) == 0 {
		return listing, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Update(ctx, input.ListingID, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.ListingID)
}

// TransferOwnership reassigns the listing to the buyer when a contract
// completes. Runs in the contract service's transaction and retires the
// listing from circulation.
func (s *service) TransferOwnership(ctx context.Context, tx *gorm.DB, listingID, newOwnerID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if listingID == uuid.Nil || newOwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing and new owner ids required")
	}
	err := s.repo.WithTx(tx).Update(ctx, listingID, map[string]any{
		"owner_id":    newOwnerID,
		"status":      enums.ListingStatusArchived,
		"rto_enabled": false,
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"listing_id": listingID.String(),
			"new_owner":  newOwnerID.String(),
		})
		s.logg.Info(logCtx, "listing ownership transferred")
	}
	return nil
}
