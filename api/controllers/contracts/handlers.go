package contracts

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/api/middleware"
	"github.com/lendaround/lendaround-backend/api/responses"
	"github.com/lendaround/lendaround-backend/api/validators"
	internalcontracts "github.com/lendaround/lendaround-backend/internal/contracts"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
)

type createRequest struct {
	ListingID        string `json:"listing_id" validate:"required,uuid4"`
	TotalPayments    int    `json:"total_payments" validate:"required,min=1"`
	PaymentFrequency string `json:"payment_frequency" validate:"required,oneof=weekly biweekly monthly"`
	FirstPaymentDate string `json:"first_payment_date" validate:"required"`
}

type declineRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type payRequest struct {
	PaymentSourceID string `json:"payment_source_id" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Create opens a pending rent-to-own contract against a listing.
func Create(svc internalcontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := uuid.Parse(req.ListingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
			return
		}
		frequency, err := enums.ParsePaymentFrequency(req.PaymentFrequency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidTerms, err, "invalid payment frequency"))
			return
		}
		firstDate, err := time.Parse(time.RFC3339, req.FirstPaymentDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidTerms, err, "first payment date must be RFC3339"))
			return
		}

		view, err := svc.Create(r.Context(), internalcontracts.CreateInput{
			ListingID:        listingID,
			BorrowerID:       actorID,
			TotalPayments:    req.TotalPayments,
			PaymentFrequency: frequency,
			FirstPaymentDate: firstDate.UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// Get returns the contract, its ledger, and derived progress.
func Get(svc internalcontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := contractIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if view.Contract.BuyerID != actorID && view.Contract.SellerID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotAuthorized, "actor is not a party to this contract"))
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Approve activates a pending contract and seeds its payment schedule.
func Approve(svc internalcontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, contractID, actorID uuid.UUID) (*internalcontracts.View, error) {
		return svc.Approve(r.Context(), internalcontracts.ActionInput{ContractID: contractID, ActorID: actorID})
	})
}

// Decline rejects a pending contract.
func Decline(svc internalcontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, contractID, actorID uuid.UUID) (*internalcontracts.View, error) {
		var req declineRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
		}
		return svc.Decline(r.Context(), internalcontracts.DeclineInput{
			ContractID: contractID,
			ActorID:    actorID,
			Reason:     req.Reason,
		})
	})
}

// Pay captures the next due installment.
func Pay(svc internalcontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, contractID, actorID uuid.UUID) (*internalcontracts.View, error) {
		var req payRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Pay(r.Context(), internalcontracts.PayInput{
			ContractID:      contractID,
			ActorID:         actorID,
			PaymentSourceID: req.PaymentSourceID,
		})
	})
}

// Cancel ends an active contract early with a mandatory reason.
func Cancel(svc internalcontracts.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, contractID, actorID uuid.UUID) (*internalcontracts.View, error) {
		var req cancelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Cancel(r.Context(), internalcontracts.CancelInput{
			ContractID: contractID,
			ActorID:    actorID,
			Reason:     req.Reason,
		})
	})
}

func actionHandler(logg *logger.Logger, fn func(r *http.Request, contractID, actorID uuid.UUID) (*internalcontracts.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, err := contractIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := fn(r, contractID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func contractIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "contractID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id")
	}
	return id, nil
}

func actorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return id, nil
}
