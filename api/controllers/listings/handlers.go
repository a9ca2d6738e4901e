package listings

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/api/middleware"
	"github.com/lendaround/lendaround-backend/api/responses"
	"github.com/lendaround/lendaround-backend/api/validators"
	internallistings "github.com/lendaround/lendaround-backend/internal/listings"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
)

type createRequest struct {
	Title                 string  `json:"title" validate:"required"`
	Description           *string `json:"description,omitempty"`
	Currency              string  `json:"currency,omitempty" validate:"omitempty,oneof=USD CAD"`
	DailyRateCents        int64   `json:"daily_rate_cents" validate:"min=0"`
	RTOEnabled            bool    `json:"rto_enabled"`
	RTOPurchasePriceCents *int64  `json:"rto_purchase_price_cents,omitempty"`
	RTORentalCreditPct    *int    `json:"rto_rental_credit_pct,omitempty"`
	RTOMinPayments        *int    `json:"rto_min_payments,omitempty"`
	RTOMaxPayments        *int    `json:"rto_max_payments,omitempty"`
}

type updateRequest struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	Status         *string `json:"status,omitempty" validate:"omitempty,oneof=active unavailable archived"`
	DailyRateCents *int64  `json:"daily_rate_cents,omitempty"`
}

// Create publishes a listing, optionally with a rent-to-own offer.
func Create(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
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

		listing, err := svc.Create(r.Context(), internallistings.CreateInput{
			OwnerID:               actorID,
			Title:                 req.Title,
			Description:           req.Description,
			Currency:              enums.Currency(req.Currency),
			DailyRateCents:        req.DailyRateCents,
			RTOEnabled:            req.RTOEnabled,
			RTOPurchasePriceCents: req.RTOPurchasePriceCents,
			RTORentalCreditPct:    req.RTORentalCreditPct,
			RTOMinPayments:        req.RTOMinPayments,
			RTOMaxPayments:        req.RTOMaxPayments,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

// Get returns one listing.
func Get(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := listingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListMine returns the caller's listings.
func ListMine(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByOwner(r.Context(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// Update edits a listing the caller owns. Listings pinned by an active
// contract are frozen.
func Update(svc internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := listingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internallistings.UpdateInput{
			ListingID:      id,
			ActorID:        actorID,
			Title:          req.Title,
			Description:    req.Description,
			DailyRateCents: req.DailyRateCents,
		}
		if req.Status != nil {
			status, err := enums.ParseListingStatus(*req.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing status"))
				return
			}
			input.Status = &status
		}

		listing, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func listingIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "listingID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id")
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
