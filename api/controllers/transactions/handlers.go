package transactions

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lendaround/lendaround-backend/api/middleware"
	"github.com/lendaround/lendaround-backend/api/responses"
	"github.com/lendaround/lendaround-backend/api/validators"
	internaltxns "github.com/lendaround/lendaround-backend/internal/transactions"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
)

type requestBody struct {
	ListingID string `json:"listing_id" validate:"required,uuid4"`
	LenderID  string `json:"lender_id" validate:"required,uuid4"`
	Kind      string `json:"kind" validate:"required,oneof=free paid"`
}

// Request opens a pending rental transaction. Rent-to-own transactions are
// created by contract activation, not through this endpoint.
func Request(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req requestBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := uuid.Parse(req.ListingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
			return
		}
		lenderID, err := uuid.Parse(req.LenderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lender id"))
			return
		}
		kind, err := enums.ParseTransactionKind(req.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction kind"))
			return
		}

		created, err := svc.Request(r.Context(), internaltxns.RequestInput{
			ListingID:  listingID,
			LenderID:   lenderID,
			BorrowerID: actorID,
			Kind:       kind,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// Get returns a single transaction visible to either party.
func Get(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if txn.LenderID != actorID && txn.BorrowerID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotAuthorized, "actor is not a party to this transaction"))
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// List returns every transaction the caller participates in.
func List(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListForUser(r.Context(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

type actionFunc func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error)

// Approve through Dispute drive the custody state machine.
func Approve(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.Approve(r.Context(), input)
	})
}

func Pay(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.Pay(r.Context(), input)
	})
}

func Pickup(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.Pickup(r.Context(), input)
	})
}

func RequestReturn(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.RequestReturn(r.Context(), input)
	})
}

func ConfirmReturn(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.ConfirmReturn(r.Context(), input)
	})
}

func Complete(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.Complete(r.Context(), input)
	})
}

func Cancel(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.Cancel(r.Context(), input)
	})
}

func Dispute(svc internaltxns.Service, logg *logger.Logger) http.HandlerFunc {
	return actionHandler(logg, func(r *http.Request, input internaltxns.ActionInput) (*models.RentalTransaction, error) {
		return svc.Dispute(r.Context(), input)
	})
}

func actionHandler(logg *logger.Logger, fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := transactionIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := fn(r, internaltxns.ActionInput{TransactionID: id, ActorID: actorID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

func transactionIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "transactionID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id")
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
