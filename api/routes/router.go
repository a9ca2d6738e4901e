package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lendaround/lendaround-backend/api/controllers"
	contractcontrollers "github.com/lendaround/lendaround-backend/api/controllers/contracts"
	listingcontrollers "github.com/lendaround/lendaround-backend/api/controllers/listings"
	transactioncontrollers "github.com/lendaround/lendaround-backend/api/controllers/transactions"
	"github.com/lendaround/lendaround-backend/api/middleware"
	"github.com/lendaround/lendaround-backend/internal/contracts"
	"github.com/lendaround/lendaround-backend/internal/listings"
	"github.com/lendaround/lendaround-backend/internal/transactions"
	"github.com/lendaround/lendaround-backend/pkg/config"
	"github.com/lendaround/lendaround-backend/pkg/db"
	"github.com/lendaround/lendaround-backend/pkg/logger"
	"github.com/lendaround/lendaround-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	listingService listings.Service,
	transactionService transactions.Service,
	contractService contracts.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(middleware.RateLimitPolicy{
			Limit:  cfg.RateLimit.UserLimit,
			Window: cfg.RateLimit.UserWindow,
		}, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", listingcontrollers.Create(listingService, logg))
			r.Get("/mine", listingcontrollers.ListMine(listingService, logg))
			r.Get("/{listingID}", listingcontrollers.Get(listingService, logg))
			r.Patch("/{listingID}", listingcontrollers.Update(listingService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", transactioncontrollers.Request(transactionService, logg))
			r.Get("/", transactioncontrollers.List(transactionService, logg))
			r.Get("/{transactionID}", transactioncontrollers.Get(transactionService, logg))
			r.Post("/{transactionID}/approve", transactioncontrollers.Approve(transactionService, logg))
			r.Post("/{transactionID}/pay", transactioncontrollers.Pay(transactionService, logg))
			r.Post("/{transactionID}/pickup", transactioncontrollers.Pickup(transactionService, logg))
			r.Post("/{transactionID}/return-request", transactioncontrollers.RequestReturn(transactionService, logg))
			r.Post("/{transactionID}/return-confirm", transactioncontrollers.ConfirmReturn(transactionService, logg))
			r.Post("/{transactionID}/complete", transactioncontrollers.Complete(transactionService, logg))
			r.Post("/{transactionID}/cancel", transactioncontrollers.Cancel(transactionService, logg))
			r.Post("/{transactionID}/dispute", transactioncontrollers.Dispute(transactionService, logg))
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", contractcontrollers.Create(contractService, logg))
			r.Get("/{contractID}", contractcontrollers.Get(contractService, logg))
			r.Post("/{contractID}/approve", contractcontrollers.Approve(contractService, logg))
			r.Post("/{contractID}/decline", contractcontrollers.Decline(contractService, logg))
			r.Post("/{contractID}/pay", contractcontrollers.Pay(contractService, logg))
			r.Post("/{contractID}/cancel", contractcontrollers.Cancel(contractService, logg))
		})
	})

	return r
}
