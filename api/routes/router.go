package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foodmart/foodmart-backend/api/controllers"
	admincontrollers "github.com/foodmart/foodmart-backend/api/controllers/admin"
	checkoutcontrollers "github.com/foodmart/foodmart-backend/api/controllers/checkout"
	ordercontrollers "github.com/foodmart/foodmart-backend/api/controllers/orders"
	"github.com/foodmart/foodmart-backend/api/middleware"
	"github.com/foodmart/foodmart-backend/pkg/config"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/redis"
)

// Deps is everything the router hands to its controllers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	// Metrics serves the Prometheus scrape endpoint when set.
	Metrics http.Handler

	Orders    ordercontrollers.Service
	Items     controllers.ItemReader
	Vendors   ordercontrollers.VendorStatus
	Publisher ordercontrollers.StatusPublisher
	Stream    controllers.StatusStreamer

	Checkout  checkoutcontrollers.Service
	Transfers admincontrollers.Transfers
	// Decoder is nil when the gateway secret is not configured.
	Decoder checkoutcontrollers.Decoder
	Payouts admincontrollers.PayoutLister
	Refunds admincontrollers.RefundLister
	Jobs    admincontrollers.JobRunner
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.Redis,
		}))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.InternalToken(cfg.Service.InternalToken, logg))
		r.Post("/order-items/{itemID}/status", ordercontrollers.SetStatus(d.Orders, d.Publisher, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(d.Idempotency, logg),
		)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer))
			r.Post("/orders", ordercontrollers.Place(d.Orders, logg))
			r.Get("/cart/vendor-status", ordercontrollers.CartVendorStatus(d.Vendors, logg))

			r.Route("/checkout/esewa", func(r chi.Router) {
				r.Post("/credentials", checkoutcontrollers.Credentials(d.Checkout, logg))
				r.Get("/success", checkoutcontrollers.Success(d.Checkout, d.Decoder, logg))
				r.Post("/failure", checkoutcontrollers.Failure(d.Checkout, logg))
			})
		})

		r.With(middleware.RequireRole(logg, enums.UserRoleCustomer, enums.UserRoleVendor)).
			Post("/order-items/{itemID}/status", ordercontrollers.SetStatus(d.Orders, d.Publisher, logg))

		r.With(middleware.RequireRole(logg, enums.UserRoleVendor)).
			Get("/vendor/earnings", ordercontrollers.Earnings(d.Orders, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(logg, enums.UserRoleAdmin),
			middleware.Idempotency(d.Idempotency, logg),
		)

		r.Get("/payouts", admincontrollers.ListPayouts(d.Payouts, logg))
		r.Route("/payouts/{id}/esewa", func(r chi.Router) {
			r.Post("/credentials", admincontrollers.PayoutCredentials(d.Transfers, logg))
			r.Get("/success", admincontrollers.PayoutSuccess(d.Transfers, d.Decoder, logg))
			r.Post("/failure", admincontrollers.PayoutFailure(d.Transfers, logg))
		})

		r.Get("/refunds", admincontrollers.ListRefunds(d.Refunds, logg))
		r.Route("/refunds/{id}/esewa", func(r chi.Router) {
			r.Post("/credentials", admincontrollers.RefundCredentials(d.Transfers, logg))
			r.Get("/success", admincontrollers.RefundSuccess(d.Transfers, d.Decoder, logg))
			r.Post("/failure", admincontrollers.RefundFailure(d.Transfers, logg))
		})

		r.Get("/jobs", admincontrollers.ListJobs(d.Jobs))
		r.Post("/jobs/{name}/run", admincontrollers.RunJob(d.Jobs, logg))
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/orders/{itemID}", controllers.OrderStream(d.Items, d.Stream, logg))
	})

	return r
}
