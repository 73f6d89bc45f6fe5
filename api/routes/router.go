package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deliverly/checkout-core/api/controllers"
	cartcontrollers "github.com/deliverly/checkout-core/api/controllers/cart"
	checkoutcontrollers "github.com/deliverly/checkout-core/api/controllers/checkout"
	"github.com/deliverly/checkout-core/api/middleware"
	"github.com/deliverly/checkout-core/pkg/config"
	"github.com/deliverly/checkout-core/pkg/db"
	"github.com/deliverly/checkout-core/pkg/logger"
)

// Services groups the coordinator slices the handlers depend on. In practice
// both are the same mutation coordinator.
type Services struct {
	Cart     cartcontrollers.Service
	Checkout checkoutcontrollers.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	svcs Services,
	registry *prometheus.Registry,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", cartcontrollers.Fetch(svcs.Cart, logg))
		r.Delete("/", cartcontrollers.Clear(svcs.Cart, logg))
		r.Post("/items", cartcontrollers.AddItem(svcs.Cart, logg))
		r.Patch("/items/{itemID}", cartcontrollers.UpdateQuantity(svcs.Cart, logg))
		r.Delete("/items/{itemID}", cartcontrollers.RemoveItem(svcs.Cart, logg))

		r.Get("/pricing", checkoutcontrollers.FetchPricing(svcs.Checkout, logg))
		r.Put("/tip", checkoutcontrollers.SetTip(svcs.Checkout, logg))
		r.Put("/promo-code", checkoutcontrollers.SetPromoCode(svcs.Checkout, logg))
		r.Put("/loyalty-points", checkoutcontrollers.SetLoyaltyPoints(svcs.Checkout, logg))
		r.Put("/insurance", checkoutcontrollers.SetInsurance(svcs.Checkout, logg))
		r.Put("/schedule", checkoutcontrollers.SetSchedule(svcs.Checkout, logg))
		r.Put("/destination", checkoutcontrollers.SetDestination(svcs.Checkout, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/submit", checkoutcontrollers.Submit(svcs.Checkout, logg))
	})

	return r
}
