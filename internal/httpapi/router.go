package httpapi

import (
	"net/http"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter assembles the public API surface. The webhook route sits outside
// the auth group: the carrier does not hold one of our bearer tokens.
func NewRouter(
	orders *OrdersHandler,
	shipments *ShipmentsHandler,
	verifier *auth.Verifier,
	requestTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/tracking", shipments.TrackingWebhook)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(verifier))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orders.CreateOrder)
				r.Get("/", orders.ListOrders)
				r.Get("/{orderID}", orders.GetOrder)
				r.Post("/{orderID}/payment", orders.ConfirmPayment)
				r.Post("/{orderID}/cancel", orders.CancelOrder)
			})

			r.Route("/admin/orders/{orderID}/shipment", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Put("/", shipments.RegisterShipment)
				r.Delete("/{shipmentID}", shipments.RemoveShipment)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront-api")
}
