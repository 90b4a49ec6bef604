package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/wonderland/internal/metrics"
	custommiddleware "github.com/mmeshcher/wonderland/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter(m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger, m))
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	auth := h.authMiddleware.Middleware

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(auth).Get("/me", h.Me)
		})

		r.Get("/reviews", h.ListReviews)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Get("/points", h.GetPoints)
			r.Post("/points", h.PostPoints)
			r.Get("/points/export", h.ExportPoints)

			r.Post("/reviews", h.AddReview)
			r.Delete("/reviews", h.DeleteReview)

			r.Get("/notifications", h.ListNotifications)
			r.Put("/notifications", h.MarkNotifications)
			r.Delete("/notifications", h.DeleteNotification)
			r.Get("/notifications/ws", h.StreamNotifications)

			r.Post("/push/subscriptions", h.Subscribe)
			r.Delete("/push/subscriptions", h.Unsubscribe)

			r.Post("/coupons/validate", h.ValidateCoupon)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireAdmin)

				r.Put("/orders", h.UpdateOrder)
				r.Delete("/orders", h.DeleteOrder)
				r.Get("/orders/export", h.ExportOrders)

				r.Post("/notifications", h.CreateNotification)

				r.Post("/products", h.CreateProduct)

				r.Get("/coupons", h.ListCoupons)
				r.Post("/coupons", h.CreateCoupon)

				r.Get("/reports/sales", h.SalesReport)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
