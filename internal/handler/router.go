package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/akazantsev/boostmart/internal/middleware"
	"github.com/akazantsev/boostmart/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бустмарт.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Post("/boost/calculate", h.Calculate)
		r.Post("/payments/webhook", h.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/boost/checkout", h.Checkout)
			r.Get("/user/orders", h.GetOrders)

			r.Route("/orders/{id}", func(r chi.Router) {
				r.Post("/credentials", h.SubmitCredentials)
				r.Post("/cancel", h.CancelOrder)
				r.Post("/pay", h.PayOrder)

				r.Group(func(r chi.Router) {
					r.Use(custommiddleware.RequireRole(model.RoleBooster))

					r.Post("/claim", h.ClaimOrder)
					r.Post("/verification", h.RequestVerification)
					r.Post("/finish", h.FinishOrder)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleBooster))

				r.Post("/booster/profile", h.UpdateBoosterProfile)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleAdmin))

				r.Post("/admin/pricetable/{service}", h.UploadRateTable)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
