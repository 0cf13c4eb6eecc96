package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.RateLimit(rateLimitRPM))

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/carts", func(r chi.Router) {
			r.Get("/", h.ListCarts)
			r.Get("/unpaid", h.ListUnpaidCarts)
			r.Get("/large", h.ListLargeCarts)

			r.Route("/{cartID}", func(r chi.Router) {
				r.Get("/total", h.GetCartTotal)
				r.Get("/paid", h.GetPaid)
				r.Put("/paid", h.SetPaid)
				r.Delete("/products", h.ClearCart)
				r.Get("/products/{productID}", h.GetLineEntry)
				r.Delete("/products/{productID}", h.RemoveProduct)
				r.Post("/products/{productID}/increment", h.IncrementProduct)
			})
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/cart", h.CreateCart)
			r.Get("/carts", h.ListUserCarts)
		})

		r.Get("/products/{productID}/carts/count", h.CountCartsWithProduct)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/max-total", h.GetMaxTotal)
			r.Get("/top-product", h.GetTopProduct)
		})
	})

	return r
}
