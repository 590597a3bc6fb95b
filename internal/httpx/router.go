// Package httpx is the thin HTTP transport over the order-processing core.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the order, product, customer, and report endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", h.PlaceOrder)
	r.Get("/orders/{id}", h.GetOrder)

	r.Post("/products", h.CreateProduct)
	r.Get("/products/{id}", h.GetProduct)
	r.Post("/products/{id}/restock", h.Restock)

	r.Post("/customers", h.CreateCustomer)

	r.Get("/reports/daily-revenue", h.DailyRevenue)
	r.Get("/reports/top-products", h.TopProducts)
	r.Get("/reports/high-value-customers", h.HighValueCustomers)

	return r
}
