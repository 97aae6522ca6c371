package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/searchable-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware расчётного сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/searchable/{id}", h.GetSearchable)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/searchable", h.CreateSearchable)

			r.Get("/balance", h.GetBalance)
			r.Post("/payment/balance", h.PayWithBalance)
			r.Post("/payment/invoice", h.CreateInvoice)
			r.Get("/invoices", h.GetPurchases)

			r.Post("/deposit", h.CreateDeposit)
			r.Get("/deposits", h.GetDeposits)
			r.Get("/deposit-status/{id}", h.GetDepositStatus)

			r.Post("/withdrawal", h.Withdraw)
			r.Get("/withdrawals", h.GetWithdrawals)
			r.Get("/withdrawal-status/{id}", h.GetWithdrawalStatus)
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
