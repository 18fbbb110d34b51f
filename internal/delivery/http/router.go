package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", h.IssueToken)
			r.Get("/{tokenId}", h.TokenStatus)
			r.Delete("/{tokenId}", h.ReleaseToken)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/info", h.QueueInfo)
			r.Post("/promote", h.Promote)
		})

		r.Get("/schedules/{scheduleId}/seats", h.ListSeats)

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.Reserve)
			r.Get("/{reservationId}", h.GetReservation)
			r.Delete("/{reservationId}", h.CancelReservation)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.ProcessPayment)
			r.Get("/{paymentId}", h.GetPayment)
		})

		r.Route("/balance", func(r chi.Router) {
			r.Post("/charge", h.ChargeBalance)
			r.Get("/{userId}", h.GetBalance)
			r.Get("/{userId}/history", h.BalanceHistory)
		})
	})

	return r
}
