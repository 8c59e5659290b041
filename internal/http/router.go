package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/hotel-booking/internal/idempotency"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/rateLimit"
	"github.com/robertarktes/hotel-booking/internal/session"
)

type Deps struct {
	Sessions    *session.Builder
	RateLimiter *rateLimit.RateLimiter
	Limits      RateLimits
	Idempotency *idempotency.Idempotency
}

func SetupRouter(h *Handlers, logger observability.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(deps.Sessions))
		if deps.RateLimiter != nil {
			r.Use(RateLimitMiddleware(deps.RateLimiter, deps.Limits))
		}
		r.Use(RequireSession)
		if deps.Idempotency != nil {
			r.Use(IdempotencyMiddleware(deps.Idempotency))
		}

		r.Get("/v1/me", h.Me)
		r.Get("/v1/payment/operators", h.PaymentOperators)
		r.Get("/v1/units/{kind}/{id}", h.GetUnit)
		r.Post("/v1/quotes/{kind}", h.Quote)

		r.Post("/v1/bookings/{kind}", h.CreateBooking)
		r.Get("/v1/bookings/{kind}/{id}", h.GetBooking)
		r.Post("/v1/bookings/{kind}/{id}/payment", h.StartPayment)
		r.Get("/v1/bookings/{kind}/{id}/receipt.html", h.ReceiptHTML)
		r.Get("/v1/bookings/{kind}/{id}/receipt.pdf", h.ReceiptPDF)

		r.Route("/v1/admin/reservations", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", h.ListAllReservations)
			r.Get("/{kind}", h.ListReservations)
			r.Get("/{kind}/export.xlsx", h.ExportReservations)
			r.Get("/{kind}/{id}", h.GetReservation)
			r.Put("/{kind}/{id}", h.UpdateReservation)
			r.Delete("/{kind}/{id}", h.CancelReservation)
		})
	})

	return r
}
