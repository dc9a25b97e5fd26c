package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/tensorpay/unipay/handler"
)

// Routes registers all API routes under /v1.
func Routes(r chi.Router, payments *handler.PaymentHandler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/methods", payments.SupportedMethods)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", payments.CreatePayment)

			r.Route("/{method}/{orderId}", func(r chi.Router) {
				r.Get("/", payments.QueryPayment)
				r.Post("/cancel", payments.CancelPayment)
				r.Post("/refund", payments.Refund)
				r.Get("/refunds/{refundId}", payments.QueryRefund)
			})
		})

		r.Route("/callback", func(r chi.Router) {
			r.Post("/{method}", payments.Callback)
		})
	})
}
