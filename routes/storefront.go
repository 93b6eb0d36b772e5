package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sreedevirajkumar/candle/middleware"
)

// StorefrontRoutes registers the routes the shop frontend and the payment
// provider call.
func StorefrontRoutes(api *mux.Router, d Deps, ipLimiter *middleware.IPRateLimiter, webhookLimiter *middleware.WebhookLimiter) {
	limit := ipLimiter.Middleware

	api.Handle("/payment/create-session", limit(http.HandlerFunc(d.Payments.CreateSession))).Methods(http.MethodPost)
	api.Handle("/payment/status/{sessionId}", limit(http.HandlerFunc(d.Payments.Status))).Methods(http.MethodGet)
	api.Handle("/payment/verify", limit(http.HandlerFunc(d.Payments.Verify))).Methods(http.MethodPost)
	api.Handle("/payment/generate-test", limit(http.HandlerFunc(d.Payments.GenerateTest))).Methods(http.MethodPost)
	api.Handle("/payment/add-reference", limit(http.HandlerFunc(d.Payments.AddReference))).Methods(http.MethodPost)

	// Provider callback
	api.Handle("/payment/webhook", webhookLimiter.Middleware(http.HandlerFunc(d.Payments.Webhook))).Methods(http.MethodPost)

	api.Handle("/order", limit(http.HandlerFunc(d.Orders.Place))).Methods(http.MethodPost)
}
