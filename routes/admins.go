package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sreedevirajkumar/candle/config"
	"github.com/sreedevirajkumar/candle/middleware"
)

func passthrough(next http.Handler) http.Handler { return next }

// SetAdminRoutes registers the operator routes. With admin auth disabled they
// are open, as in local development.
func SetAdminRoutes(api *mux.Router, cfg *config.Config, d Deps, ipLimiter *middleware.IPRateLimiter) {
	protect := passthrough
	cron := passthrough
	if cfg.AdminAuth && d.Tokens != nil {
		protect = middleware.AdminAuth(d.Tokens)
		cron = middleware.AdminOrCronKey(d.Tokens, cfg.CronKey)
	}

	if d.Admin != nil {
		api.Handle("/admin/login", ipLimiter.Middleware(http.HandlerFunc(d.Admin.Login))).Methods(http.MethodPost)
		api.Handle("/admin/logout", protect(http.HandlerFunc(d.Admin.Logout))).Methods(http.MethodPost)
	}

	api.Handle("/payment/admin/verify", protect(http.HandlerFunc(d.Payments.AdminVerify))).Methods(http.MethodPost)
	api.Handle("/payment/sessions", protect(http.HandlerFunc(d.Payments.Sessions))).Methods(http.MethodGet)
	api.Handle("/payment/references", protect(http.HandlerFunc(d.Payments.References))).Methods(http.MethodGet)

	// Scheduler entry point, also accepts X-CRON-KEY
	api.Handle("/payment/cleanup", cron(http.HandlerFunc(d.Payments.Cleanup))).Methods(http.MethodPost)

	api.Handle("/order", protect(http.HandlerFunc(d.Orders.List))).Methods(http.MethodGet)
	api.Handle("/order/{orderId}/tracking", protect(http.HandlerFunc(d.Orders.Tracking))).Methods(http.MethodPost)
}
