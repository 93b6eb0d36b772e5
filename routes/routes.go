package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sreedevirajkumar/candle/config"
	"github.com/sreedevirajkumar/candle/controllers"
	"github.com/sreedevirajkumar/candle/middleware"
	"github.com/sreedevirajkumar/candle/utils"
)

// Deps are the handlers the router mounts. Admin and Tokens may be nil when
// admin auth is disabled.
type Deps struct {
	Payments *controllers.PaymentController
	Orders   *controllers.OrderController
	Admin    *controllers.AdminController
	Tokens   *utils.TokenManager
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// InitRouter builds the HTTP surface. The returned func stops the limiter
// cleanup goroutines.
func InitRouter(cfg *config.Config, d Deps) (*mux.Router, func()) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "candle-api",
		})
	})).Methods(http.MethodGet)

	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSOrigins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-CRON-KEY", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/api").Subrouter()

	// Add catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// Per-IP limit over 15 minutes; verify and login get the tighter limit.
	ipLimiter := middleware.NewIPRateLimiter(cfg.RateIPMax, cfg.RateVerifyMax, 15*time.Minute, cfg.TrustedProxies)
	// Webhook: sliding window per hour, whitelisted provider IPs bypass.
	webhookLimiter := middleware.NewWebhookLimiter(cfg.RateWebhookMax, time.Hour, cfg.WebhookWhitelist, cfg.TrustedProxies)

	StorefrontRoutes(api, d, ipLimiter, webhookLimiter)
	SetAdminRoutes(api, cfg, d, ipLimiter)

	return r, ipLimiter.Stop
}
