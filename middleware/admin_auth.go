package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/sreedevirajkumar/candle/utils"
)

// AdminAuth verifies that the request carries a valid admin token.
func AdminAuth(tokens *utils.TokenManager) func(http.Handler) http.Handler {
	return adminAuth(tokens, "")
}

// AdminOrCronKey accepts either an admin token or the X-CRON-KEY shared
// secret, for endpoints a scheduler calls.
func AdminOrCronKey(tokens *utils.TokenManager, cronKey string) func(http.Handler) http.Handler {
	return adminAuth(tokens, cronKey)
}

func adminAuth(tokens *utils.TokenManager, cronKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cronKey != "" {
				if k := r.Header.Get("X-CRON-KEY"); k != "" && subtle.ConstantTimeCompare([]byte(k), []byte(cronKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			tokenString, ok := utils.BearerToken(r)
			if !ok {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
					Success: false,
					Message: "Unauthorized: No token provided",
				})
				return
			}

			claims, err := tokens.Validate(r.Context(), tokenString)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
					Success: false,
					Message: "Unauthorized: Invalid token",
				})
				return
			}

			if role, _ := claims["role"].(string); role != "admin" {
				utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{
					Success: false,
					Message: "Forbidden: Admin access required",
				})
				return
			}

			ctx := context.WithValue(r.Context(), utils.AdminKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
