package controllers

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sreedevirajkumar/candle/middleware"
	"github.com/sreedevirajkumar/candle/utils"
)

// AdminController authenticates the single storefront operator configured
// through ADMIN_USERNAME and ADMIN_PASSWORD_HASH.
type AdminController struct {
	Username     string
	PasswordHash []byte
	Tokens       *utils.TokenManager
	Guard        *middleware.LoginGuard
	Trusted      []string
}

func NewAdminController(username, passwordHash string, tokens *utils.TokenManager, guard *middleware.LoginGuard, trusted []string) *AdminController {
	return &AdminController{
		Username:     username,
		PasswordHash: []byte(passwordHash),
		Tokens:       tokens,
		Guard:        guard,
		Trusted:      trusted,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *AdminController) Login(w http.ResponseWriter, r *http.Request) {
	key := middleware.ClientIP(r, c.Trusted)
	if locked, left := c.Guard.Locked(r.Context(), key); locked {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(left.Seconds())+1))
		utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
			Success: false,
			Message: "Too many failed login attempts, please try again later.",
		})
		return
	}

	var req LoginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	if !c.checkCredentials(req.Username, req.Password) {
		c.Guard.Fail(r.Context(), key)
		log.Printf("[admin] failed login for %q from %s", req.Username, key)
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Invalid username or password",
		})
		return
	}
	c.Guard.Reset(r.Context(), key)

	token, err := c.Tokens.Generate(c.Username, "admin")
	if err != nil {
		log.Printf("[admin] token generation failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to create token",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":      token,
			"expires_in": int(c.Tokens.TTL.Seconds()),
			"username":   c.Username,
		},
	})
}

func (c *AdminController) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(c.Username)) == 1
	if len(c.PasswordHash) == 0 {
		return false
	}
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passOK := bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(password)) == nil
	return userOK && passOK
}

// Logout revokes the presented token. Runs behind AdminAuth.
func (c *AdminController) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := utils.AdminClaims(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	if err := c.Tokens.Revoke(r.Context(), claims); err != nil {
		log.Printf("[admin] revoke failed: %v", err)
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
			Success: true,
			Message: "Logged out; token stays valid until it expires",
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out"})
}
