package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/sreedevirajkumar/candle/middleware"
	"github.com/sreedevirajkumar/candle/models"
	"github.com/sreedevirajkumar/candle/payments"
	"github.com/sreedevirajkumar/candle/utils"
)

type PaymentController struct {
	Payments *payments.Service
}

func NewPaymentController(svc *payments.Service) *PaymentController {
	return &PaymentController{Payments: svc}
}

// CreateSession handles POST /payment/create-session
func (c *PaymentController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req payments.CreateSessionRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	sess, err := c.Payments.CreateSession(r.Context(), req)
	if errors.Is(err, payments.ErrInvalidRequest) {
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Order ID, amount, and payment mode are required",
		})
		return
	}
	if err != nil {
		internalError(w, "create session", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment session created",
		"sessionData": map[string]interface{}{
			"sessionId":   sess.SessionID,
			"orderId":     sess.OrderID,
			"amount":      sess.Amount,
			"paymentMode": sess.PaymentMode,
			"expiresAt":   sess.ExpiresAt,
		},
	})
}

// Status handles GET /payment/status/{sessionId}
func (c *PaymentController) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := c.Payments.SessionStatus(r.Context(), mux.Vars(r)["sessionId"])
	if errors.Is(err, payments.ErrNotFound) {
		utils.WriteBody(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "Payment session not found",
		})
		return
	}
	if err != nil {
		internalError(w, "session status", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"sessionData": map[string]interface{}{
			"sessionId":            sess.SessionID,
			"orderId":              sess.OrderID,
			"amount":               sess.Amount,
			"paymentMode":          sess.PaymentMode,
			"status":               sess.Status,
			"paymentReference":     sess.PaymentReference,
			"createdAt":            sess.CreatedAt,
			"expiresAt":            sess.ExpiresAt,
			"verificationAttempts": sess.VerificationAttempts,
		},
	})
}

// Verify handles POST /payment/verify
func (c *PaymentController) Verify(w http.ResponseWriter, r *http.Request) {
	var req payments.VerifyRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	res, err := c.Payments.Verify(r.Context(), req)
	if err != nil {
		internalError(w, "verify", err)
		return
	}

	body := map[string]interface{}{
		"verified": res.Verified,
		"message":  res.Message,
	}
	status := http.StatusOK
	switch {
	case errors.Is(res.Err, payments.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(res.Err, payments.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(res.Err, payments.ErrAmountMismatch):
		status = http.StatusBadRequest
		body["expectedAmount"] = res.Expected
		body["receivedAmount"] = res.Supplied
	case res.AutoAdded:
		body["paymentData"] = map[string]interface{}{
			"reference": res.Record.Reference,
			"amount":    res.Record.Amount,
			"timestamp": res.Record.Timestamp,
			"autoAdded": true,
			"sessionId": req.SessionID,
		}
	case res.Verified:
		data := map[string]interface{}{
			"reference": res.Record.Reference,
			"amount":    res.Record.Amount,
			"timestamp": res.Record.Timestamp,
			"sessionId": req.SessionID,
		}
		if res.Record.VerifiedAt != nil {
			data["verifiedAt"] = res.Record.VerifiedAt
		}
		body["paymentData"] = data
	}
	utils.WriteBody(w, status, body)
}

// Webhook handles POST /payment/webhook. The raw body is kept for archival.
func (c *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.APIResponse{Success: false, Message: "Request body too large"})
			return
		}
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid request body"})
		return
	}
	var p payments.WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}
	ack, err := c.Payments.Webhook(r.Context(), p, raw)
	if errors.Is(err, payments.ErrInvalidWebhook) {
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Missing required webhook data",
		})
		return
	}
	if err != nil {
		internalError(w, "webhook", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, ack)
}

type adminVerifyRequest struct {
	PaymentReference string `json:"paymentReference"`
}

// AdminVerify handles POST /payment/admin/verify
func (c *PaymentController) AdminVerify(w http.ResponseWriter, r *http.Request) {
	var req adminVerifyRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	rec, err := c.Payments.AdminVerify(r.Context(), req.PaymentReference)
	switch {
	case errors.Is(err, payments.ErrInvalidRequest):
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Payment reference is required",
		})
		return
	case errors.Is(err, payments.ErrNotFound):
		utils.WriteBody(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "Payment reference not found",
		})
		return
	case err != nil:
		internalError(w, "admin verify", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment verified by admin",
		"paymentData": map[string]interface{}{
			"reference":  rec.Reference,
			"amount":     rec.Amount,
			"verified":   rec.Verified,
			"verifiedAt": rec.VerifiedAt,
		},
	})
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// GenerateTest handles POST /payment/generate-test
func (c *PaymentController) GenerateTest(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	rec, err := c.Payments.GenerateTestReference(r.Context(), req.Amount)
	if errors.Is(err, payments.ErrInvalidRequest) {
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{"message": "Amount is required"})
		return
	}
	if err != nil {
		internalError(w, "generate test reference", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"message":          "Test payment reference generated",
		"paymentReference": rec.Reference,
		"amount":           rec.Amount,
		"instructions":     "Use this reference number to test payment verification",
	})
}

type addReferenceRequest struct {
	PaymentReference string           `json:"paymentReference"`
	Amount           *decimal.Decimal `json:"amount"`
	PaymentMode      string           `json:"paymentMode,omitempty"`
}

// AddReference handles POST /payment/add-reference
func (c *PaymentController) AddReference(w http.ResponseWriter, r *http.Request) {
	var req addReferenceRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	rec, err := c.Payments.AddReference(r.Context(), req.PaymentReference, req.Amount, req.PaymentMode)
	switch {
	case errors.Is(err, payments.ErrInvalidRequest):
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Payment reference and amount are required",
		})
		return
	case errors.Is(err, payments.ErrDuplicateReference):
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Payment reference already exists",
		})
		return
	case err != nil:
		internalError(w, "add reference", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment reference added successfully",
		"paymentData": map[string]interface{}{
			"reference": rec.Reference,
			"amount":    rec.Amount,
			"timestamp": rec.Timestamp,
		},
	})
}

// Sessions handles GET /payment/sessions
func (c *PaymentController) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := c.Payments.ListSessions(r.Context())
	if err != nil {
		internalError(w, "list sessions", err)
		return
	}
	active := 0
	for _, s := range sessions {
		if s.Status == models.SessionPending {
			active++
		}
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"message":        "Payment sessions retrieved",
		"sessions":       sessions,
		"totalSessions":  len(sessions),
		"activeSessions": active,
	})
}

type referenceView struct {
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	Verified      bool            `json:"verified"`
	Timestamp     time.Time       `json:"timestamp"`
	VerifiedAt    *time.Time      `json:"verifiedAt"`
	VerifiedBy    string          `json:"verifiedBy,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
	WebhookStatus string          `json:"webhookStatus,omitempty"`
	AutoAdded     bool            `json:"autoAdded"`
}

// References handles GET /payment/references
func (c *PaymentController) References(w http.ResponseWriter, r *http.Request) {
	recs, err := c.Payments.ListReferences(r.Context())
	if err != nil {
		internalError(w, "list references", err)
		return
	}
	views := make([]referenceView, 0, len(recs))
	verified := 0
	for _, rec := range recs {
		if rec.Verified {
			verified++
		}
		v := referenceView{
			Reference:     rec.Reference,
			Amount:        rec.Amount,
			Verified:      rec.Verified,
			Timestamp:     rec.Timestamp,
			VerifiedBy:    utils.GetStringValue(rec.VerifiedBy),
			SessionID:     utils.GetStringValue(rec.SessionID),
			WebhookStatus: utils.GetStringValue(rec.WebhookStatus),
			VerifiedAt:    rec.VerifiedAt,
			AutoAdded:     rec.AutoAdded,
		}
		views = append(views, v)
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"message":            "Payment references retrieved",
		"references":         views,
		"totalReferences":    len(views),
		"verifiedReferences": verified,
	})
}

// Cleanup handles POST /payment/cleanup
func (c *PaymentController) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := c.Payments.Cleanup(r.Context())
	if err != nil {
		internalError(w, "cleanup", err)
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      fmt.Sprintf("Cleaned up %d expired sessions", n),
		"cleanedCount": n,
	})
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("[payment] %s failed: %v", op, err)
	utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
		Success: false,
		Message: "Internal server error",
	})
}
