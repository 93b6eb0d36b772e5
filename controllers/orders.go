package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sreedevirajkumar/candle/middleware"
	"github.com/sreedevirajkumar/candle/orders"
	"github.com/sreedevirajkumar/candle/utils"
)

type OrderController struct {
	Orders *orders.Service
}

func NewOrderController(svc *orders.Service) *OrderController {
	return &OrderController{Orders: svc}
}

// Place handles POST /order. Emails are scheduled, not awaited.
func (c *OrderController) Place(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	o, err := c.Orders.Place(r.Context(), req)
	if errors.Is(err, orders.ErrInvalidRequest) {
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{
			"message": "Missing required fields",
			"error":   err.Error(),
		})
		return
	}
	if err != nil {
		log.Printf("[order] place failed: %v", err)
		utils.WriteBody(w, http.StatusInternalServerError, map[string]interface{}{"message": "Failed to place order"})
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{
		"message": "Order received and emails scheduled",
		"orderId": o.OrderID,
	})
}

// List handles GET /order
func (c *OrderController) List(w http.ResponseWriter, r *http.Request) {
	list, err := c.Orders.List(r.Context())
	if err != nil {
		log.Printf("[order] list failed: %v", err)
		utils.WriteBody(w, http.StatusInternalServerError, map[string]interface{}{"message": "Failed to fetch orders"})
		return
	}
	utils.WriteBody(w, http.StatusOK, map[string]interface{}{"orders": list})
}

type trackingRequest struct {
	CourierName string `json:"courierName"`
	TrackingID  string `json:"trackingId"`
}

// Tracking handles POST /order/{orderId}/tracking
func (c *OrderController) Tracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		return
	}
	o, err := c.Orders.AttachTracking(r.Context(), mux.Vars(r)["orderId"], req.CourierName, req.TrackingID)
	switch {
	case errors.Is(err, orders.ErrInvalidRequest):
		utils.WriteBody(w, http.StatusBadRequest, map[string]interface{}{"message": "courierName and trackingId are required"})
	case errors.Is(err, orders.ErrNotFound):
		utils.WriteBody(w, http.StatusNotFound, map[string]interface{}{"message": "Order not found"})
	case err != nil && o != nil:
		// Tracking is saved; only the email failed.
		log.Printf("[order] tracking email for %s failed: %v", o.OrderID, err)
		utils.WriteBody(w, http.StatusInternalServerError, map[string]interface{}{"message": "Failed to send tracking email"})
	case err != nil:
		log.Printf("[order] attach tracking failed: %v", err)
		utils.WriteBody(w, http.StatusInternalServerError, map[string]interface{}{"message": "Failed to save tracking"})
	default:
		utils.WriteBody(w, http.StatusOK, map[string]interface{}{
			"message": "Tracking saved and email sent",
			"order":   o,
		})
	}
}
