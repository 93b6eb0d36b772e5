package controllers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreedevirajkumar/candle/orders"
	"github.com/sreedevirajkumar/candle/payments"
)

func newOrderRouter(t *testing.T) *mux.Router {
	t.Helper()
	pay := payments.NewService(payments.Options{})
	require.NoError(t, pay.Seed(context.Background()))
	oc := NewOrderController(orders.NewService(orders.Options{Payments: pay}))

	r := mux.NewRouter()
	r.HandleFunc("/order", oc.Place).Methods(http.MethodPost)
	r.HandleFunc("/order", oc.List).Methods(http.MethodGet)
	r.HandleFunc("/order/{orderId}/tracking", oc.Tracking).Methods(http.MethodPost)
	return r
}

const validOrder = `{
	"name": "Asha",
	"phone": "+91 98765 43210",
	"email": "asha@example.com",
	"address": "12 MG Road, Bengaluru",
	"paymentMode": "upi",
	"paymentReference": "PAY12345678",
	"cartItems": [{"productId": 1, "productName": "Lavender Jar", "price": 200, "quantity": 2}],
	"totalAmount": 400
}`

func TestPlaceOrder(t *testing.T) {
	r := newOrderRouter(t)

	code, body := do(t, r, http.MethodPost, "/order", `{"name":"Asha"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing required fields", body["message"])

	code, body = do(t, r, http.MethodPost, "/order", validOrder)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Order received and emails scheduled", body["message"])
	orderID := body["orderId"].(string)
	assert.True(t, strings.HasPrefix(orderID, "ORD-"))

	code, body = do(t, r, http.MethodGet, "/order", "")
	require.Equal(t, http.StatusOK, code)
	list := body["orders"].([]interface{})
	require.Len(t, list, 1)
	o := list[0].(map[string]interface{})
	assert.Equal(t, orderID, o["orderId"])
	assert.Equal(t, true, o["paymentVerified"])
	assert.Equal(t, float64(400), o["totalAmount"])
}

func TestAttachTracking(t *testing.T) {
	r := newOrderRouter(t)
	_, body := do(t, r, http.MethodPost, "/order", validOrder)
	orderID := body["orderId"].(string)

	code, body := do(t, r, http.MethodPost, "/order/"+orderID+"/tracking", `{"courierName":"BlueDart"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "courierName and trackingId are required", body["message"])

	code, body = do(t, r, http.MethodPost, "/order/ORD-0/tracking", `{"courierName":"BlueDart","trackingId":"BD123"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Order not found", body["message"])

	code, body = do(t, r, http.MethodPost, "/order/"+orderID+"/tracking", `{"courierName":"BlueDart","trackingId":"BD123"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Tracking saved and email sent", body["message"])
	o := body["order"].(map[string]interface{})
	assert.Equal(t, "BD123", o["trackingId"])
	assert.Equal(t, "BlueDart", o["courierName"])
}
