package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CartItem struct {
	ProductID   int             `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Flavor      string          `json:"flavor,omitempty"`
}

type Order struct {
	ID                  uint                          `gorm:"primaryKey" json:"-"`
	OrderID             string                        `gorm:"type:varchar(191);not null;uniqueIndex" json:"orderId"`
	Name                string                        `gorm:"type:varchar(191);not null" json:"name"`
	Phone               string                        `gorm:"type:varchar(32);not null" json:"phone"`
	Email               string                        `gorm:"type:varchar(191);not null" json:"email"`
	Address             string                        `gorm:"type:text;not null" json:"address"`
	PaymentMode         string                        `gorm:"type:varchar(32);not null" json:"paymentMode"`
	PaymentReference    *string                       `gorm:"type:varchar(191)" json:"paymentReference,omitempty"`
	PaymentVerified     bool                          `gorm:"not null;default:false" json:"paymentVerified"`
	CartItems           datatypes.JSONSlice[CartItem] `json:"cartItems"`
	TotalAmount         decimal.Decimal               `gorm:"type:decimal(15,2);not null;default:0" json:"totalAmount"`
	OrderDate           time.Time                     `gorm:"not null;index" json:"orderDate"`
	CourierName         *string                       `gorm:"type:varchar(100)" json:"courierName,omitempty"`
	TrackingID          *string                       `gorm:"type:varchar(100)" json:"trackingId,omitempty"`
	TrackingEmailSentAt *time.Time                    `json:"trackingEmailSentAt,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.PaymentReference = cloneString(o.PaymentReference)
	c.CourierName = cloneString(o.CourierName)
	c.TrackingID = cloneString(o.TrackingID)
	c.TrackingEmailSentAt = cloneTime(o.TrackingEmailSentAt)
	if o.CartItems != nil {
		c.CartItems = append(datatypes.JSONSlice[CartItem](nil), o.CartItems...)
	}
	return &c
}
