package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	SessionPending   = "pending"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
	SessionExpired   = "expired"
)

type PaymentSession struct {
	SessionID            string          `gorm:"type:varchar(191);primaryKey" json:"sessionId"`
	OrderID              string          `gorm:"type:varchar(191);not null;index" json:"orderId"`
	Amount               decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	PaymentMode          string          `gorm:"type:varchar(32);not null" json:"paymentMode"`
	CustomerInfo         datatypes.JSON  `json:"customerInfo,omitempty"`
	Status               string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt            time.Time       `json:"createdAt"`
	ExpiresAt            time.Time       `gorm:"not null;index" json:"expiresAt"`
	VerificationAttempts int             `gorm:"not null;default:0" json:"verificationAttempts"`
	PaymentReference     *string         `gorm:"type:varchar(191)" json:"paymentReference"`
	WebhookReceivedAt    *time.Time      `json:"webhookReceivedAt"`
}

func (PaymentSession) TableName() string {
	return "payment_sessions"
}

// IsTerminal reports whether the session has left pending.
func (s *PaymentSession) IsTerminal() bool {
	return s.Status != SessionPending
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (s *PaymentSession) Clone() *PaymentSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.CustomerInfo != nil {
		c.CustomerInfo = append(datatypes.JSON(nil), s.CustomerInfo...)
	}
	c.PaymentReference = cloneString(s.PaymentReference)
	c.WebhookReceivedAt = cloneTime(s.WebhookReceivedAt)
	return &c
}
