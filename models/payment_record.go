package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, the storefront compares them numerically.
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentRecord struct {
	Reference            string          `gorm:"type:varchar(191);primaryKey" json:"reference"`
	Amount               decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Verified             bool            `gorm:"not null;default:false" json:"verified"`
	Timestamp            time.Time       `gorm:"not null" json:"timestamp"`
	VerifiedAt           *time.Time      `json:"verifiedAt,omitempty"`
	VerifiedBy           *string         `gorm:"type:varchar(16)" json:"verifiedBy,omitempty"`
	PaymentMode          *string         `gorm:"type:varchar(32)" json:"paymentMode,omitempty"`
	OrderID              *string         `gorm:"type:varchar(191)" json:"orderId,omitempty"`
	SessionID            *string         `gorm:"type:varchar(191);index" json:"sessionId,omitempty"`
	AutoAdded            bool            `gorm:"not null;default:false" json:"autoAdded"`
	WebhookStatus        *string         `gorm:"type:varchar(32)" json:"webhookStatus,omitempty"`
	WebhookReceivedAt    *time.Time      `json:"webhookReceivedAt,omitempty"`
	VerificationAttempts int             `gorm:"not null;default:0" json:"verificationAttempts"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.VerifiedAt = cloneTime(r.VerifiedAt)
	c.VerifiedBy = cloneString(r.VerifiedBy)
	c.PaymentMode = cloneString(r.PaymentMode)
	c.OrderID = cloneString(r.OrderID)
	c.SessionID = cloneString(r.SessionID)
	c.WebhookStatus = cloneString(r.WebhookStatus)
	c.WebhookReceivedAt = cloneTime(r.WebhookReceivedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
