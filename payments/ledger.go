package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sreedevirajkumar/candle/models"
)

const (
	VerifiedByAdmin   = "admin"
	VerifiedBySystem  = "system"
	VerifiedByWebhook = "webhook"
)

// WebhookPayload is a provider notification as received on the webhook endpoint.
type WebhookPayload struct {
	TransactionID string           `json:"transactionId"`
	Amount        *decimal.Decimal `json:"amount"`
	Status        string           `json:"status"`
	PaymentMode   string           `json:"paymentMode,omitempty"`
	OrderID       string           `json:"orderId,omitempty"`
	SessionID     string           `json:"sessionId,omitempty"`
	Timestamp     *time.Time       `json:"timestamp,omitempty"`
}

// Succeeded reports whether the provider status means funds were received.
func (p WebhookPayload) Succeeded() bool {
	return isSuccessStatus(p.Status)
}

func isSuccessStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "completed":
		return true
	}
	return false
}

// normalize trims the identifiers so webhook records share keys with verify.
func (p *WebhookPayload) normalize() {
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	p.SessionID = strings.TrimSpace(p.SessionID)
	p.OrderID = strings.TrimSpace(p.OrderID)
}

func (p WebhookPayload) validate() error {
	var missing []string
	if strings.TrimSpace(p.TransactionID) == "" {
		missing = append(missing, "transactionId")
	}
	if amountInvalid(p.Amount) {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(p.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidWebhook, strings.Join(missing, ", "))
	}
	return nil
}

// Ledger is the authoritative mapping from payment reference to record.
type Ledger struct {
	store RecordStore
	now   func() time.Time
}

func NewLedger(store RecordStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// Register creates an unverified record. It fails with ErrDuplicateReference
// when the reference is already known.
func (l *Ledger) Register(ctx context.Context, reference string, amount *decimal.Decimal, mode string) (*models.PaymentRecord, error) {
	if strings.TrimSpace(reference) == "" || amountInvalid(amount) {
		return nil, fmt.Errorf("%w: payment reference and amount are required", ErrInvalidRequest)
	}
	if _, err := l.store.Get(ctx, reference); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, reference)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if mode == "" {
		mode = "unknown"
	}
	rec := &models.PaymentRecord{
		Reference:   reference,
		Amount:      *amount,
		Timestamp:   l.now().UTC(),
		PaymentMode: &mode,
	}
	if err := l.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Lookup returns the record for reference or ErrNotFound.
func (l *Ledger) Lookup(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	rec, err := l.store.Get(ctx, reference)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: payment reference %s", ErrNotFound, reference)
	}
	return rec, err
}

// MarkVerified flips a record to verified. Already verified records are
// returned unchanged.
func (l *Ledger) MarkVerified(ctx context.Context, reference, by string) (*models.PaymentRecord, error) {
	rec, err := l.Lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	if rec.Verified {
		return rec, nil
	}
	now := l.now().UTC()
	rec.Verified = true
	rec.VerifiedAt = &now
	rec.VerifiedBy = &by
	rec.VerificationAttempts++
	if err := l.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertFromWebhook records a provider notification as ground truth for the
// reference. A record that is already verified stays verified.
func (l *Ledger) UpsertFromWebhook(ctx context.Context, p WebhookPayload) (*models.PaymentRecord, error) {
	p.normalize()
	if err := p.validate(); err != nil {
		return nil, err
	}
	prev, err := l.store.Get(ctx, p.TransactionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := l.now().UTC()
	mode := p.PaymentMode
	if mode == "" {
		mode = "unknown"
	}
	status := p.Status
	ts := now
	if p.Timestamp != nil {
		ts = p.Timestamp.UTC()
	}
	rec := &models.PaymentRecord{
		Reference:         p.TransactionID,
		Amount:            *p.Amount,
		Verified:          p.Succeeded(),
		Timestamp:         ts,
		PaymentMode:       &mode,
		OrderID:           optional(p.OrderID),
		SessionID:         optional(p.SessionID),
		WebhookStatus:     &status,
		WebhookReceivedAt: &now,
	}
	if prev != nil {
		rec.VerificationAttempts = prev.VerificationAttempts
		if prev.Verified {
			rec.Verified = true
			rec.VerifiedAt = prev.VerifiedAt
			rec.VerifiedBy = prev.VerifiedBy
		}
	}
	rec.VerificationAttempts++
	if rec.Verified && rec.VerifiedAt == nil {
		by := VerifiedByWebhook
		rec.VerifiedAt = &now
		rec.VerifiedBy = &by
	}
	if err := l.store.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *Ledger) List(ctx context.Context) ([]models.PaymentRecord, error) {
	return l.store.List(ctx)
}

func (l *Ledger) put(ctx context.Context, rec *models.PaymentRecord) error {
	return l.store.Put(ctx, rec)
}

// amountInvalid rejects missing, non-positive and sub-paisa amounts. Stored
// amounts are decimal(15,2), so anything finer would not round-trip.
func amountInvalid(a *decimal.Decimal) bool {
	return a == nil || a.Sign() <= 0 || !a.Equal(a.Round(2))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
