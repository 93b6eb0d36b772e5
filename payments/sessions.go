package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sreedevirajkumar/candle/models"
	"github.com/sreedevirajkumar/candle/utils"
	"gorm.io/datatypes"
)

// SessionTTL is how long a pending session waits for a payment reference.
const SessionTTL = 15 * time.Minute

type CreateSessionRequest struct {
	OrderID      string           `json:"orderId"`
	Amount       *decimal.Decimal `json:"amount"`
	PaymentMode  string           `json:"paymentMode"`
	CustomerInfo json.RawMessage  `json:"customerInfo,omitempty"`
}

// Sessions owns payment sessions and their lifecycle. Expiry is applied when a
// session is read and by SweepExpired, never by a timer.
type Sessions struct {
	store SessionStore
	now   func() time.Time
}

func NewSessions(store SessionStore, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{store: store, now: now}
}

func (s *Sessions) Create(ctx context.Context, req CreateSessionRequest) (*models.PaymentSession, error) {
	if strings.TrimSpace(req.OrderID) == "" || amountInvalid(req.Amount) || strings.TrimSpace(req.PaymentMode) == "" {
		return nil, fmt.Errorf("%w: order ID, amount, and payment mode are required", ErrInvalidRequest)
	}
	info := datatypes.JSON("{}")
	if len(req.CustomerInfo) > 0 && string(req.CustomerInfo) != "null" {
		info = datatypes.JSON(req.CustomerInfo)
	}
	now := s.now().UTC()
	sess := &models.PaymentSession{
		SessionID:    utils.GenerateSessionID(now),
		OrderID:      req.OrderID,
		Amount:       *req.Amount,
		PaymentMode:  req.PaymentMode,
		CustomerInfo: info,
		Status:       models.SessionPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(SessionTTL),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session, expiring it first when it is pending past its
// deadline.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: payment session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionPending && s.now().After(sess.ExpiresAt) {
		sess.Status = models.SessionExpired
		if err := s.store.Put(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// LinkReference points the session at reference and counts the attempt.
// Unknown sessions are ignored.
func (s *Sessions) LinkReference(ctx context.Context, sessionID, reference string) error {
	return s.update(ctx, sessionID, func(sess *models.PaymentSession) bool {
		sess.PaymentReference = &reference
		sess.VerificationAttempts++
		return true
	})
}

// Transition moves a pending session to status. Sessions that already left
// pending, and unknown sessions, are left alone.
func (s *Sessions) Transition(ctx context.Context, sessionID, status string) error {
	switch status {
	case models.SessionCompleted, models.SessionFailed, models.SessionExpired:
	default:
		return fmt.Errorf("%w: unknown session status %q", ErrInvalidRequest, status)
	}
	return s.update(ctx, sessionID, func(sess *models.PaymentSession) bool {
		if sess.IsTerminal() {
			return false
		}
		sess.Status = status
		return true
	})
}

// SweepExpired expires every pending session past its deadline and returns
// how many were changed.
func (s *Sessions) SweepExpired(ctx context.Context, lock func(ctx context.Context, sessionID string) (func(), error)) (int, error) {
	now := s.now()
	stale, err := s.store.ListPendingBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range stale {
		id := stale[i].SessionID
		unlock := func() {}
		if lock != nil {
			if unlock, err = lock(ctx, id); err != nil {
				return count, err
			}
		}
		// re-read under the lock, a concurrent verify may have completed it
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			unlock()
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		if sess.Status == models.SessionPending && sess.ExpiresAt.Before(now) {
			sess.Status = models.SessionExpired
			if err := s.store.Put(ctx, sess); err != nil {
				unlock()
				return count, err
			}
			count++
		}
		unlock()
	}
	if count > 0 {
		log.Printf("[payment] expired %d pending sessions", count)
	}
	return count, nil
}

// List returns every session, expiring pending ones past their deadline
// the same way Get does.
func (s *Sessions) List(ctx context.Context) ([]models.PaymentSession, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		sess := &list[i]
		if sess.Status != models.SessionPending || !now.After(sess.ExpiresAt) {
			continue
		}
		sess.Status = models.SessionExpired
		if err := s.store.Put(ctx, sess); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// update applies fn to a session read through Get, so lazy expiry runs first.
// fn returns false when nothing changed.
func (s *Sessions) update(ctx context.Context, sessionID string, fn func(*models.PaymentSession) bool) error {
	if sessionID == "" {
		return nil
	}
	sess, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !fn(sess) {
		return nil
	}
	return s.store.Put(ctx, sess)
}
