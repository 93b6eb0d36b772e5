package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sreedevirajkumar/candle/models"
)

// Archiver stores a raw webhook body under key.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// TaskRunner runs fire-and-forget work after a request has committed.
type TaskRunner interface {
	Go(task string, fn func(ctx context.Context) error)
}

type Ack struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	// SessionLinked is false when the payload named no session or an unknown one.
	SessionLinked bool `json:"-"`
}

// WebhookIngestor records provider notifications in the ledger and advances
// the session they name, when it exists.
type WebhookIngestor struct {
	ledger   *Ledger
	sessions *Sessions
	archiver Archiver
	tasks    TaskRunner
	now      func() time.Time
}

func NewWebhookIngestor(ledger *Ledger, sessions *Sessions, now func() time.Time) *WebhookIngestor {
	if now == nil {
		now = time.Now
	}
	return &WebhookIngestor{ledger: ledger, sessions: sessions, now: now}
}

// WithArchive enables asynchronous archival of raw payloads.
func (w *WebhookIngestor) WithArchive(a Archiver, tasks TaskRunner) *WebhookIngestor {
	w.archiver = a
	w.tasks = tasks
	return w
}

func (w *WebhookIngestor) Ingest(ctx context.Context, p WebhookPayload, raw []byte) (*Ack, error) {
	p.normalize()
	if _, err := w.ledger.UpsertFromWebhook(ctx, p); err != nil {
		return nil, err
	}

	linked := false
	if p.SessionID != "" {
		sess, err := w.sessions.Get(ctx, p.SessionID)
		switch {
		case errors.Is(err, ErrNotFound):
			log.Printf("[webhook] session %s not found for transaction %s, ledger updated only", p.SessionID, p.TransactionID)
		case err != nil:
			return nil, err
		default:
			if err := w.advanceSession(ctx, sess, p); err != nil {
				return nil, err
			}
			linked = true
		}
	}

	w.archive(p, raw)

	return &Ack{
		Success:       true,
		Message:       "Webhook processed successfully",
		TransactionID: p.TransactionID,
		Status:        p.Status,
		SessionLinked: linked,
	}, nil
}

func (w *WebhookIngestor) advanceSession(ctx context.Context, sess *models.PaymentSession, p WebhookPayload) error {
	if err := w.sessions.LinkReference(ctx, sess.SessionID, p.TransactionID); err != nil {
		return err
	}
	now := w.now().UTC()
	if err := w.sessions.update(ctx, sess.SessionID, func(s *models.PaymentSession) bool {
		s.WebhookReceivedAt = &now
		return true
	}); err != nil {
		return err
	}
	status := models.SessionFailed
	if p.Succeeded() {
		status = models.SessionCompleted
	}
	return w.sessions.Transition(ctx, sess.SessionID, status)
}

func (w *WebhookIngestor) archive(p WebhookPayload, raw []byte) {
	if w.archiver == nil || w.tasks == nil || len(raw) == 0 {
		return
	}
	key := fmt.Sprintf("webhooks/%s/%s-%d.json", w.now().UTC().Format("2006-01-02"), p.TransactionID, w.now().UnixNano())
	body := append([]byte(nil), raw...)
	w.tasks.Go("archive webhook "+p.TransactionID, func(ctx context.Context) error {
		return w.archiver.Archive(ctx, key, body)
	})
}
