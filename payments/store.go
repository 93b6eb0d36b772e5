package payments

import (
	"context"
	"time"

	"github.com/sreedevirajkumar/candle/models"
)

// RecordStore persists ledger records keyed by payment reference. Get returns
// ErrNotFound for an unknown reference. Implementations hand out copies.
type RecordStore interface {
	Get(ctx context.Context, reference string) (*models.PaymentRecord, error)
	Put(ctx context.Context, rec *models.PaymentRecord) error
	Delete(ctx context.Context, reference string) error
	List(ctx context.Context) ([]models.PaymentRecord, error)
}

// SessionStore persists payment sessions keyed by session id. Get returns
// ErrNotFound for an unknown id. Implementations hand out copies.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	Put(ctx context.Context, s *models.PaymentSession) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]models.PaymentSession, error)
	// ListPendingBefore returns pending sessions whose expiry is strictly before t.
	ListPendingBefore(ctx context.Context, t time.Time) ([]models.PaymentSession, error)
}
