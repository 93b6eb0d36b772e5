package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sreedevirajkumar/candle/models"
	"github.com/sreedevirajkumar/candle/utils"
)

type Options struct {
	Records  RecordStore
	Sessions SessionStore
	Locker   Locker
	Now      func() time.Time
	Archiver Archiver
	Tasks    TaskRunner
}

// Service exposes the payment operations as atomic units. Every operation
// takes the reference lock before the session lock.
type Service struct {
	locker   Locker
	ledger   *Ledger
	sessions *Sessions
	engine   *Engine
	webhooks *WebhookIngestor
	now      func() time.Time
}

func NewService(opts Options) *Service {
	if opts.Records == nil {
		opts.Records = NewMemoryRecordStore()
	}
	if opts.Sessions == nil {
		opts.Sessions = NewMemorySessionStore()
	}
	if opts.Locker == nil {
		opts.Locker = NewMemoryLocker()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ledger := NewLedger(opts.Records, opts.Now)
	sessions := NewSessions(opts.Sessions, opts.Now)
	webhooks := NewWebhookIngestor(ledger, sessions, opts.Now)
	if opts.Archiver != nil && opts.Tasks != nil {
		webhooks.WithArchive(opts.Archiver, opts.Tasks)
	}
	return &Service{
		locker:   opts.Locker,
		ledger:   ledger,
		sessions: sessions,
		engine:   NewEngine(ledger, sessions),
		webhooks: webhooks,
		now:      opts.Now,
	}
}

func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.PaymentSession, error) {
	sess, err := s.sessions.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("[payment] session %s created for order %s amount=%s mode=%s", sess.SessionID, sess.OrderID, sess.Amount, sess.PaymentMode)
	return sess, nil
}

func (s *Service) SessionStatus(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	unlock, err := lockAll(ctx, s.locker, sessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.sessions.Get(ctx, sessionID)
}

func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerificationResult, error) {
	unlock, err := lockAll(ctx, s.locker, referenceKey(strings.TrimSpace(req.PaymentReference)), sessionKey(req.SessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	res, err := s.engine.Verify(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("[payment] verify ref=%s session=%s verified=%t autoAdded=%t err=%v", req.PaymentReference, req.SessionID, res.Verified, res.AutoAdded, res.Err)
	return res, nil
}

func (s *Service) Webhook(ctx context.Context, p WebhookPayload, raw []byte) (*Ack, error) {
	p.normalize()
	log.Printf("[webhook] received transaction=%s amount=%v status=%s mode=%s order=%s session=%s",
		p.TransactionID, p.Amount, p.Status, p.PaymentMode, p.OrderID, p.SessionID)
	unlock, err := lockAll(ctx, s.locker, referenceKey(p.TransactionID), sessionKey(p.SessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.webhooks.Ingest(ctx, p, raw)
}

// AdminVerify marks a reference verified without checking the amount.
func (s *Service) AdminVerify(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ErrInvalidRequest)
	}
	unlock, err := lockAll(ctx, s.locker, referenceKey(reference))
	if err != nil {
		return nil, err
	}
	defer unlock()
	rec, err := s.ledger.MarkVerified(ctx, reference, VerifiedByAdmin)
	if err != nil {
		return nil, err
	}
	log.Printf("[payment] reference %s verified by %s", reference, derefOr(rec.VerifiedBy, VerifiedByAdmin))
	return rec, nil
}

// GenerateTestReference issues a PAY-prefixed reference registered unverified.
func (s *Service) GenerateTestReference(ctx context.Context, amount *decimal.Decimal) (*models.PaymentRecord, error) {
	if amountInvalid(amount) {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidRequest)
	}
	now := s.now()
	for i := 0; i < 10; i++ {
		ref := utils.GenerateTestReference(TestReferencePrefix, now.Add(time.Duration(i)*time.Millisecond))
		rec, err := s.register(ctx, ref, amount, "")
		if errors.Is(err, ErrDuplicateReference) {
			continue
		}
		return rec, err
	}
	return nil, fmt.Errorf("%w: could not allocate a test reference", ErrDuplicateReference)
}

// AddReference explicitly registers a real transaction reference.
func (s *Service) AddReference(ctx context.Context, reference string, amount *decimal.Decimal, mode string) (*models.PaymentRecord, error) {
	return s.register(ctx, strings.TrimSpace(reference), amount, mode)
}

func (s *Service) register(ctx context.Context, reference string, amount *decimal.Decimal, mode string) (*models.PaymentRecord, error) {
	unlock, err := lockAll(ctx, s.locker, referenceKey(reference))
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.ledger.Register(ctx, reference, amount, mode)
}

// LookupReference is a read-only ledger query.
func (s *Service) LookupReference(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	return s.ledger.Lookup(ctx, reference)
}

func (s *Service) ListSessions(ctx context.Context) ([]models.PaymentSession, error) {
	return s.sessions.List(ctx)
}

func (s *Service) ListReferences(ctx context.Context) ([]models.PaymentRecord, error) {
	return s.ledger.List(ctx)
}

// Cleanup expires stale pending sessions.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.sessions.SweepExpired(ctx, func(ctx context.Context, id string) (func(), error) {
		return lockAll(ctx, s.locker, sessionKey(id))
	})
}

type seedReference struct {
	reference string
	amount    int64
	verified  bool
}

var defaultSeed = []seedReference{
	{"PAY12345678", 400, true},
	{"PAY87654321", 760, true},
	{"CICAgOiS6u7hEQ", 180, false},
}

// Seed pre-registers the storefront's known references. Existing references
// are left untouched.
func (s *Service) Seed(ctx context.Context) error {
	for _, sr := range defaultSeed {
		amount := decimal.NewFromInt(sr.amount)
		rec, err := s.register(ctx, sr.reference, &amount, "")
		if errors.Is(err, ErrDuplicateReference) {
			continue
		}
		if err != nil {
			return err
		}
		if sr.verified {
			rec.Verified = true
			if err := s.ledger.put(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
