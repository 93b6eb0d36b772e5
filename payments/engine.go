package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sreedevirajkumar/candle/models"
)

// TestReferencePrefix marks references issued by GenerateTestReference.
const TestReferencePrefix = "PAY"

const minPlausibleReferenceLen = 8

type VerifyRequest struct {
	PaymentReference string           `json:"paymentReference"`
	Amount           *decimal.Decimal `json:"amount"`
	PaymentMode      string           `json:"paymentMode,omitempty"`
	SessionID        string           `json:"sessionId,omitempty"`
}

// VerificationResult is the outcome of a verification attempt. Err carries
// the failure kind (ErrInvalidRequest, ErrNotFound, ErrAmountMismatch) and is
// nil for verified and auto-added outcomes.
type VerificationResult struct {
	Verified  bool
	AutoAdded bool
	Message   string
	Err       error
	Record    *models.PaymentRecord
	Expected  *decimal.Decimal
	Supplied  *decimal.Decimal
}

// Engine reconciles claimed references against the ledger and advances the
// linked session.
type Engine struct {
	ledger   *Ledger
	sessions *Sessions
}

func NewEngine(ledger *Ledger, sessions *Sessions) *Engine {
	return &Engine{ledger: ledger, sessions: sessions}
}

// LooksPlausible reports whether an unknown reference is shaped like a real
// transaction id worth holding for manual verification.
func LooksPlausible(reference string) bool {
	return len(reference) >= minPlausibleReferenceLen && !strings.HasPrefix(reference, TestReferencePrefix)
}

// Verify never fails for domain reasons; those are reported in the result.
// The returned error is reserved for storage failures.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*VerificationResult, error) {
	ref := strings.TrimSpace(req.PaymentReference)
	if ref == "" || amountInvalid(req.Amount) {
		return &VerificationResult{
			Message: "Payment reference and amount are required",
			Err:     ErrInvalidRequest,
		}, nil
	}
	amount := *req.Amount

	rec, err := e.ledger.Lookup(ctx, ref)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if rec == nil {
		if !LooksPlausible(ref) {
			return &VerificationResult{Message: "Payment reference not found", Err: ErrNotFound}, nil
		}
		return e.autoRegister(ctx, ref, amount, req)
	}

	if !rec.Amount.Equal(amount) {
		return &VerificationResult{
			Message:  fmt.Sprintf("Amount mismatch. Expected ₹%s, got ₹%s", rec.Amount.String(), amount.String()),
			Err:      ErrAmountMismatch,
			Record:   rec,
			Expected: &rec.Amount,
			Supplied: &amount,
		}, nil
	}

	if rec.Verified {
		if err := e.completeSession(ctx, req.SessionID, ref, false); err != nil {
			return nil, err
		}
		return &VerificationResult{Verified: true, Message: "Payment already verified", Record: rec}, nil
	}

	rec, err = e.ledger.MarkVerified(ctx, ref, VerifiedBySystem)
	if err != nil {
		return nil, err
	}
	if err := e.completeSession(ctx, req.SessionID, ref, true); err != nil {
		return nil, err
	}
	return &VerificationResult{Verified: true, Message: "Payment verified successfully", Record: rec}, nil
}

func (e *Engine) autoRegister(ctx context.Context, ref string, amount decimal.Decimal, req VerifyRequest) (*VerificationResult, error) {
	rec, err := e.ledger.Register(ctx, ref, &amount, req.PaymentMode)
	if err != nil {
		return nil, err
	}
	rec.AutoAdded = true
	rec.VerificationAttempts = 1
	rec.SessionID = optional(req.SessionID)
	if err := e.ledger.put(ctx, rec); err != nil {
		return nil, err
	}
	if err := e.sessions.LinkReference(ctx, req.SessionID, ref); err != nil {
		return nil, err
	}
	return &VerificationResult{
		AutoAdded: true,
		Message:   "Payment reference registered, pending manual verification. Please contact admin to verify this payment.",
		Record:    rec,
	}, nil
}

// completeSession points a supplied session at ref and completes it. When
// countAttempt is false the session counters are left alone.
func (e *Engine) completeSession(ctx context.Context, sessionID, ref string, countAttempt bool) error {
	if sessionID == "" {
		return nil
	}
	if countAttempt {
		if err := e.sessions.LinkReference(ctx, sessionID, ref); err != nil {
			return err
		}
	} else {
		if err := e.sessions.update(ctx, sessionID, func(s *models.PaymentSession) bool {
			if s.IsTerminal() {
				return false
			}
			s.PaymentReference = &ref
			return true
		}); err != nil {
			return err
		}
	}
	return e.sessions.Transition(ctx, sessionID, models.SessionCompleted)
}
