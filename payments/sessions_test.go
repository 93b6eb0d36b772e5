package payments

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sreedevirajkumar/candle/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsCreate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewSessions(NewMemorySessionStore(), clock.Now)

	sess, err := s.Create(ctx, CreateSessionRequest{
		OrderID:      "ORD-1",
		Amount:       amt(400),
		PaymentMode:  "upi",
		CustomerInfo: json.RawMessage(`{"name":"Asha"}`),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.SessionID, "SESSION-"))
	assert.Equal(t, models.SessionPending, sess.Status)
	assert.Equal(t, sess.CreatedAt.Add(15*time.Minute), sess.ExpiresAt)
	assert.JSONEq(t, `{"name":"Asha"}`, string(sess.CustomerInfo))

	other, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-1", Amount: amt(400), PaymentMode: "upi"})
	require.NoError(t, err)
	assert.NotEqual(t, sess.SessionID, other.SessionID, "ids stay unique within the same millisecond")
}

func TestSessionsCreateRequiresFields(t *testing.T) {
	s := NewSessions(NewMemorySessionStore(), nil)
	for name, req := range map[string]CreateSessionRequest{
		"order":  {Amount: amt(1), PaymentMode: "upi"},
		"amount": {OrderID: "ORD-1", PaymentMode: "upi"},
		"mode":   {OrderID: "ORD-1", Amount: amt(1)},
	} {
		_, err := s.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, name)
	}
}

func TestSessionsLazyExpiryPersists(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemorySessionStore()
	s := NewSessions(store, clock.Now)

	sess, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-1", Amount: amt(400), PaymentMode: "upi"})
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	got, err := s.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPending, got.Status, "still pending exactly at expiresAt")

	clock.Advance(time.Second)
	got, err = s.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, got.Status)

	stored, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, stored.Status)
}

func TestSessionsTransitionIsTerminalSticky(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(NewMemorySessionStore(), newFakeClock().Now)
	sess, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-1", Amount: amt(400), PaymentMode: "upi"})
	require.NoError(t, err)

	require.NoError(t, s.Transition(ctx, sess.SessionID, models.SessionCompleted))
	require.NoError(t, s.Transition(ctx, sess.SessionID, models.SessionFailed))
	require.NoError(t, s.Transition(ctx, sess.SessionID, models.SessionExpired))

	got, err := s.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.Status)

	assert.NoError(t, s.Transition(ctx, "SESSION-unknown", models.SessionCompleted))
	assert.ErrorIs(t, s.Transition(ctx, sess.SessionID, models.SessionPending), ErrInvalidRequest)
}

func TestSessionsLinkReference(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(NewMemorySessionStore(), newFakeClock().Now)
	sess, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-1", Amount: amt(400), PaymentMode: "upi"})
	require.NoError(t, err)

	require.NoError(t, s.LinkReference(ctx, sess.SessionID, "UPI123456789"))
	require.NoError(t, s.LinkReference(ctx, "SESSION-unknown", "UPI123456789"))

	got, err := s.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.PaymentReference)
	assert.Equal(t, "UPI123456789", *got.PaymentReference)
	assert.Equal(t, 1, got.VerificationAttempts)
}

func TestSessionsSweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewSessions(NewMemorySessionStore(), clock.Now)

	stale, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-1", Amount: amt(1), PaymentMode: "upi"})
	require.NoError(t, err)
	done, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-2", Amount: amt(1), PaymentMode: "upi"})
	require.NoError(t, err)
	require.NoError(t, s.Transition(ctx, done.SessionID, models.SessionCompleted))

	clock.Advance(10 * time.Minute)
	fresh, err := s.Create(ctx, CreateSessionRequest{OrderID: "ORD-3", Amount: amt(1), PaymentMode: "upi"})
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	n, err := s.SweepExpired(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.SweepExpired(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for id, want := range map[string]string{
		stale.SessionID: models.SessionExpired,
		done.SessionID:  models.SessionCompleted,
		fresh.SessionID: models.SessionPending,
	} {
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}
}
