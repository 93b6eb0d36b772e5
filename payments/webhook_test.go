package payments

import (
	"context"
	"sync"
	"testing"

	"github.com/sreedevirajkumar/candle/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncRunner struct {
	mu    sync.Mutex
	tasks []string
	errs  []error
}

func (r *syncRunner) Go(task string, fn func(ctx context.Context) error) {
	err := fn(context.Background())
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

type memArchiver struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchiver) Archive(_ context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = body
	return nil
}

func TestWebhookUnknownSessionUpdatesLedgerOnly(t *testing.T) {
	ctx := context.Background()
	svc, records, _ := newTestService(newFakeClock())

	ack, err := svc.Webhook(ctx, WebhookPayload{TransactionID: "T1", Amount: amt(50), Status: "success", SessionID: "S1"}, nil)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "T1", ack.TransactionID)
	assert.Equal(t, "success", ack.Status)
	assert.False(t, ack.SessionLinked)

	rec, err := records.Get(ctx, "T1")
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, VerifiedByWebhook, *rec.VerifiedBy)
	assert.Equal(t, "unknown", *rec.PaymentMode)
}

func TestWebhookInvalidPayload(t *testing.T) {
	svc, records, _ := newTestService(newFakeClock())
	_, err := svc.Webhook(context.Background(), WebhookPayload{TransactionID: "T1", Status: "success"}, nil)
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	_, err = svc.Webhook(context.Background(), WebhookPayload{Amount: amt(50), Status: "success"}, nil)
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	list, err := records.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWebhookCompletesAndFailsSessions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(newFakeClock())

	ok, err := svc.CreateSession(ctx, CreateSessionRequest{OrderID: "ORD-10", Amount: amt(250), PaymentMode: "upi"})
	require.NoError(t, err)
	bad, err := svc.CreateSession(ctx, CreateSessionRequest{OrderID: "ORD-11", Amount: amt(250), PaymentMode: "upi"})
	require.NoError(t, err)

	ack, err := svc.Webhook(ctx, WebhookPayload{TransactionID: "TXN-OK-1", Amount: amt(250), Status: "SUCCESS", SessionID: ok.SessionID}, nil)
	require.NoError(t, err)
	assert.True(t, ack.SessionLinked)
	_, err = svc.Webhook(ctx, WebhookPayload{TransactionID: "TXN-BAD-1", Amount: amt(250), Status: "failed", SessionID: bad.SessionID}, nil)
	require.NoError(t, err)

	got, err := svc.SessionStatus(ctx, ok.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.Status)
	assert.Equal(t, "TXN-OK-1", *got.PaymentReference)
	assert.NotNil(t, got.WebhookReceivedAt)

	got, err = svc.SessionStatus(ctx, bad.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, got.Status)

	rec, err := svc.LookupReference(ctx, "TXN-BAD-1")
	require.NoError(t, err)
	assert.False(t, rec.Verified)
}

func TestWebhookDoesNotReopenCompletedSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(newFakeClock())
	sess, err := svc.CreateSession(ctx, CreateSessionRequest{OrderID: "ORD-12", Amount: amt(90), PaymentMode: "upi"})
	require.NoError(t, err)

	_, err = svc.Webhook(ctx, WebhookPayload{TransactionID: "TXN-12", Amount: amt(90), Status: "success", SessionID: sess.SessionID}, nil)
	require.NoError(t, err)
	_, err = svc.Webhook(ctx, WebhookPayload{TransactionID: "TXN-12", Amount: amt(90), Status: "failed", SessionID: sess.SessionID}, nil)
	require.NoError(t, err)

	got, err := svc.SessionStatus(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.Status)

	rec, err := svc.LookupReference(ctx, "TXN-12")
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, "failed", *rec.WebhookStatus)
	assert.Equal(t, 2, rec.VerificationAttempts)
}

func TestWebhookArchivesRawBody(t *testing.T) {
	clock := newFakeClock()
	archiver := &memArchiver{}
	runner := &syncRunner{}
	svc := NewService(Options{Now: clock.Now, Archiver: archiver, Tasks: runner})

	raw := []byte(`{"transactionId":"T9","amount":10,"status":"success"}`)
	_, err := svc.Webhook(context.Background(), WebhookPayload{TransactionID: "T9", Amount: amt(10), Status: "success"}, raw)
	require.NoError(t, err)

	require.Len(t, runner.tasks, 1)
	assert.NoError(t, runner.errs[0])
	require.Len(t, archiver.objects, 1)
	for key, body := range archiver.objects {
		assert.Contains(t, key, "webhooks/2024-03-01/T9-")
		assert.JSONEq(t, string(raw), string(body))
	}
}
