package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sreedevirajkumar/candle/models"
)

// MemoryRecordStore keeps ledger records for the lifetime of the process.
type MemoryRecordStore struct {
	mu   sync.RWMutex
	data map[string]*models.PaymentRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{data: make(map[string]*models.PaymentRecord)}
}

func (m *MemoryRecordStore) Get(_ context.Context, reference string) (*models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[reference]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryRecordStore) Put(_ context.Context, rec *models.PaymentRecord) error {
	m.mu.Lock()
	m.data[rec.Reference] = rec.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecordStore) Delete(_ context.Context, reference string) error {
	m.mu.Lock()
	delete(m.data, reference)
	m.mu.Unlock()
	return nil
}

// List returns records oldest first.
func (m *MemoryRecordStore) List(_ context.Context) ([]models.PaymentRecord, error) {
	m.mu.RLock()
	out := make([]models.PaymentRecord, 0, len(m.data))
	for _, rec := range m.data {
		out = append(out, *rec.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// MemorySessionStore keeps payment sessions for the lifetime of the process.
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[string]*models.PaymentSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[string]*models.PaymentSession)}
}

func (m *MemorySessionStore) Get(_ context.Context, sessionID string) (*models.PaymentSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Put(_ context.Context, s *models.PaymentSession) error {
	m.mu.Lock()
	m.data[s.SessionID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.data, sessionID)
	m.mu.Unlock()
	return nil
}

// List returns sessions newest first.
func (m *MemorySessionStore) List(_ context.Context) ([]models.PaymentSession, error) {
	m.mu.RLock()
	out := make([]models.PaymentSession, 0, len(m.data))
	for _, s := range m.data {
		out = append(out, *s.Clone())
	}
	m.mu.RUnlock()
	sortSessionsNewestFirst(out)
	return out, nil
}

func (m *MemorySessionStore) ListPendingBefore(_ context.Context, t time.Time) ([]models.PaymentSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PaymentSession
	for _, s := range m.data {
		if s.Status == models.SessionPending && s.ExpiresAt.Before(t) {
			out = append(out, *s.Clone())
		}
	}
	return out, nil
}

func sortSessionsNewestFirst(out []models.PaymentSession) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID > out[j].SessionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}
