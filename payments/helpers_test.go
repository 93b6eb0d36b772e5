package payments

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func amt(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func newTestService(clock *fakeClock) (*Service, *MemoryRecordStore, *MemorySessionStore) {
	records := NewMemoryRecordStore()
	sessions := NewMemorySessionStore()
	svc := NewService(Options{Records: records, Sessions: sessions, Now: clock.Now})
	return svc, records, sessions
}

func mustDecimal(t interface{ Fatalf(string, ...any) }, s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return &d
}
