package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreedevirajkumar/candle/utils"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestIPRateLimiterUsesVerifyLimit(t *testing.T) {
	l := NewIPRateLimiter(5, 1, time.Minute, nil)
	defer l.Stop()
	h := l.Middleware(okHandler)

	hit := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "203.0.113.9:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("/api/payment/verify").Code)
	rec := hit("/api/payment/verify")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit("/api/payment/create-session").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit("/api/payment/create-session").Code)
}

func TestWebhookLimiterWhitelist(t *testing.T) {
	l := NewWebhookLimiter(1, time.Minute, []string{"10.0.0.1"}, nil)
	h := l.Middleware(okHandler)

	hit := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000"))
	}
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:5000"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.2:5000"))
}

func TestSlidingWindowSweepDropsStaleKeys(t *testing.T) {
	s := newSlidingWindow(time.Second)
	now := time.Now().UnixNano()
	s.hit("a", now)
	s.sweep(now + int64(2*time.Second))
	assert.Empty(t, s.state)
}

func TestLockoutSchedule(t *testing.T) {
	assert.Equal(t, time.Duration(0), lockoutFor(2))
	assert.Equal(t, time.Minute, lockoutFor(3))
	assert.Equal(t, 5*time.Minute, lockoutFor(4))
	assert.Equal(t, 15*time.Minute, lockoutFor(5))
	assert.Equal(t, 30*time.Minute, lockoutFor(9))
}

func TestLoginGuardInMemory(t *testing.T) {
	ctx := context.Background()
	g := NewLoginGuard(nil)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	g.Fail(ctx, "ip")
	g.Fail(ctx, "ip")
	locked, _ := g.Locked(ctx, "ip")
	assert.False(t, locked)

	g.Fail(ctx, "ip")
	locked, left := g.Locked(ctx, "ip")
	assert.True(t, locked)
	assert.Equal(t, time.Minute, left)

	now = now.Add(61 * time.Second)
	locked, _ = g.Locked(ctx, "ip")
	assert.False(t, locked)

	g.Fail(ctx, "ip")
	_, left = g.Locked(ctx, "ip")
	assert.Equal(t, 5*time.Minute, left)

	g.Reset(ctx, "ip")
	locked, _ = g.Locked(ctx, "ip")
	assert.False(t, locked)
}

func TestAdminAuth(t *testing.T) {
	tokens := utils.NewTokenManager("middleware-test-secret-012", "", "", time.Hour, nil)
	var seen string
	h := AdminOrCronKey(tokens, "cron")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := utils.AdminClaims(r); ok {
			seen, _ = c["username"].(string)
		}
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(header, value string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/payment/cleanup", nil)
		if header != "" {
			req.Header.Set(header, value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve("", ""))
	assert.Equal(t, http.StatusUnauthorized, serve("Authorization", "Bearer garbage"))
	assert.Equal(t, http.StatusOK, serve("X-CRON-KEY", "cron"))
	assert.Empty(t, seen)

	userTok, err := tokens.Generate("shopper", "user")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve("Authorization", "Bearer "+userTok))

	adminTok, err := tokens.Generate("admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve("Authorization", "Bearer "+adminTok))
	assert.Equal(t, "admin", seen)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name" validate:"required"`
	}

	decode := func(ct, body string, max int64) (int, error) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		if max > 0 {
			req.Body = http.MaxBytesReader(rec, req.Body, max)
		}
		err := ValidateJSON(rec, req, &dst)
		return rec.Code, err
	}

	code, err := decode("application/json; charset=utf-8", `{"name":"x","extra":1}`, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	_, err = decode("", `{"name":"x"}`, 0)
	assert.NoError(t, err)

	code, err = decode("text/plain", `{"name":"x"}`, 0)
	assert.ErrorIs(t, err, ErrBadBody)
	assert.Equal(t, http.StatusUnsupportedMediaType, code)

	code, _ = decode("application/json", `{"name":`, 0)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = decode("application/json", `{"name":"`+strings.Repeat("a", 64)+`"}`, 16)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	dst.Name = ""
	code, err = decode("application/json", `{}`, 0)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRecoveryAndRequestID(t *testing.T) {
	h := RequestIDMiddleware(RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"request_id":"rid-1"`)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders("production", "", true)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")

	rec = httptest.NewRecorder()
	SecurityHeaders("development", "", false)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var ok bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, ok)
}
