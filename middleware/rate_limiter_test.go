package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPGeneric(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trusted []string
		want    string
	}{
		{"direct remote", "203.0.113.5:54321", nil, nil, "203.0.113.5"},
		{"remote without port", "203.0.113.5", nil, nil, "203.0.113.5"},
		{"trusted proxy xff", "198.51.100.10:443", map[string]string{"X-Forwarded-For": "203.0.113.7, 198.51.100.10"}, []string{"198.51.100.10"}, "203.0.113.7"},
		{"trusted cidr real ip", "10.1.2.3:8080", map[string]string{"X-Real-IP": " 203.0.113.9 "}, []string{"10.0.0.0/8"}, "203.0.113.9"},
		{"portless trusted proxy", "10.1.2.3", map[string]string{"X-Forwarded-For": "203.0.113.4"}, []string{"10.0.0.0/8"}, "203.0.113.4"},
		{"untrusted proxy ignores xff", "198.51.100.11:443", map[string]string{"X-Forwarded-For": "203.0.113.8, 198.51.100.11"}, []string{"198.51.100.10"}, "198.51.100.11"},
		{"bad cidr entries skipped", "198.51.100.12:443", map[string]string{"X-Forwarded-For": "203.0.113.8"}, []string{"", "not-a-cidr/99"}, "198.51.100.12"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.local/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIPGeneric(req, tc.trusted))
		})
	}
}

func TestLimitForCategories(t *testing.T) {
	l := NewIPRateLimiter(100, 10, time.Minute, nil)
	defer l.Stop()

	for path, want := range map[string]string{
		"/api/payment/verify":  "verify",
		"/api/admin/login":     "verify",
		"/api/payment/status/": "api",
		"/api/order":           "api",
	} {
		cat, limit := l.limitFor(path)
		assert.Equal(t, want, cat, path)
		if want == "verify" {
			assert.Equal(t, 10, limit, path)
		} else {
			assert.Equal(t, 100, limit, path)
		}
	}

	open := NewIPRateLimiter(100, 0, time.Minute, nil)
	defer open.Stop()
	cat, limit := open.limitFor("/api/payment/verify")
	assert.Equal(t, "api", cat)
	assert.Equal(t, 100, limit)
}

func TestIPRateLimiterKeysOnForwardedClient(t *testing.T) {
	l := NewIPRateLimiter(10, 1, time.Minute, []string{"10.0.0.0/8"})
	defer l.Stop()
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	verify := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payment/verify", nil)
		req.RemoteAddr = "10.0.0.2:443"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, verify("203.0.113.1").Code)
	rec := verify("203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// same proxy, different client
	assert.Equal(t, http.StatusOK, verify("203.0.113.2").Code)
}

func TestWebhookLimiterWhitelistBehindProxy(t *testing.T) {
	l := NewWebhookLimiter(1, time.Hour, []string{"203.0.113.50"}, []string{"10.0.0.2"})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.2:443", "203.0.113.50"))
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.2:443", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.2:443", "198.51.100.1"))

	// an untrusted sender cannot claim the provider address
	assert.Equal(t, http.StatusOK, send("192.0.2.7:443", "203.0.113.50"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.7:443", "203.0.113.50"))
}
