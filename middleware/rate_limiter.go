package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/sreedevirajkumar/candle/utils"
)

// In-memory sliding window limiters keyed by client IP. Counters are per
// instance; LoginGuard moves to Redis when a client is configured.

type timestamps []int64 // unix nanos

func nowUnix() int64 { return time.Now().UnixNano() }

// slidingWindow records a hit for key and returns the hit count inside the
// window together with the oldest retained hit.
type slidingWindow struct {
	window time.Duration
	mu     sync.Mutex
	state  map[string]timestamps
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{window: window, state: make(map[string]timestamps)}
}

func (s *slidingWindow) hit(key string, now int64) (int, int64) {
	cutoff := now - int64(s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	var filtered timestamps
	for _, ts := range s.state[key] {
		if ts >= cutoff {
			filtered = append(filtered, ts)
		}
	}
	filtered = append(filtered, now)
	s.state[key] = filtered
	return len(filtered), filtered[0]
}

func (s *slidingWindow) sweep(now int64) {
	cutoff := now - int64(s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, arr := range s.state {
		var filtered timestamps
		for _, ts := range arr {
			if ts >= cutoff {
				filtered = append(filtered, ts)
			}
		}
		if len(filtered) == 0 {
			delete(s.state, k)
		} else {
			s.state[k] = filtered
		}
	}
}

func (s *slidingWindow) retryAfter(oldest, now int64) int {
	retryAfterNs := oldest + int64(s.window) - now
	if retryAfterNs <= 0 {
		return 1
	}
	if sec := int(retryAfterNs / 1e9); sec > 0 {
		return sec
	}
	return 1
}

// IPRateLimiter applies a per-IP limit. Verification and login paths get
// the tighter verifyMax limit.
type IPRateLimiter struct {
	max         int
	verifyMax   int
	hits        *slidingWindow
	trustedCIDR []string
	stop        chan struct{}
}

func NewIPRateLimiter(maxReq, verifyMax int, window time.Duration, trusted []string) *IPRateLimiter {
	l := &IPRateLimiter{
		max:         maxReq,
		verifyMax:   verifyMax,
		hits:        newSlidingWindow(window),
		trustedCIDR: trusted,
		stop:        make(chan struct{}),
	}
	go l.cleanupLoop(time.Minute)
	return l
}

// Stop ends the cleanup goroutine.
func (l *IPRateLimiter) Stop() { close(l.stop) }

func (l *IPRateLimiter) limitFor(path string) (string, int) {
	if l.verifyMax > 0 && (strings.HasSuffix(path, "/payment/verify") || strings.HasSuffix(path, "/admin/login")) {
		return "verify", l.verifyMax
	}
	return "api", l.max
}

// clientIPGeneric returns the client IP string. If trustedCIDR is provided,
// X-Forwarded-For / X-Real-IP headers are honored when remote addr is inside
// one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteHost = r.RemoteAddr
	}
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" || remoteIP == nil {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil && ipnet.Contains(remoteIP) {
				trusted = true
				break
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			return strings.TrimSpace(strings.Split(xff, ",")[0])
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	return remoteHost
}

// Middleware applies per-IP limits and sets rate-limit headers.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		cat, limit := l.limitFor(r.URL.Path)
		now := nowUnix()
		count, oldest := l.hits.hit(cat+":"+ip, now)

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > limit {
			tooMany(w, "Too many requests, please try again later.", l.hits.retryAfter(oldest, now))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) cleanupLoop(every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			l.hits.sweep(nowUnix())
		case <-l.stop:
			return
		}
	}
}

// WebhookLimiter: sliding window + whitelist IP
type WebhookLimiter struct {
	maxReq      int
	hits        *slidingWindow
	whitelist   map[string]bool
	trustedCIDR []string
}

func NewWebhookLimiter(maxReq int, window time.Duration, whitelist, trusted []string) *WebhookLimiter {
	wl := make(map[string]bool)
	for _, ip := range whitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			wl[ip] = true
		}
	}
	return &WebhookLimiter{maxReq: maxReq, hits: newSlidingWindow(window), whitelist: wl, trustedCIDR: trusted}
}

func (l *WebhookLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		if l.whitelist[ip] {
			next.ServeHTTP(w, r)
			return
		}
		now := nowUnix()
		count, oldest := l.hits.hit(ip, now)
		if count > l.maxReq {
			tooMany(w, "Too many webhook requests. Please try again later.", l.hits.retryAfter(oldest, now))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tooMany(w http.ResponseWriter, msg string, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
		Success: false,
		Message: msg,
		Data:    map[string]interface{}{"retry_after_seconds": retryAfter},
	})
}

// LoginGuard locks out a client from the third failed admin login on, with
// progressive durations: 1, 5, 15, then 30 minutes. Redis keeps the lock shared between
// instances when configured.
type LoginGuard struct {
	redis redis.UniversalClient
	now   func() time.Time

	mu     sync.Mutex
	failed map[string]int
	locked map[string]time.Time
}

func NewLoginGuard(rc redis.UniversalClient) *LoginGuard {
	return &LoginGuard{redis: rc, now: time.Now, failed: make(map[string]int), locked: make(map[string]time.Time)}
}

func lockoutFor(failures int64) time.Duration {
	switch {
	case failures < 3:
		return 0
	case failures == 3:
		return time.Minute
	case failures == 4:
		return 5 * time.Minute
	case failures == 5:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Locked reports whether key is locked and for how long.
func (g *LoginGuard) Locked(ctx context.Context, key string) (bool, time.Duration) {
	if g.redis != nil {
		ttl, err := g.redis.TTL(ctx, "login:lock:"+key).Result()
		if err == nil && ttl > 0 {
			return true, ttl
		}
		return false, 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.locked[key]
	if !ok {
		return false, 0
	}
	if left := until.Sub(g.now()); left > 0 {
		return true, left
	}
	delete(g.locked, key)
	return false, 0
}

func (g *LoginGuard) Fail(ctx context.Context, key string) {
	if g.redis != nil {
		failures, err := g.redis.Incr(ctx, "login:fail:"+key).Result()
		if err == nil {
			_ = g.redis.Expire(ctx, "login:fail:"+key, 30*time.Minute).Err()
			if d := lockoutFor(failures); d > 0 {
				_ = g.redis.Set(ctx, "login:lock:"+key, "1", d).Err()
			}
			return
		}
		// fall through to the in-memory guard on redis errors
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed[key]++
	if d := lockoutFor(int64(g.failed[key])); d > 0 {
		g.locked[key] = g.now().Add(d)
	}
}

func (g *LoginGuard) Reset(ctx context.Context, key string) {
	if g.redis != nil {
		_ = g.redis.Del(ctx, "login:fail:"+key, "login:lock:"+key).Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failed, key)
	delete(g.locked, key)
}

// ClientIP exposes the limiter's client IP resolution to handlers.
func ClientIP(r *http.Request, trusted []string) string {
	return clientIPGeneric(r, trusted)
}
