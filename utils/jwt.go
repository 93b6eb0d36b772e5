package utils

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"
)

type contextKey string

const AdminKey = contextKey("admin")
const RequestIDKey = contextKey("requestID")

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates admin access tokens. Revocations is
// optional; without it logout cannot invalidate a token before it expires.
type TokenManager struct {
	Secret      []byte
	Audience    string
	Issuer      string
	TTL         time.Duration
	Revocations redis.UniversalClient
	Now         func() time.Time
}

func NewTokenManager(secret, audience, issuer string, ttl time.Duration, revocations redis.UniversalClient) *TokenManager {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &TokenManager{
		Secret:      []byte(secret),
		Audience:    audience,
		Issuer:      issuer,
		TTL:         ttl,
		Revocations: revocations,
		Now:         time.Now,
	}
}

// Generate signs an HS256 token for username with role.
func (m *TokenManager) Generate(username, role string) (string, error) {
	if len(m.Secret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}
	now := m.Now()
	jti, err := generateJTI(32)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"username": username,
		"role":     role,
		"exp":      now.Add(m.TTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      jti,
	}
	if m.Audience != "" {
		claims["aud"] = m.Audience
	}
	if m.Issuer != "" {
		claims["iss"] = m.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

// Validate parses tokenStr and checks exp, nbf, aud, iss and revocation.
func (m *TokenManager) Validate(ctx context.Context, tokenStr string) (jwt.MapClaims, error) {
	if len(m.Secret) == 0 {
		return nil, errors.New("JWT_SECRET is not set")
	}
	opts := []jwt.ParserOption{
		// Require exact HS256 algorithm to avoid algorithm confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.Now),
	}
	if m.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.Audience))
	}
	if m.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if jti, _ := claims["jti"].(string); jti != "" && m.Revocations != nil {
		res, err := m.Revocations.Get(ctx, revocationKey(jti)).Result()
		if err == nil && res == "1" {
			return nil, errors.New("token revoked")
		}
		// ignore redis errors (do not fail auth due to redis outage)
	}
	return claims, nil
}

// Revoke blacklists the token's jti until it would have expired anyway.
func (m *TokenManager) Revoke(ctx context.Context, claims jwt.MapClaims) error {
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return errors.New("empty jti")
	}
	if m.Revocations == nil {
		return errors.New("no revocation store configured")
	}
	ttl := m.TTL
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = exp.Sub(m.Now())
	}
	if ttl <= 0 {
		return nil
	}
	return m.Revocations.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

func revocationKey(jti string) string {
	return "jwt:blacklist:" + jti
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return tok, tok != ""
}

// AdminClaims returns the claims stored by the admin middleware.
func AdminClaims(r *http.Request) (jwt.MapClaims, bool) {
	c, ok := r.Context().Value(AdminKey).(jwt.MapClaims)
	return c, ok
}

// generateJTI creates a URL-safe random identifier used as JWT ID
func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = hex[int(b[i])%len(hex)]
	}
	return string(out), nil
}
