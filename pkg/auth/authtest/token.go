// Package authtest signs HS256 tokens shaped like the identity provider's,
// for tests that exercise the validator.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues tokens with a shared secret
type Signer struct {
	Secret   string
	Issuer   string
	Audience []string
	// TTL defaults to an hour; a negative TTL yields an expired token
	TTL time.Duration
}

// Token returns a signed token for userID, failing the test on error
func (s Signer) Token(t testing.TB, userID, name string) string {
	t.Helper()

	ttl := s.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	if s.Issuer != "" {
		claims["iss"] = s.Issuer
	}
	if len(s.Audience) > 0 {
		claims["aud"] = s.Audience
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
