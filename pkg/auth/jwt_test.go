package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qdesign-backend/pkg/auth/authtest"
)

var testSigner = authtest.Signer{Secret: "test-secret", Issuer: "qdesign", Audience: []string{"qdesign-api"}}

func newTestValidator(t *testing.T) *JWTValidator {
	t.Helper()
	val, err := NewJWTValidator(JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     "test-secret",
		Issuer:        "qdesign",
		Audience:      []string{"qdesign-api"},
	})
	require.NoError(t, err)
	return val
}

func TestJWTRoundTrip(t *testing.T) {
	val := newTestValidator(t)

	claims, err := val.ValidateToken("Bearer " + testSigner.Token(t, "user-a", "Ada"))
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.UserID)
	assert.Equal(t, "Ada", claims.Name)

	user := FromClaims(claims)
	assert.Equal(t, "Ada", user.DisplayName())
}

func TestJWTValidationFailures(t *testing.T) {
	val := newTestValidator(t)
	expired := testSigner
	expired.TTL = -time.Minute
	wrongIssuer := testSigner
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: expired.Token(t, "user-a", ""), want: ErrExpiredToken},
		{name: "missing", token: "", want: ErrMissingToken},
		{name: "malformed", token: "not.a.token", want: ErrInvalidToken},
		{name: "wrong issuer", token: wrongIssuer.Token(t, "user-a", ""), want: ErrInvalidClaims},
		{name: "missing subject", token: testSigner.Token(t, "", ""), want: ErrInvalidClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := val.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	other, err := NewJWTValidator(JWTConfig{SecretKey: "other-secret"})
	require.NoError(t, err)
	_, err = other.ValidateToken(testSigner.Token(t, "user-b", ""))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u1", Email: "u1@example.com"})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", user.DisplayName())
}
