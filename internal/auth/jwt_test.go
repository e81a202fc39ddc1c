package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", "parley", time.Hour)

	token, err := svc.GenerateToken("ops@example.com", []string{"sessions:read", "chat:write"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, []string{"sessions:read", "chat:write"}, claims.Scopes)
	assert.Equal(t, "parley", claims.Issuer)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTExpiredToken(t *testing.T) {
	svc := NewJWTService("test-secret", "parley", -time.Hour)

	token, err := svc.GenerateToken("ops@example.com", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTWrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-one", "parley", time.Hour)
	verifier := NewJWTService("secret-two", "parley", time.Hour)

	token, err := issuer.GenerateToken("ops@example.com", nil)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTMalformedToken(t *testing.T) {
	svc := NewJWTService("test-secret", "parley", time.Hour)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"no prefix", "abc.def.ghi", ""},
		{"empty header", "", ""},
		{"prefix only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTokenFromBearer(tt.header))
		})
	}
}
