package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKeyRoundTrip(t *testing.T) {
	plaintext, key, err := GenerateAPIKey("ci pipeline", []string{"sessions:read"}, 1700000000000)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plaintext, APIKeyPrefix))
	assert.NotContains(t, plaintext, key.SecretHash)
	assert.Equal(t, "ci pipeline", key.Name)
	assert.Equal(t, int64(1700000000000), key.CreatedAt)
	assert.False(t, key.Revoked)

	id, secret, ok := ParseAPIKey(plaintext)
	require.True(t, ok)
	assert.Equal(t, key.ID, id)
	assert.True(t, VerifyAPIKeySecret(key.SecretHash, secret))
	assert.False(t, VerifyAPIKeySecret(key.SecretHash, secret+"x"))
}

func TestGenerateAPIKeyRejectsUnknownScope(t *testing.T) {
	_, _, err := GenerateAPIKey("bad", []string{"warp:drive"}, 0)
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestParseAPIKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid", "pl_0b8f8a52-8c1d-4e29-9c1f-43c0a3b0b0aa_c2VjcmV0", true},
		{"wrong prefix", "ax_0b8f8a52_c2VjcmV0", false},
		{"no secret", "pl_0b8f8a52-8c1d-4e29-9c1f-43c0a3b0b0aa_", false},
		{"no separator", "pl_justonepart", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := ParseAPIKey(tt.raw)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestValidateScopes(t *testing.T) {
	assert.NoError(t, ValidateScopes([]string{"sessions:read", "chat:write"}))
	assert.NoError(t, ValidateScopes([]string{"*"}))
	assert.NoError(t, ValidateScopes([]string{"sessions:*"}))
	assert.NoError(t, ValidateScopes(nil))

	assert.ErrorIs(t, ValidateScopes([]string{"bogus"}), ErrInvalidScope)
	assert.ErrorIs(t, ValidateScopes([]string{"bogus:*"}), ErrInvalidScope)
	assert.ErrorIs(t, ValidateScopes([]string{"sessions:read", "sessions:delete"}), ErrInvalidScope)
}

func TestExtractAPIKey(t *testing.T) {
	plaintext, _, err := GenerateAPIKey("probe", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, plaintext, ExtractAPIKey("Bearer "+plaintext))
	assert.Equal(t, plaintext, ExtractAPIKey(plaintext))
	assert.Equal(t, "", ExtractAPIKey("Bearer abc.def.ghi"))
	assert.Equal(t, "", ExtractAPIKey(""))
}
