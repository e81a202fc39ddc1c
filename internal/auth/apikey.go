package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/parley-backend/internal/models"
)

var (
	// ErrInvalidScope is returned when an invalid scope is provided
	ErrInvalidScope = errors.New("invalid scope")
)

const (
	// APIKeyPrefix is the prefix for all API keys
	APIKeyPrefix = "pl_"
	// APIKeySecretLength is the length of the random secret part in bytes
	APIKeySecretLength = 32
)

// GenerateAPIKey creates a new API key and returns the plaintext exactly once.
// The stored record only carries the bcrypt hash of the secret, so the key id
// is embedded in the plaintext to let validation find the record first.
func GenerateAPIKey(name string, scopes []string, createdAt int64) (plaintext string, key *models.APIKey, err error) {
	if err := ValidateScopes(scopes); err != nil {
		return "", nil, err
	}

	bytes := make([]byte, APIKeySecretLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate key secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(bytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash key secret: %w", err)
	}

	key = &models.APIKey{
		ID:         uuid.New().String(),
		Name:       name,
		SecretHash: string(hash),
		Scopes:     scopes,
		CreatedAt:  createdAt,
	}
	plaintext = APIKeyPrefix + key.ID + "_" + secret

	return plaintext, key, nil
}

// ParseAPIKey splits a plaintext key into its id and secret parts.
// The id is a UUID and never contains underscores, so the last underscore
// separates the two.
func ParseAPIKey(raw string) (id, secret string, ok bool) {
	rest, found := strings.CutPrefix(raw, APIKeyPrefix)
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// VerifyAPIKeySecret compares a plaintext secret against the stored hash
func VerifyAPIKeySecret(secretHash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)) == nil
}

// ValidateAPIKeyFormat checks if an API key has the correct shape
func ValidateAPIKeyFormat(apiKey string) bool {
	_, _, ok := ParseAPIKey(apiKey)
	return ok
}

// ExtractAPIKey extracts an API key from various header formats
func ExtractAPIKey(authHeader string) string {
	// Try Bearer format first
	if strings.HasPrefix(authHeader, "Bearer ") {
		key := strings.TrimPrefix(authHeader, "Bearer ")
		if ValidateAPIKeyFormat(key) {
			return key
		}
	}

	// Try direct API key
	if ValidateAPIKeyFormat(authHeader) {
		return authHeader
	}

	return ""
}

// APIKeyScopes defines available scopes for API keys
var APIKeyScopes = []string{
	"sessions:read",
	"sessions:write",
	"chat:write",
	"keys:read",
	"keys:write",
}

// ValidateScopes checks if the provided scopes are valid.
// The global wildcard "*" and group wildcards like "sessions:*" are accepted.
func ValidateScopes(scopes []string) error {
	validScopes := make(map[string]bool)
	validGroups := make(map[string]bool)
	for _, s := range APIKeyScopes {
		validScopes[s] = true
		if group, _, found := strings.Cut(s, ":"); found {
			validGroups[group] = true
		}
	}

	for _, scope := range scopes {
		if scope == "*" || validScopes[scope] {
			continue
		}
		if group, found := strings.CutSuffix(scope, ":*"); found && validGroups[group] {
			continue
		}
		return fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}

	return nil
}
