package models

import (
	"strings"

	"github.com/lib/pq"
)

// APIKey represents a key for programmatic access. Only the bcrypt hash of
// the secret is stored; the plaintext is shown once at creation time.
type APIKey struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	SecretHash string         `json:"-" db:"secret_hash"`
	Scopes     pq.StringArray `json:"scopes" db:"scopes"`
	Revoked    bool           `json:"revoked" db:"revoked"`
	CreatedAt  int64          `json:"created_at" db:"created_at"`
	LastUsedAt *int64         `json:"last_used_at,omitempty" db:"last_used_at"`
}

// HasScope reports whether the key grants the given scope
func (k *APIKey) HasScope(scope string) bool {
	return ScopesAllow(k.Scopes, scope)
}

// ScopesAllow reports whether a scope list grants the given scope. "*"
// grants everything; "sessions:*" grants every sessions: action.
func ScopesAllow(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope || s == "*" {
			return true
		}
		if group, ok := strings.CutSuffix(s, ":*"); ok {
			if strings.HasPrefix(scope, group+":") {
				return true
			}
		}
	}
	return false
}
