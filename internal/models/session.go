package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known message roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Session represents a persistent conversation thread.
// All timestamps are integer milliseconds since the Unix epoch.
type Session struct {
	ID               string  `json:"id" db:"id"`
	Title            string  `json:"title,omitempty" db:"title"`
	CurrentSummaryID *string `json:"current_summary_id,omitempty" db:"current_summary_id"`
	CreatedAt        int64   `json:"created_at" db:"created_at"`
	UpdatedAt        int64   `json:"updated_at" db:"updated_at"`
	LastActivityAt   int64   `json:"last_activity_at" db:"last_activity_at"`
	Metadata         JSONB   `json:"metadata,omitempty" db:"metadata"`
}

// Message is the index record for one turn in a session. The body lives in
// the content store under ContentID; the record only carries bookkeeping.
// Summarized flips false->true exactly once, when a summary absorbs the
// message; records are otherwise immutable.
type Message struct {
	ID         string `json:"id" db:"id"`
	SessionID  string `json:"session_id" db:"session_id"`
	Role       Role   `json:"role" db:"role"`
	ContentID  string `json:"content_id" db:"content_id"`
	TokenCount int    `json:"token_count" db:"token_count"`
	Summarized bool   `json:"summarized" db:"summarized"`
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	Seq        int64  `json:"-" db:"seq"`
}

// JSONB is a PostgreSQL jsonb column mapped to a Go map
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}
