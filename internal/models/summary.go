package models

// Summary is the index record for a generated condensation of a contiguous
// prefix of a session's messages. The text lives in the content store under
// ContentID. CoversMessageID is the last message the summary absorbed.
// Summary records are append-only; the session's current pointer moves, old
// records stay.
type Summary struct {
	ID              string `json:"id" db:"id"`
	SessionID       string `json:"session_id" db:"session_id"`
	ContentID       string `json:"content_id" db:"content_id"`
	TokenCount      int    `json:"token_count" db:"token_count"`
	CoversMessageID string `json:"covers_message_id" db:"covers_message_id"`
	CreatedAt       int64  `json:"created_at" db:"created_at"`
}
