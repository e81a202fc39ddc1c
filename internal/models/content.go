package models

// RoleSummary marks a content record as summary text rather than a message
// body. It never appears on a Message index record.
const RoleSummary = "summary"

// ContentRecord is the value stored in the content store, addressed by
// (session id, content id). The store treats it as opaque bytes; this is the
// shape both sides of the boundary agree on.
type ContentRecord struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	ToolUsed  string   `json:"tool_used,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	Metadata  JSONB    `json:"metadata,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

// MessageMeta carries the optional producer-supplied fields persisted with a
// message body (which tool answered, citation list, anything else).
type MessageMeta struct {
	ToolUsed string   `json:"tool_used,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Metadata JSONB    `json:"metadata,omitempty"`
}
