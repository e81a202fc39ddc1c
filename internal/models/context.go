package models

// ChatMessage is one role/content pair as handed to a response producer or
// the generation backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ContextPackage is what the context engine hands a response producer for one
// turn: the current summary text (nil when none exists) plus every message
// not yet folded into a summary, oldest first. The producer is responsible
// for prepending the summary as a single synthetic system item ahead of
// ActiveMessages when it calls the generation backend.
type ContextPackage struct {
	SummaryText        *string       `json:"summary_text"`
	ActiveMessages     []ChatMessage `json:"active_messages"`
	HasSummary         bool          `json:"has_summary"`
	ActiveMessageCount int           `json:"active_message_count"`
}

// MessageView joins a message record with its stored content for API
// responses. Content comes from the content store; an empty Content with a
// live record means the blob was missing and the inconsistency was logged.
type MessageView struct {
	Message
	Content  string   `json:"content"`
	ToolUsed string   `json:"tool_used,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Metadata JSONB    `json:"metadata,omitempty"`
}
