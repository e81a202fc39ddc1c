package repository

import (
	"context"
	"errors"

	"github.com/parleyhq/parley-backend/internal/models"
)

// Sentinel errors surfaced by the metadata index. Callers branch with
// errors.Is; none of these are retried automatically.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrAPIKeyNotFound  = errors.New("api key not found")
)

// ContentStore is durable blob storage for message and summary bodies,
// addressed by (session id, content id). It owns opaque bytes only; the
// metadata index owns existence and relationships.
type ContentStore interface {
	// Put writes a record, creating the session namespace if needed.
	// Retrying with the same id overwrites: last write wins.
	Put(ctx context.Context, sessionID, contentID string, rec *models.ContentRecord) error
	// Get returns (nil, nil) when no such record exists. Absence is a
	// normal steady state ("no summary yet"), not an error.
	Get(ctx context.Context, sessionID, contentID string) (*models.ContentRecord, error)
	// DeleteSession removes every record under the session's namespace.
	// Calling it for a session with no stored records is a no-op.
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionRepository is the metadata index's bookkeeping of sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]models.Session, error)
	// UpdateTitle sets the title without bumping updated_at or
	// last_activity_at; titling is not conversation activity.
	UpdateTitle(ctx context.Context, id, title string) error
	// Delete removes the session and, by cascade, its messages and
	// summaries. Deleting a session that does not exist is a no-op.
	Delete(ctx context.Context, id string) error
}

// MessageRepository is the metadata index's bookkeeping of message records.
// Bodies never pass through here; they live in the ContentStore.
type MessageRepository interface {
	// Create inserts the record and bumps the owning session's
	// last_activity_at/updated_at inside the same transaction.
	Create(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, sessionID, id string) (*models.Message, error)
	// ListPage returns up to limit messages oldest-first. A non-empty
	// beforeID restricts the page to messages strictly older than that
	// message. Paging is keyed on (created_at, seq), not offsets, so it
	// stays correct under concurrent appends.
	ListPage(ctx context.Context, sessionID string, limit int, beforeID string) ([]models.Message, error)
	// ListUnsummarized returns exactly the window the summarizer will
	// consume, oldest first.
	ListUnsummarized(ctx context.Context, sessionID string) ([]models.Message, error)
	// MarkSummarized flips the one-way summarized flag on every given id
	// in a single statement.
	MarkSummarized(ctx context.Context, sessionID string, ids []string) error
	// CountMeaningful counts assistant-authored, not-yet-summarized
	// messages. This count drives the summarization trigger threshold.
	CountMeaningful(ctx context.Context, sessionID string) (int, error)
	// Count reports the total number of messages in the session
	Count(ctx context.Context, sessionID string) (int, error)
	// FirstByRole returns the oldest message with the given role, or
	// (nil, nil) when the session has none.
	FirstByRole(ctx context.Context, sessionID string, role models.Role) (*models.Message, error)
}

// SummaryRepository is the metadata index's bookkeeping of summary records
type SummaryRepository interface {
	// Create inserts the summary, marks every covered message summarized,
	// and repoints the session's current summary in one transaction. No
	// reader ever observes the record without its coverage applied, or
	// the coverage without the record.
	Create(ctx context.Context, summary *models.Summary, coveredIDs []string) error
	// GetCurrent returns (nil, nil) when the session has no summary yet.
	GetCurrent(ctx context.Context, sessionID string) (*models.Summary, error)
	// ListBySession returns every summary ever created for the session,
	// oldest first. Records are append-only; superseded ones persist.
	ListBySession(ctx context.Context, sessionID string) ([]models.Summary, error)
}

// APIKeyRepository stores hashed API keys for programmatic access
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	Get(ctx context.Context, id string) (*models.APIKey, error)
	List(ctx context.Context) ([]*models.APIKey, error)
	// Touch records last use; best effort, callers may ignore the error.
	Touch(ctx context.Context, id string, usedAt int64) error
	Revoke(ctx context.Context, id string) error
}
