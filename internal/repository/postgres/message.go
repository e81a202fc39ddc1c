package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts the message record and bumps the owning session's activity
// timestamps in the same transaction. The session bump doubles as the
// existence check: zero rows affected means the session is gone.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.ContentID == "" {
		msg.ContentID = msg.ID
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message create: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = $2, updated_at = $2 WHERE id = $1
	`, msg.SessionID, msg.CreatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrSessionNotFound
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO messages (id, session_id, role, content_id, token_count, summarized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`, msg.ID, msg.SessionID, msg.Role, msg.ContentID, msg.TokenCount, msg.Summarized, msg.CreatedAt).Scan(&msg.Seq)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Get retrieves one message record by id within a session
func (r *MessageRepository) Get(ctx context.Context, sessionID, id string) (*models.Message, error) {
	var msg models.Message
	query := `
		SELECT id, session_id, role, content_id, token_count, summarized, created_at, seq
		FROM messages
		WHERE session_id = $1 AND id = $2
	`

	err := r.db.GetContext(ctx, &msg, query, sessionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrMessageNotFound
		}
		return nil, err
	}

	return &msg, nil
}

// ListPage returns up to limit messages oldest-first. It pages newest-first
// internally on the (created_at, seq) key and reverses before returning, so
// "the most recent limit messages before the cursor" is what a caller gets.
func (r *MessageRepository) ListPage(ctx context.Context, sessionID string, limit int, beforeID string) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}

	messages := []models.Message{}
	if beforeID == "" {
		query := `
			SELECT id, session_id, role, content_id, token_count, summarized, created_at, seq
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		`
		if err := r.db.SelectContext(ctx, &messages, query, sessionID, limit); err != nil {
			return nil, err
		}
	} else {
		cursor, err := r.Get(ctx, sessionID, beforeID)
		if err != nil {
			return nil, err
		}
		query := `
			SELECT id, session_id, role, content_id, token_count, summarized, created_at, seq
			FROM messages
			WHERE session_id = $1 AND (created_at, seq) < ($2, $3)
			ORDER BY created_at DESC, seq DESC
			LIMIT $4
		`
		if err := r.db.SelectContext(ctx, &messages, query, sessionID, cursor.CreatedAt, cursor.Seq, limit); err != nil {
			return nil, err
		}
	}

	// reverse into oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// ListUnsummarized returns the session's not-yet-summarized messages oldest
// first: the exact window the summarizer consumes.
func (r *MessageRepository) ListUnsummarized(ctx context.Context, sessionID string) ([]models.Message, error) {
	messages := []models.Message{}
	query := `
		SELECT id, session_id, role, content_id, token_count, summarized, created_at, seq
		FROM messages
		WHERE session_id = $1 AND summarized = FALSE
		ORDER BY created_at ASC, seq ASC
	`

	if err := r.db.SelectContext(ctx, &messages, query, sessionID); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkSummarized flips the summarized flag on every given id. One statement,
// so concurrent readers see either none or all of the batch flipped.
func (r *MessageRepository) MarkSummarized(ctx context.Context, sessionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET summarized = TRUE
		WHERE session_id = $1 AND id = ANY($2::uuid[])
	`, sessionID, pq.Array(ids))
	return err
}

// CountMeaningful counts assistant-authored unsummarized messages
func (r *MessageRepository) CountMeaningful(ctx context.Context, sessionID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM messages
		WHERE session_id = $1 AND role = $2 AND summarized = FALSE
	`

	if err := r.db.GetContext(ctx, &count, query, sessionID, models.RoleAssistant); err != nil {
		return 0, err
	}

	return count, nil
}

// Count reports the total number of messages in the session
func (r *MessageRepository) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE session_id = $1`

	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, err
	}

	return count, nil
}

// FirstByRole returns the oldest message with the given role, or (nil, nil)
// when the session has none.
func (r *MessageRepository) FirstByRole(ctx context.Context, sessionID string, role models.Role) (*models.Message, error) {
	var msg models.Message
	query := `
		SELECT id, session_id, role, content_id, token_count, summarized, created_at, seq
		FROM messages
		WHERE session_id = $1 AND role = $2
		ORDER BY created_at ASC, seq ASC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &msg, query, sessionID, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &msg, nil
}
