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

// SummaryRepository implements repository.SummaryRepository using PostgreSQL
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new PostgreSQL summary repository
func NewSummaryRepository(db *sqlx.DB) repository.SummaryRepository {
	return &SummaryRepository{db: db}
}

// Create inserts the summary record, flips summarized on every covered
// message, and repoints the session's current summary, all in one
// transaction. The caller has already written the summary text to the
// content store; a failure here leaves at worst an orphaned blob.
func (r *SummaryRepository) Create(ctx context.Context, summary *models.Summary, coveredIDs []string) error {
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.ContentID == "" {
		summary.ContentID = summary.ID
	}
	if summary.CreatedAt == 0 {
		summary.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary create: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, summary.SessionID); err != nil {
		return err
	}
	if !exists {
		return repository.ErrSessionNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO summaries (id, session_id, content_id, token_count, covers_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, summary.ID, summary.SessionID, summary.ContentID, summary.TokenCount, summary.CoversMessageID, summary.CreatedAt)
	if err != nil {
		return err
	}

	if len(coveredIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE messages SET summarized = TRUE
			WHERE session_id = $1 AND id = ANY($2::uuid[])
		`, summary.SessionID, pq.Array(coveredIDs))
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET current_summary_id = $2, updated_at = $3 WHERE id = $1
	`, summary.SessionID, summary.ID, summary.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetCurrent resolves the session's current summary record. A session with
// no summary yet returns (nil, nil); a missing session is NotFound.
func (r *SummaryRepository) GetCurrent(ctx context.Context, sessionID string) (*models.Summary, error) {
	var currentID sql.NullString
	err := r.db.GetContext(ctx, &currentID, `SELECT current_summary_id FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, err
	}
	if !currentID.Valid {
		return nil, nil
	}

	var summary models.Summary
	query := `
		SELECT id, session_id, content_id, token_count, covers_message_id, created_at
		FROM summaries
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &summary, query, currentID.String); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &summary, nil
}

// ListBySession retrieves every summary record for a session, oldest first
func (r *SummaryRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Summary, error) {
	summaries := []models.Summary{}
	query := `
		SELECT id, session_id, content_id, token_count, covers_message_id, created_at
		FROM summaries
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &summaries, query, sessionID); err != nil {
		return nil, err
	}

	return summaries, nil
}
