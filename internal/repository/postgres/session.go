package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	session.LastActivityAt = session.CreatedAt

	query := `
		INSERT INTO sessions (id, title, current_summary_id, created_at, updated_at, last_activity_at, metadata)
		VALUES (:id, :title, :current_summary_id, :created_at, :updated_at, :last_activity_at, :metadata)
	`

	_, err := r.db.NamedExecContext(ctx, query, session)
	return err
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	query := `
		SELECT id, title, current_summary_id, created_at, updated_at, last_activity_at, metadata
		FROM sessions
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, err
	}

	return &session, nil
}

// List retrieves all sessions, most recently updated first
func (r *SessionRepository) List(ctx context.Context) ([]models.Session, error) {
	sessions := []models.Session{}
	query := `
		SELECT id, title, current_summary_id, created_at, updated_at, last_activity_at, metadata
		FROM sessions
		ORDER BY updated_at DESC
	`

	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, err
	}

	return sessions, nil
}

// UpdateTitle sets the session title. It deliberately leaves updated_at and
// last_activity_at alone: titling happens off the request path and must not
// look like conversation activity to the context engine.
func (r *SessionRepository) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session; messages and summaries go with it via cascade.
// Deleting an id that no longer exists succeeds silently so the operation
// can be retried.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
