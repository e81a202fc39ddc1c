package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

// ContentStore implements repository.ContentStore on PostgreSQL through a
// dedicated pgx pool, separate from the sqlx pool serving the metadata
// index. Records go in as opaque JSON bytes; the table carries no foreign
// keys into the index, and the two sides fail independently (see the
// recovery invariant on message append).
type ContentStore struct {
	pool *pgxpool.Pool
}

// NewContentStore creates a content store backed by the given pgx pool
func NewContentStore(pool *pgxpool.Pool) repository.ContentStore {
	return &ContentStore{pool: pool}
}

// Put upserts one record under (sessionID, contentID). Last write wins, so
// retries with the same id are harmless.
func (s *ContentStore) Put(ctx context.Context, sessionID, contentID string, rec *models.ContentRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode content record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO content_records (session_id, content_id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, content_id) DO UPDATE SET body = EXCLUDED.body
	`, sessionID, contentID, body)
	return err
}

// Get fetches one record; (nil, nil) when absent
func (s *ContentStore) Get(ctx context.Context, sessionID, contentID string) (*models.ContentRecord, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `
		SELECT body FROM content_records WHERE session_id = $1 AND content_id = $2
	`, sessionID, contentID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var rec models.ContentRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode content record %s/%s: %w", sessionID, contentID, err)
	}

	return &rec, nil
}

// DeleteSession drops the session's whole namespace; deleting a namespace
// that was never written to is a no-op.
func (s *ContentStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM content_records WHERE session_id = $1`, sessionID)
	return err
}
