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

// APIKeyRepository implements repository.APIKeyRepository using PostgreSQL
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new PostgreSQL API key repository
func NewAPIKeyRepository(db *sqlx.DB) repository.APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores a new API key record (hash only, never the secret)
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt == 0 {
		key.CreatedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO api_keys (id, name, secret_hash, scopes, revoked, created_at, last_used_at)
		VALUES (:id, :name, :secret_hash, :scopes, :revoked, :created_at, :last_used_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, key)
	return err
}

// Get retrieves an API key by id
func (r *APIKeyRepository) Get(ctx context.Context, id string) (*models.APIKey, error) {
	var key models.APIKey
	query := `
		SELECT id, name, secret_hash, scopes, revoked, created_at, last_used_at
		FROM api_keys
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &key, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrAPIKeyNotFound
		}
		return nil, err
	}

	return &key, nil
}

// List returns all API keys, newest first
func (r *APIKeyRepository) List(ctx context.Context) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	query := `
		SELECT id, name, secret_hash, scopes, revoked, created_at, last_used_at
		FROM api_keys
		ORDER BY created_at DESC
	`

	err := r.db.SelectContext(ctx, &keys, query)
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Touch records when the key was last used
func (r *APIKeyRepository) Touch(ctx context.Context, id string, usedAt int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, usedAt)
	return err
}

// Revoke disables the key without deleting its record
func (r *APIKeyRepository) Revoke(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE api_keys SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrAPIKeyNotFound
	}
	return nil
}
