package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

var (
	// ErrInvalidAPIKey is returned when an API key fails validation
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrKeyRevoked is returned when a revoked key is presented
	ErrKeyRevoked = errors.New("API key revoked")
)

// Service handles authentication operations
type Service struct {
	keys   repository.APIKeyRepository
	jwt    *JWTService
	logger *logrus.Logger
}

// NewService creates a new auth service
func NewService(keys repository.APIKeyRepository, cfg config.AuthConfig, logger *logrus.Logger) *Service {
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		keys:   keys,
		jwt:    NewJWTService(cfg.JWTSecret, cfg.Issuer, ttl),
		logger: logger,
	}
}

// CreateKey mints a new API key and returns the plaintext exactly once
func (s *Service) CreateKey(ctx context.Context, name string, scopes []string) (string, *models.APIKey, error) {
	plaintext, key, err := GenerateAPIKey(name, scopes, time.Now().UnixMilli())
	if err != nil {
		return "", nil, err
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return "", nil, fmt.Errorf("failed to store API key: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key_id": key.ID,
		"name":   key.Name,
		"scopes": key.Scopes,
	}).Info("API key created")

	return plaintext, key, nil
}

// ValidateAPIKey checks a plaintext key and returns the matching record.
// Validation failures all map to ErrInvalidAPIKey except revocation, which
// is reported separately so callers can distinguish it in logs.
func (s *Service) ValidateAPIKey(ctx context.Context, raw string) (*models.APIKey, error) {
	id, secret, ok := ParseAPIKey(raw)
	if !ok {
		return nil, ErrInvalidAPIKey
	}

	key, err := s.keys.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to load API key: %w", err)
	}

	if key.Revoked {
		return nil, ErrKeyRevoked
	}
	if !VerifyAPIKeySecret(key.SecretHash, secret) {
		return nil, ErrInvalidAPIKey
	}

	if err := s.keys.Touch(ctx, key.ID, time.Now().UnixMilli()); err != nil {
		s.logger.WithError(err).WithField("key_id", key.ID).Debug("failed to record API key use")
	}

	return key, nil
}

// ListKeys returns all stored API key records
func (s *Service) ListKeys(ctx context.Context) ([]*models.APIKey, error) {
	return s.keys.List(ctx)
}

// RevokeKey disables an API key without deleting its record
func (s *Service) RevokeKey(ctx context.Context, id string) error {
	if err := s.keys.Revoke(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("key_id", id).Info("API key revoked")
	return nil
}

// IssueToken generates an access token for a subject with scopes
func (s *Service) IssueToken(subject string, scopes []string) (string, error) {
	if err := ValidateScopes(scopes); err != nil {
		return "", err
	}
	return s.jwt.GenerateToken(subject, scopes)
}

// ValidateToken validates an access token and returns its claims
func (s *Service) ValidateToken(token string) (*JWTClaims, error) {
	return s.jwt.ValidateToken(token)
}
