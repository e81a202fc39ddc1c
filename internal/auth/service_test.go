package auth

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

type memKeys struct {
	mu   sync.Mutex
	keys map[string]*models.APIKey
}

func newMemKeys() *memKeys {
	return &memKeys{keys: make(map[string]*models.APIKey)}
}

func (m *memKeys) Create(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *memKeys) Get(ctx context.Context, id string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *memKeys) List(ctx context.Context) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		cp := *key
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memKeys) Touch(ctx context.Context, id string, usedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[id]; ok {
		key.LastUsedAt = &usedAt
	}
	return nil
}

func (m *memKeys) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return repository.ErrAPIKeyNotFound
	}
	key.Revoked = true
	return nil
}

func newTestService() (*Service, *memKeys) {
	keys := newMemKeys()
	logger, _ := test.NewNullLogger()
	cfg := config.AuthConfig{JWTSecret: "test-secret", Issuer: "parley", TokenTTLHours: 1}
	return NewService(keys, cfg, logger), keys
}

func TestServiceCreateAndValidateKey(t *testing.T) {
	svc, keys := newTestService()
	ctx := context.Background()

	plaintext, created, err := svc.CreateKey(ctx, "ci pipeline", []string{"sessions:read", "chat:write"})
	require.NoError(t, err)
	require.NotEmpty(t, plaintext)

	key, err := svc.ValidateAPIKey(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, created.ID, key.ID)
	assert.Equal(t, "ci pipeline", key.Name)

	// Validation records last use on the stored record.
	stored, err := keys.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsedAt)
}

func TestServiceRejectsRevokedKey(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	plaintext, created, err := svc.CreateKey(ctx, "old deploy key", []string{"sessions:*"})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeKey(ctx, created.ID))

	_, err = svc.ValidateAPIKey(ctx, plaintext)
	assert.ErrorIs(t, err, ErrKeyRevoked)
}

func TestServiceRejectsUnknownAndMalformedKeys(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ValidateAPIKey(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = svc.ValidateAPIKey(ctx, "pl_0b8f8a52-8c1d-4e29-9c1f-43c0a3b0b0aa_c2VjcmV0")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestServiceRejectsTamperedSecret(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	plaintext, _, err := svc.CreateKey(ctx, "probe", []string{"sessions:read"})
	require.NoError(t, err)

	_, err = svc.ValidateAPIKey(ctx, plaintext+"x")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestServiceIssueAndValidateToken(t *testing.T) {
	svc, _ := newTestService()

	token, err := svc.IssueToken("ops@example.com", []string{"sessions:read"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, []string{"sessions:read"}, claims.Scopes)

	_, err = svc.IssueToken("ops@example.com", []string{"not-a-scope"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestServiceRevokeUnknownKey(t *testing.T) {
	svc, _ := newTestService()

	err := svc.RevokeKey(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrAPIKeyNotFound)
}
