package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

// memStore is an in-memory repository.ContentStore for tests
type memStore struct {
	mu   sync.Mutex
	recs map[string]map[string]*models.ContentRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]map[string]*models.ContentRecord)}
}

func (s *memStore) Put(_ context.Context, sessionID, contentID string, rec *models.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recs[sessionID] == nil {
		s.recs[sessionID] = make(map[string]*models.ContentRecord)
	}
	cp := *rec
	s.recs[sessionID][contentID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, sessionID, contentID string) (*models.ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[sessionID][contentID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, sessionID)
	return nil
}

func (s *memStore) drop(sessionID, contentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs[sessionID], contentID)
}

func (s *memStore) count(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs[sessionID])
}

// memIndex is an in-memory metadata index backing all three repository
// interfaces for tests. One mutex covers every operation, which gives the
// same atomicity the SQL transactions do.
type memIndex struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	messages  map[string][]*models.Message
	summaries map[string][]*models.Summary
	seq       int64
}

func newMemIndex() *memIndex {
	return &memIndex{
		sessions:  make(map[string]*models.Session),
		messages:  make(map[string][]*models.Message),
		summaries: make(map[string][]*models.Summary),
	}
}

func (m *memIndex) Create(ctx context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	if sess.CreatedAt == 0 {
		sess.CreatedAt = now
		sess.UpdatedAt = now
		sess.LastActivityAt = now
	}
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *memIndex) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *memIndex) List(_ context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

func (m *memIndex) UpdateTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	sess.Title = title
	return nil
}

func (m *memIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.messages, id)
	delete(m.summaries, id)
	return nil
}

// message repository

type memMessages struct{ *memIndex }

func (m *memIndex) Messages() repository.MessageRepository { return memMessages{m} }

func (m memMessages) Create(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[msg.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.ContentID == "" {
		msg.ContentID = msg.ID
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}
	m.seq++
	msg.Seq = m.seq

	sess.LastActivityAt = msg.CreatedAt
	sess.UpdatedAt = msg.CreatedAt

	cp := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &cp)
	return nil
}

func (m memMessages) Get(_ context.Context, sessionID, id string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[sessionID] {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, repository.ErrMessageNotFound
}

func (m memMessages) ListPage(_ context.Context, sessionID string, limit int, beforeID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		return []models.Message{}, nil
	}

	msgs := m.sorted(sessionID)

	end := len(msgs)
	if beforeID != "" {
		end = -1
		for i, msg := range msgs {
			if msg.ID == beforeID {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, repository.ErrMessageNotFound
		}
	}

	start := end - limit
	if start < 0 {
		start = 0
	}

	out := make([]models.Message, 0, end-start)
	for _, msg := range msgs[start:end] {
		out = append(out, *msg)
	}
	return out, nil
}

func (m memMessages) ListUnsummarized(_ context.Context, sessionID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Message{}
	for _, msg := range m.sorted(sessionID) {
		if !msg.Summarized {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m memMessages) MarkSummarized(_ context.Context, sessionID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for _, msg := range m.messages[sessionID] {
		if marked[msg.ID] {
			msg.Summarized = true
		}
	}
	return nil
}

func (m memMessages) CountMeaningful(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, msg := range m.messages[sessionID] {
		if msg.Role == models.RoleAssistant && !msg.Summarized {
			count++
		}
	}
	return count, nil
}

func (m memMessages) Count(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[sessionID]), nil
}

func (m memMessages) FirstByRole(_ context.Context, sessionID string, role models.Role) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.sorted(sessionID) {
		if msg.Role == role {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, nil
}

// sorted returns the session's messages oldest first. Callers hold the lock.
func (m *memIndex) sorted(sessionID string) []*models.Message {
	msgs := append([]*models.Message{}, m.messages[sessionID]...)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].Seq < msgs[j].Seq
	})
	return msgs
}

// summary repository

type memSummaries struct{ *memIndex }

func (m *memIndex) Summaries() repository.SummaryRepository { return memSummaries{m} }

func (m memSummaries) Create(_ context.Context, summary *models.Summary, coveredIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[summary.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}

	cp := *summary
	m.summaries[summary.SessionID] = append(m.summaries[summary.SessionID], &cp)

	marked := make(map[string]bool, len(coveredIDs))
	for _, id := range coveredIDs {
		marked[id] = true
	}
	for _, msg := range m.messages[summary.SessionID] {
		if marked[msg.ID] {
			msg.Summarized = true
		}
	}

	id := summary.ID
	sess.CurrentSummaryID = &id
	sess.UpdatedAt = time.Now().UnixMilli()
	return nil
}

func (m memSummaries) GetCurrent(_ context.Context, sessionID string) (*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if sess.CurrentSummaryID == nil {
		return nil, nil
	}
	for _, sum := range m.summaries[sessionID] {
		if sum.ID == *sess.CurrentSummaryID {
			cp := *sum
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memSummaries) ListBySession(_ context.Context, sessionID string) ([]models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Summary, 0, len(m.summaries[sessionID]))
	for _, sum := range m.summaries[sessionID] {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}
