package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
)

const titleSystemPrompt = `Name this conversation from the user's opening message. Respond with only the title: 3 to 6 words, no quotes, no trailing punctuation.`

// titleSeedLimit caps how much of the first user message is sent for
// titling; openers longer than this carry no extra signal.
const titleSeedLimit = 500

// Titler sets a session title from the first user message. It runs off the
// request path, never touches activity timestamps, and treats every failure
// as ignorable: an untitled session is a valid, displayable state.
type Titler struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	content  repository.ContentStore
	client   backend.Client
	logger   *logrus.Logger
}

func NewTitler(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	content repository.ContentStore,
	client backend.Client,
	logger *logrus.Logger,
) *Titler {
	return &Titler{
		sessions: sessions,
		messages: messages,
		content:  content,
		client:   client,
		logger:   logger,
	}
}

// MaybeGenerate titles the session once it has at least two messages and no
// title yet. Any failure is logged and swallowed.
func (t *Titler) MaybeGenerate(ctx context.Context, sessionID string) {
	log := t.logger.WithField("session_id", sessionID)

	sess, err := t.sessions.Get(ctx, sessionID)
	if err != nil {
		log.WithError(err).Debug("title generation skipped: session gone")
		return
	}
	if sess.Title != "" {
		return
	}

	count, err := t.messages.Count(ctx, sessionID)
	if err != nil {
		log.WithError(err).Warn("title generation skipped: count failed")
		return
	}
	if count < 2 {
		return
	}

	first, err := t.messages.FirstByRole(ctx, sessionID, models.RoleUser)
	if err != nil {
		log.WithError(err).Warn("title generation skipped: lookup failed")
		return
	}
	if first == nil {
		return
	}

	rec, err := t.content.Get(ctx, sessionID, first.ContentID)
	if err != nil || rec == nil || rec.Content == "" {
		log.Warn("title generation skipped: first message content unavailable")
		return
	}

	seed := rec.Content
	if len(seed) > titleSeedLimit {
		seed = seed[:titleSeedLimit]
	}

	resp, err := t.client.Complete(ctx, backend.Request{
		Task:   backend.TaskTitle,
		System: titleSystemPrompt,
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: seed},
		},
		Temperature: 0.7,
		MaxTokens:   16,
	})
	if err != nil {
		log.WithError(err).Warn("failed to generate session title")
		return
	}

	title := cleanTitle(resp.Content)
	if title == "" {
		return
	}

	if err := t.sessions.UpdateTitle(ctx, sessionID, title); err != nil {
		log.WithError(err).Warn("failed to store session title")
		return
	}

	log.WithField("title", title).Debug("session titled")
}

// cleanTitle normalizes model output into a displayable title: first line
// only, surrounding quotes stripped, trailing punctuation trimmed.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'`)
	title = strings.TrimRight(title, ".,!;:")
	return strings.TrimSpace(title)
}
