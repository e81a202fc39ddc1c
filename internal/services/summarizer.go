package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
	"github.com/parleyhq/parley-backend/internal/tokenizer"
)

// recencyWindow is how many trailing batch messages get the higher-recency
// tag in the summarization request.
const recencyWindow = 3

const summarySystemPrompt = `You maintain a running summary of a conversation between a user and an assistant.

Write:
1. A short statement of what the conversation is about.
2. The key discussion points so far.
3. Any instructions or preferences the user has stated, preserved explicitly.
4. Important facts, figures, and decisions.

Messages tagged [recent] are the newest; keep more verbatim detail for them.
Fold the previous summary, when given, into the new one instead of repeating
it. Keep the whole summary under 500 words. Do not add opinions or anything
that is not in the conversation.`

// Summarizer folds a session's unsummarized messages into a new summary
// record. A pass reads the then-current unsummarized window, so re-running
// after a success is a no-op and re-running after a failure retries cleanly.
type Summarizer struct {
	messages  repository.MessageRepository
	summaries repository.SummaryRepository
	content   repository.ContentStore
	estimator tokenizer.Estimator
	client    backend.Client
	logger    *logrus.Logger
}

func NewSummarizer(
	messages repository.MessageRepository,
	summaries repository.SummaryRepository,
	content repository.ContentStore,
	estimator tokenizer.Estimator,
	client backend.Client,
	logger *logrus.Logger,
) *Summarizer {
	return &Summarizer{
		messages:  messages,
		summaries: summaries,
		content:   content,
		estimator: estimator,
		client:    client,
		logger:    logger,
	}
}

// Run executes one summarization pass for the session. It returns the new
// summary record, or (nil, nil) when there is nothing to summarize. On a
// backend failure nothing is written; the messages stay unsummarized and
// the next triggering request retries.
func (s *Summarizer) Run(ctx context.Context, sessionID string) (*models.Summary, error) {
	previous := ""
	current, err := s.summaries.GetCurrent(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current summary: %w", err)
	}
	if current != nil {
		rec, err := s.content.Get(ctx, sessionID, current.ContentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load summary content: %w", err)
		}
		if rec == nil {
			s.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"content_id": current.ContentID,
				"record":     "summary",
				"record_id":  current.ID,
			}).Error("storage inconsistency: index record references missing content")
		} else {
			previous = rec.Content
		}
	}

	batch, err := s.messages.ListUnsummarized(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsummarized messages: %w", err)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	body, err := s.renderBatch(ctx, sessionID, previous, batch)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Complete(ctx, backend.Request{
		Task:   backend.TaskSummarize,
		System: summarySystemPrompt,
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: body},
		},
		Temperature: 0.2,
		MaxTokens:   768,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, &backend.Error{Code: backend.CodeBadResponse, Message: "summarizer returned empty text"}
	}

	summary := &models.Summary{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		TokenCount:      s.estimator.Count(text),
		CoversMessageID: batch[len(batch)-1].ID,
		CreatedAt:       time.Now().UnixMilli(),
	}
	summary.ContentID = summary.ID

	// Blob before index record, same as message append.
	err = s.content.Put(ctx, sessionID, summary.ContentID, &models.ContentRecord{
		ID:        summary.ContentID,
		SessionID: sessionID,
		Role:      models.RoleSummary,
		Content:   text,
		CreatedAt: summary.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store summary content: %w", err)
	}

	covered := make([]string, len(batch))
	for i, msg := range batch {
		covered[i] = msg.ID
	}
	if err := s.summaries.Create(ctx, summary, covered); err != nil {
		return nil, fmt.Errorf("failed to create summary record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"summary_id": summary.ID,
		"covered":    len(covered),
		"tokens":     summary.TokenCount,
	}).Info("session summarized")

	return summary, nil
}

// renderBatch builds the summarization request body: the previous summary
// as prior context, then every batch message as "role: content" with the
// trailing recencyWindow messages tagged.
func (s *Summarizer) renderBatch(ctx context.Context, sessionID, previous string, batch []models.Message) (string, error) {
	var b strings.Builder

	if previous != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(previous)
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation:\n")

	recentFrom := len(batch) - recencyWindow
	for i, msg := range batch {
		rec, err := s.content.Get(ctx, sessionID, msg.ContentID)
		if err != nil {
			return "", fmt.Errorf("failed to load content %s: %w", msg.ContentID, err)
		}
		text := ""
		if rec == nil {
			s.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"content_id": msg.ContentID,
				"record":     "message",
				"record_id":  msg.ID,
			}).Error("storage inconsistency: index record references missing content")
		} else {
			text = rec.Content
		}

		if i >= recentFrom {
			fmt.Fprintf(&b, "[recent] %s: %s\n", msg.Role, text)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, text)
		}
	}

	return b.String(), nil
}
