package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
	"github.com/parleyhq/parley-backend/internal/tokenizer"
)

// ContextState is the per-session staleness verdict, derived on every
// request from the session row and message counts. It is never stored.
type ContextState int

const (
	// StateFresh: no summary exists yet and the session is inside the
	// activity window.
	StateFresh ContextState = iota
	// StateCacheValid: inside the activity window; no summarization is
	// attempted regardless of message count.
	StateCacheValid
	// StateBelowThreshold: the window elapsed but too few meaningful
	// messages accumulated to be worth summarizing.
	StateBelowThreshold
	// StateSummarizationDue: the window elapsed and the threshold is met.
	StateSummarizationDue
)

func (s ContextState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateCacheValid:
		return "cache-valid"
	case StateBelowThreshold:
		return "below-threshold"
	case StateSummarizationDue:
		return "summarization-due"
	default:
		return "unknown"
	}
}

// Engine decides what context the next generation call should see and
// enforces the policy that bounds context growth: sessions idle past the
// expiry window with enough meaningful messages get summarized before the
// next turn proceeds.
type Engine struct {
	sessions   repository.SessionRepository
	messages   repository.MessageRepository
	summaries  repository.SummaryRepository
	content    repository.ContentStore
	estimator  tokenizer.Estimator
	summarizer *Summarizer
	cfg        config.ContextConfig
	logger     *logrus.Logger
}

func NewEngine(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	summaries repository.SummaryRepository,
	content repository.ContentStore,
	estimator tokenizer.Estimator,
	summarizer *Summarizer,
	cfg config.ContextConfig,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		sessions:   sessions,
		messages:   messages,
		summaries:  summaries,
		content:    content,
		estimator:  estimator,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// evaluate derives the context state from the session's last activity and
// the count of meaningful (assistant-authored, unsummarized) messages.
func (e *Engine) evaluate(sess *models.Session, meaningful int, now time.Time) ContextState {
	idle := now.Sub(time.UnixMilli(sess.LastActivityAt))
	window := time.Duration(e.cfg.CacheExpiryMinutes) * time.Minute

	if idle < window {
		if sess.CurrentSummaryID == nil {
			return StateFresh
		}
		return StateCacheValid
	}
	if meaningful < e.cfg.MeaningfulThreshold {
		return StateBelowThreshold
	}
	return StateSummarizationDue
}

// maybeSummarize runs one summarization pass when the state machine says one
// is due. The requesting turn pays the cost synchronously; there is no
// background job to race with.
func (e *Engine) maybeSummarize(ctx context.Context, sess *models.Session) error {
	meaningful, err := e.messages.CountMeaningful(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to count meaningful messages: %w", err)
	}

	state := e.evaluate(sess, meaningful, time.Now())
	e.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"state":      state.String(),
		"meaningful": meaningful,
	}).Debug("context state evaluated")

	if state != StateSummarizationDue {
		return nil
	}

	_, err = e.summarizer.Run(ctx, sess.ID)
	return err
}

// BuildContext answers "what should the next generation call see" for a
// session. If summarization is due it runs first, synchronously, so the
// returned package never contains messages that should have been folded
// into a summary.
func (e *Engine) BuildContext(ctx context.Context, sessionID string) (*models.ContextPackage, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := e.maybeSummarize(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to summarize session: %w", err)
	}

	return e.assemble(ctx, sessionID)
}

// HandleUserMessage is the full turn entry sequence: evaluate staleness
// against the state before this message arrives, summarize if due, append
// the user message, then assemble the context package for the producer.
// Staleness runs first so the summary closes over the idle conversation,
// not over the message that just ended the idleness.
func (e *Engine) HandleUserMessage(ctx context.Context, sessionID, content string, meta *models.MessageMeta) (*models.ContextPackage, *models.Message, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := e.maybeSummarize(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("failed to summarize session: %w", err)
	}

	msg, err := e.AddMessage(ctx, sessionID, models.RoleUser, content, meta)
	if err != nil {
		return nil, nil, err
	}

	pkg, err := e.assemble(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	return pkg, msg, nil
}

// assemble builds the context package from the current summary and the
// unsummarized message window.
func (e *Engine) assemble(ctx context.Context, sessionID string) (*models.ContextPackage, error) {
	pkg := &models.ContextPackage{ActiveMessages: []models.ChatMessage{}}

	current, err := e.summaries.GetCurrent(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		text, err := e.resolveContent(ctx, sessionID, current.ContentID, "summary", current.ID)
		if err != nil {
			return nil, err
		}
		pkg.SummaryText = &text
		pkg.HasSummary = true
	}

	active, err := e.messages.ListUnsummarized(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsummarized messages: %w", err)
	}
	for _, msg := range active {
		text, err := e.resolveContent(ctx, sessionID, msg.ContentID, "message", msg.ID)
		if err != nil {
			return nil, err
		}
		pkg.ActiveMessages = append(pkg.ActiveMessages, models.ChatMessage{
			Role:    msg.Role,
			Content: text,
		})
	}
	pkg.ActiveMessageCount = len(pkg.ActiveMessages)

	return pkg, nil
}

// AddMessage estimates the token count, stores the content blob, then
// creates the index record. Content goes first: a crash between the two
// steps leaves an orphaned blob, never an index record pointing at nothing.
func (e *Engine) AddMessage(ctx context.Context, sessionID string, role models.Role, content string, meta *models.MessageMeta) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid message role %q", role)
	}
	if _, err := e.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UnixMilli()

	rec := &models.ContentRecord{
		ID:        id,
		SessionID: sessionID,
		Role:      string(role),
		Content:   content,
		CreatedAt: now,
	}
	if meta != nil {
		rec.ToolUsed = meta.ToolUsed
		rec.Sources = meta.Sources
		rec.Metadata = meta.Metadata
	}

	if err := e.content.Put(ctx, sessionID, id, rec); err != nil {
		return nil, fmt.Errorf("failed to store message content: %w", err)
	}

	msg := &models.Message{
		ID:         id,
		SessionID:  sessionID,
		Role:       role,
		ContentID:  id,
		TokenCount: e.estimator.Count(content),
		CreatedAt:  now,
	}
	if err := e.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// GetMessage returns one message joined with its content
func (e *Engine) GetMessage(ctx context.Context, sessionID, messageID string) (*models.MessageView, error) {
	msg, err := e.messages.Get(ctx, sessionID, messageID)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, msg)
}

// ListMessages returns a page of messages joined with their content,
// oldest-first within the page. A zero limit falls back to the configured
// default page size.
func (e *Engine) ListMessages(ctx context.Context, sessionID string, limit int, beforeID string) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = e.cfg.DefaultPageSize
	}

	msgs, err := e.messages.ListPage(ctx, sessionID, limit, beforeID)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for i := range msgs {
		v, err := e.view(ctx, &msgs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}

	return views, nil
}

// CreateSession creates an empty session. Title may be empty; titling fills
// it in later, best effort.
func (e *Engine) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	sess := &models.Session{Title: title}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session and its most recent page of messages
func (e *Engine) GetSession(ctx context.Context, id string) (*models.Session, []models.MessageView, error) {
	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	page, err := e.ListMessages(ctx, id, e.cfg.DefaultPageSize, "")
	if err != nil {
		return nil, nil, err
	}

	return sess, page, nil
}

// ListSessions returns every session, most recently updated first
func (e *Engine) ListSessions(ctx context.Context) ([]models.Session, error) {
	return e.sessions.List(ctx)
}

// RenameSession sets the session title. Renaming is metadata-only and does
// not count as conversational activity, so no activity timestamp moves.
func (e *Engine) RenameSession(ctx context.Context, id, title string) (*models.Session, error) {
	if err := e.sessions.UpdateTitle(ctx, id, title); err != nil {
		return nil, err
	}
	return e.sessions.Get(ctx, id)
}

// DeleteSession removes the session's index state (cascading to messages
// and summaries) and then its content blobs. Index first: a crash in
// between strands blobs, which is harmless, instead of index records with
// missing content. Deleting an already-deleted session is a no-op.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	if err := e.sessions.Delete(ctx, id); err != nil {
		return err
	}
	if err := e.content.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session content: %w", err)
	}
	return nil
}

// Summarize runs one summarization pass unconditionally, for maintenance
// callers. An empty unsummarized window is a no-op, not an error.
func (e *Engine) Summarize(ctx context.Context, sessionID string) (*models.Summary, error) {
	if _, err := e.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.summarizer.Run(ctx, sessionID)
}

func (e *Engine) view(ctx context.Context, msg *models.Message) (*models.MessageView, error) {
	view := &models.MessageView{Message: *msg}

	rec, err := e.content.Get(ctx, msg.SessionID, msg.ContentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load content %s: %w", msg.ContentID, err)
	}
	if rec == nil {
		e.logInconsistency(msg.SessionID, msg.ContentID, "message", msg.ID)
		return view, nil
	}

	view.Content = rec.Content
	view.ToolUsed = rec.ToolUsed
	view.Sources = rec.Sources
	view.Metadata = rec.Metadata
	return view, nil
}

// resolveContent loads a blob the index says exists. A missing blob is a
// data-integrity fault: logged loudly, substituted with an empty string so
// the session stays usable. Transport failures propagate normally.
func (e *Engine) resolveContent(ctx context.Context, sessionID, contentID, kind, recordID string) (string, error) {
	rec, err := e.content.Get(ctx, sessionID, contentID)
	if err != nil {
		return "", fmt.Errorf("failed to load content %s: %w", contentID, err)
	}
	if rec == nil {
		e.logInconsistency(sessionID, contentID, kind, recordID)
		return "", nil
	}
	return rec.Content, nil
}

func (e *Engine) logInconsistency(sessionID, contentID, kind, recordID string) {
	e.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"content_id": contentID,
		"record":     kind,
		"record_id":  recordID,
	}).Error("storage inconsistency: index record references missing content")
}
