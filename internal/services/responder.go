package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/nlp"
)

const titleTimeout = 30 * time.Second

// Responder is the response producer: it classifies the incoming message,
// assembles the system prompt for that intent, runs the turn through the
// context engine, and appends the generated reply.
type Responder struct {
	engine     *Engine
	titler     *Titler
	classifier nlp.Classifier
	client     backend.Client
	logger     *logrus.Logger
}

func NewResponder(
	engine *Engine,
	titler *Titler,
	classifier nlp.Classifier,
	client backend.Client,
	logger *logrus.Logger,
) *Responder {
	return &Responder{
		engine:     engine,
		titler:     titler,
		classifier: classifier,
		client:     client,
		logger:     logger,
	}
}

// Respond runs one blocking turn: append the user message, generate the
// assistant reply, persist it, and return it joined with its content.
func (r *Responder) Respond(ctx context.Context, sessionID, content string) (*models.MessageView, error) {
	pkg, _, err := r.engine.HandleUserMessage(ctx, sessionID, content, nil)
	if err != nil {
		return nil, err
	}

	cls := r.classify(ctx, content)

	resp, err := r.client.Complete(ctx, backend.Request{
		Task:     backend.TaskRespond,
		System:   ComposeSystemPrompt(baseSystemPrompt, capabilitiesFor(cls.Intent), ""),
		Messages: r.producerMessages(pkg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	meta := r.replyMeta(cls, resp.Model)
	assistant, err := r.engine.AddMessage(ctx, sessionID, models.RoleAssistant, resp.Content, meta)
	if err != nil {
		return nil, err
	}

	r.scheduleTitle(sessionID)

	return &models.MessageView{
		Message:  *assistant,
		Content:  resp.Content,
		Metadata: meta.Metadata,
	}, nil
}

// RespondStream runs one streaming turn. Chunks are forwarded as they
// arrive; once the stream finishes cleanly the accumulated reply is
// persisted as the assistant message. The channel closes when the turn is
// over.
func (r *Responder) RespondStream(ctx context.Context, sessionID, content string) (<-chan backend.StreamChunk, error) {
	pkg, _, err := r.engine.HandleUserMessage(ctx, sessionID, content, nil)
	if err != nil {
		return nil, err
	}

	cls := r.classify(ctx, content)

	upstream, err := r.client.Stream(ctx, backend.Request{
		Task:     backend.TaskRespond,
		System:   ComposeSystemPrompt(baseSystemPrompt, capabilitiesFor(cls.Intent), ""),
		Messages: r.producerMessages(pkg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open reply stream: %w", err)
	}

	out := make(chan backend.StreamChunk)
	go func() {
		defer close(out)

		var full strings.Builder
		failed := false

		for chunk := range upstream {
			if chunk.Err != nil {
				failed = true
			}
			if chunk.Content != "" {
				full.WriteString(chunk.Content)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}

		if failed || full.Len() == 0 {
			return
		}

		if _, err := r.engine.AddMessage(ctx, sessionID, models.RoleAssistant, full.String(), r.replyMeta(cls, "")); err != nil {
			r.logger.WithError(err).WithField("session_id", sessionID).Error("failed to persist streamed reply")
			return
		}
		r.scheduleTitle(sessionID)
	}()

	return out, nil
}

func (r *Responder) classify(ctx context.Context, content string) *nlp.Classification {
	cls, err := r.classifier.Classify(ctx, content)
	if err != nil || cls == nil {
		// The composed classifier falls back internally; this guards a
		// future strategy that does not.
		return &nlp.Classification{Intent: nlp.IntentChat}
	}
	return cls
}

// producerMessages prepends the summary, when one exists, as a single
// synthetic system item ahead of the active messages.
func (r *Responder) producerMessages(pkg *models.ContextPackage) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(pkg.ActiveMessages)+1)
	if pkg.HasSummary && pkg.SummaryText != nil && *pkg.SummaryText != "" {
		msgs = append(msgs, models.ChatMessage{
			Role:    models.RoleSystem,
			Content: "Summary of the conversation so far:\n" + *pkg.SummaryText,
		})
	}
	return append(msgs, pkg.ActiveMessages...)
}

func (r *Responder) replyMeta(cls *nlp.Classification, model string) *models.MessageMeta {
	meta := &models.MessageMeta{
		Metadata: models.JSONB{"intent": string(cls.Intent)},
	}
	if model != "" {
		meta.Metadata["model"] = model
	}
	if len(cls.Tools) > 0 {
		meta.Metadata["tools"] = cls.Tools
	}
	return meta
}

// scheduleTitle fires title generation off the request path. The request
// context is gone by the time it runs, so it gets its own deadline.
func (r *Responder) scheduleTitle(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()
		r.titler.MaybeGenerate(ctx, sessionID)
	}()
}
