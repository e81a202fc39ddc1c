package services

import (
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/nlp"
	"github.com/parleyhq/parley-backend/internal/repository"
	"github.com/parleyhq/parley-backend/internal/tokenizer"
)

// Services holds all service instances
type Services struct {
	Engine     *Engine
	Summarizer *Summarizer
	Titler     *Titler
	Responder  *Responder
}

// NewServices wires the service layer from its storage and backend
// dependencies.
func NewServices(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	summaries repository.SummaryRepository,
	content repository.ContentStore,
	estimator tokenizer.Estimator,
	client backend.Client,
	cfg config.ContextConfig,
	logger *logrus.Logger,
) *Services {
	summarizer := NewSummarizer(messages, summaries, content, estimator, client, logger)
	engine := NewEngine(sessions, messages, summaries, content, estimator, summarizer, cfg, logger)
	titler := NewTitler(sessions, messages, content, client, logger)
	responder := NewResponder(engine, titler, nlp.New(client, logger), client, logger)

	return &Services{
		Engine:     engine,
		Summarizer: summarizer,
		Titler:     titler,
		Responder:  responder,
	}
}
