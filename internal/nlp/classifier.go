// Package nlp classifies user messages into intents so the responder can
// pick capabilities and tools. Classification output is advisory: the
// context engine never branches on it.
package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/models"
)

type Intent string

const (
	IntentChat     Intent = "chat"
	IntentSearch   Intent = "search"
	IntentResearch Intent = "research"
	IntentStudy    Intent = "study"
	IntentCode     Intent = "code"
	IntentCreative Intent = "creative"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentChat, IntentSearch, IntentResearch, IntentStudy, IntentCode, IntentCreative:
		return true
	}
	return false
}

// Classification is the tagged result both strategies produce.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Tools      []string `json:"tools,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, message string) (*Classification, error)
}

// patternConfidenceCap bounds what keyword matching may claim. Pattern
// results are a fallback and should never outrank a model verdict.
const patternConfidenceCap = 0.6

var intentPatterns = []struct {
	intent   Intent
	tools    []string
	keywords []string
}{
	{IntentResearch, []string{"web_search", "fetch_url"},
		[]string{"research", "investigate", "deep dive", "in depth", "compare", "pros and cons"}},
	{IntentSearch, []string{"web_search"},
		[]string{"search", "look up", "lookup", "find out", "latest", "news about", "current"}},
	{IntentStudy, []string{"fetch_url"},
		[]string{"study", "teach me", "explain", "quiz me", "learn about", "walk me through"}},
	{IntentCode, nil,
		[]string{"code", "function", "debug", "error", "bug", "implement", "refactor", "compile", "script"}},
	{IntentCreative, nil,
		[]string{"write a story", "poem", "brainstorm", "imagine", "lyrics", "creative"}},
}

// PatternClassifier matches keyword lists against the lowercased message.
// It never fails, so it can back a model strategy that does.
type PatternClassifier struct{}

func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

func (p *PatternClassifier) Classify(_ context.Context, message string) (*Classification, error) {
	lower := strings.ToLower(message)

	best := &Classification{Intent: IntentChat, Confidence: 0.3}
	bestHits := 0

	for _, pattern := range intentPatterns {
		hits := 0
		for _, kw := range pattern.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			confidence := 0.3 + 0.15*float64(hits)
			if confidence > patternConfidenceCap {
				confidence = patternConfidenceCap
			}
			best = &Classification{
				Intent:     pattern.intent,
				Confidence: confidence,
				Tools:      pattern.tools,
			}
			bestHits = hits
		}
	}

	return best, nil
}

const classifySystemPrompt = `You classify a user message for a conversational assistant.

Respond ONLY with valid JSON, no markdown and no code fences:
{"intent": "chat" | "search" | "research" | "study" | "code" | "creative",
 "confidence": 0.0-1.0,
 "tools": ["web_search", "fetch_url"]}

Use "search" for questions needing current information, "research" for
multi-source investigation, "study" for learning and explanation requests,
"code" for programming help, "creative" for writing and brainstorming, and
"chat" for everything else. Include only the tools the task needs; omit the
field when none apply.`

// ModelClassifier asks the generation backend for a structured verdict.
type ModelClassifier struct {
	client backend.Client
}

func NewModelClassifier(client backend.Client) *ModelClassifier {
	return &ModelClassifier{client: client}
}

func (m *ModelClassifier) Classify(ctx context.Context, message string) (*Classification, error) {
	resp, err := m.client.Complete(ctx, backend.Request{
		Task:   backend.TaskClassify,
		System: classifySystemPrompt,
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: message},
		},
		Temperature: 0,
		MaxTokens:   128,
	})
	if err != nil {
		return nil, err
	}

	return parseClassification(resp.Content)
}

// parseClassification decodes and validates the model's JSON verdict.
func parseClassification(content string) (*Classification, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode classification: %w (raw: %.120s)", err, content)
	}

	if !c.Intent.Valid() {
		return nil, fmt.Errorf("unknown intent %q", c.Intent)
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	return &c, nil
}

type fallbackClassifier struct {
	model   Classifier
	pattern Classifier
	logger  *logrus.Logger
}

// New composes the production classifier: model verdict first, keyword
// patterns when the model call or its output fails.
func New(client backend.Client, logger *logrus.Logger) Classifier {
	return &fallbackClassifier{
		model:   NewModelClassifier(client),
		pattern: NewPatternClassifier(),
		logger:  logger,
	}
}

func (f *fallbackClassifier) Classify(ctx context.Context, message string) (*Classification, error) {
	c, err := f.model.Classify(ctx, message)
	if err != nil {
		f.logger.WithError(err).Warn("model classification failed, using pattern fallback")
		return f.pattern.Classify(ctx, message)
	}
	return c, nil
}
