package backend

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/config"
)

// OpenAIClient implements Client against the OpenAI chat completions API
// (or anything speaking it, via base_url). Each task runs through its own
// circuit breaker so a flapping summarize model cannot also take down
// titling.
type OpenAIClient struct {
	client  *openai.Client
	cfg     config.BackendConfig
	breaker *CircuitBreaker
	logger  *logrus.Logger
	timeout time.Duration
}

// NewOpenAIClient creates the production generation backend client
func NewOpenAIClient(cfg config.BackendConfig, logger *logrus.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		breaker: NewCircuitBreaker(logger),
		logger:  logger,
		timeout: timeout,
	}
}

func (c *OpenAIClient) model(task TaskType) string {
	switch task {
	case TaskSummarize:
		return c.cfg.SummarizeModel
	case TaskTitle:
		return c.cfg.TitleModel
	case TaskClassify:
		return c.cfg.ClassifyModel
	default:
		return c.cfg.ReplyModel
	}
}

// Complete performs a non-streaming completion
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	var resp *Response

	err := c.breaker.Execute(string(req.Task), func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		r, err := c.client.CreateChatCompletion(callCtx, c.convertRequest(req, false))
		if err != nil {
			return classifyError(err)
		}
		if len(r.Choices) == 0 {
			return &Error{Code: CodeBadResponse, Message: "backend returned no choices"}
		}

		c.logger.WithFields(logrus.Fields{
			"task":     req.Task,
			"model":    r.Model,
			"tokens":   r.Usage.TotalTokens,
			"duration": time.Since(start),
		}).Debug("backend completion finished")

		resp = &Response{
			Content: r.Choices[0].Message.Content,
			Model:   r.Model,
			Usage: Usage{
				PromptTokens:     r.Usage.PromptTokens,
				CompletionTokens: r.Usage.CompletionTokens,
				TotalTokens:      r.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// Stream performs a streaming completion. The returned channel closes when
// the stream ends; a terminal error arrives as a chunk with Err set.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	var stream *openai.ChatCompletionStream

	err := c.breaker.Execute(string(req.Task), func() error {
		s, err := c.client.CreateChatCompletionStream(ctx, c.convertRequest(req, true))
		if err != nil {
			return classifyError(err)
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				c.send(ctx, chunks, StreamChunk{FinishReason: "stop"})
				return
			}
			if err != nil {
				c.send(ctx, chunks, StreamChunk{Err: classifyError(err)})
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			choice := response.Choices[0]
			if choice.Delta.Content != "" {
				if !c.send(ctx, chunks, StreamChunk{Content: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason != "" {
				c.send(ctx, chunks, StreamChunk{FinishReason: string(choice.FinishReason)})
				return
			}
		}
	}()

	return chunks, nil
}

// send delivers a chunk unless the consumer is gone
func (c *OpenAIClient) send(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// convertRequest maps a backend request onto the wire format
func (c *OpenAIClient) convertRequest(req Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.model(req.Task),
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

// classifyError folds transport and API failures into the backend error
// taxonomy. Timeouts, rate limits, and server-side failures are transient;
// a request the API rejected outright is not.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Message: "backend call timed out", Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &Error{Code: CodeRateLimited, Message: "backend rate limited", Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &Error{Code: CodeUnavailable, Message: "backend unavailable", Err: err}
		default:
			return &Error{Code: CodeRejected, Message: "backend rejected request", Err: err}
		}
	}

	return &Error{Code: CodeUnavailable, Message: "backend call failed", Err: err}
}
