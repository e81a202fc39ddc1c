package backend

import (
	"context"

	"github.com/parleyhq/parley-backend/internal/models"
)

// TaskType names the purpose of a generation call. Configuration maps each
// task to its own model so summaries and titles can run on something cheaper
// than end-user replies.
type TaskType string

const (
	TaskRespond   TaskType = "respond"
	TaskSummarize TaskType = "summarize"
	TaskTitle     TaskType = "title"
	TaskClassify  TaskType = "classify"
)

// Request is one generation call
type Request struct {
	Task        TaskType             `json:"task"`
	System      string               `json:"system,omitempty"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float32              `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

// Response is the completed generation
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one increment of a streaming response. Exactly one of
// Content, FinishReason, or Err is meaningful per chunk.
type StreamChunk struct {
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Err          error  `json:"-"`
}

// Client is the generation backend boundary. Both the response producer and
// the context engine's summarization subroutine speak through it.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
