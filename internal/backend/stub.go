package backend

import (
	"context"
	"sync"
)

// Stub is a scripted Client for tests. Responses are looked up by task;
// unscripted tasks get a generic reply so tests only script what they
// assert on.
type Stub struct {
	mu        sync.Mutex
	responses map[TaskType][]string
	served    map[TaskType]int
	failures  map[TaskType]error
	calls     []Request
}

func NewStub() *Stub {
	return &Stub{
		responses: make(map[TaskType][]string),
		served:    make(map[TaskType]int),
		failures:  make(map[TaskType]error),
	}
}

// Respond scripts the replies for a task, served in order. The last reply
// repeats once the script runs out.
func (s *Stub) Respond(task TaskType, replies ...string) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[task] = replies
	return s
}

// FailWith makes every call for task return err
func (s *Stub) FailWith(task TaskType, err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[task] = err
	return s
}

// Calls returns a copy of every request seen so far
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount reports how many requests were made for task
func (s *Stub) CallCount(task TaskType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if call.Task == task {
			n++
		}
	}
	return n
}

func (s *Stub) Complete(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)

	if err := s.failures[req.Task]; err != nil {
		return nil, err
	}

	content := "stub response"
	if replies := s.responses[req.Task]; len(replies) > 0 {
		idx := s.served[req.Task]
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		content = replies[idx]
		s.served[req.Task]++
	}

	return &Response{
		Content: content,
		Model:   "stub",
		Usage:   Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}, nil
}

func (s *Stub) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	resp, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk, 2)
	chunks <- StreamChunk{Content: resp.Content}
	chunks <- StreamChunk{FinishReason: "stop"}
	close(chunks)
	return chunks, nil
}
