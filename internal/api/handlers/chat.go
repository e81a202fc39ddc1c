package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/services"
)

// ChatRequest is the wire form of one chat turn
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// StreamChunk is the wire form of one streamed reply fragment
type StreamChunk struct {
	Type    string `json:"type"` // "content", "done" or "error"
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatHandler handles chat requests
type ChatHandler struct {
	svc    *services.Services
	logger *logrus.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(svc *services.Services, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// Chat handles POST /api/v1/chat and blocks until the full reply is ready
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id and message are required",
		})
	}

	reply, err := h.svc.Responder.Respond(c.Context(), req.SessionID, req.Message)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(reply)
}

// StreamChatSSE handles POST /api/v1/chat/stream, delivering the reply as
// server-sent events
func (h *ChatHandler) StreamChatSSE(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id and message are required",
		})
	}

	// Open the stream before switching the response to SSE so setup
	// failures still produce a JSON status.
	stream, err := h.svc.Responder.RespondStream(c.Context(), req.SessionID, req.Message)
	if err != nil {
		return errorJSON(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for chunk := range stream {
			data, err := json.Marshal(wireChunk(chunk))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()
		}
		fmt.Fprintf(w, "data: [DONE]\n\n")
		w.Flush()
	})

	return nil
}

// StreamChat handles WebSocket /ws/chat. The client sends one ChatRequest
// per turn and receives chunks until a "done" or "error" chunk.
func (h *ChatHandler) StreamChat(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WithError(err).Debug("websocket closed unexpectedly")
			}
			return
		}
		if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
			if err := conn.WriteJSON(StreamChunk{Type: "error", Error: "session_id and message are required"}); err != nil {
				return
			}
			continue
		}

		// The upgraded connection outlives the HTTP request, so the
		// stream runs on a background context.
		stream, err := h.svc.Responder.RespondStream(context.Background(), req.SessionID, req.Message)
		if err != nil {
			if err := conn.WriteJSON(StreamChunk{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		for chunk := range stream {
			if err := conn.WriteJSON(wireChunk(chunk)); err != nil {
				// Client is gone. Drain the stream so the producer
				// goroutine can finish and persist the reply.
				for range stream {
				}
				return
			}
		}
	}
}

// wireChunk converts a backend stream chunk to its wire form
func wireChunk(chunk backend.StreamChunk) StreamChunk {
	switch {
	case chunk.Err != nil:
		return StreamChunk{Type: "error", Error: chunk.Err.Error()}
	case chunk.FinishReason != "":
		return StreamChunk{Type: "done"}
	default:
		return StreamChunk{Type: "content", Content: chunk.Content}
	}
}
