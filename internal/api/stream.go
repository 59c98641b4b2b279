package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/supervisor"
)

const logTailInterval = 500 * time.Millisecond

// HandleChatStream runs the orchestration pipeline while streaming progress
// events to the client as newline-delimited JSON. The stream always closes
// with a done event, after either a final or an error event.
// (POST /api/v1/chat/stream)
func (s *Server) HandleChatStream(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Message content is required")
	}

	chatID, err := s.ensureChatSession(c, req.ChatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error resolving chat session: "+err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	err = s.sup.StreamEvents(c.Request().Context(), req.Content, chatID, func(ev supervisor.Event) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		resp.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Chat stream for %s ended early: %v", chatID, err)
	}
	return nil
}

type logEvent struct {
	Type    string `json:"type"`
	Source  string `json:"source,omitempty"`
	Line    string `json:"line,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandleLogStream tails a named log file and pushes each new line to the
// client over Server-Sent Events. The stream runs until the client
// disconnects; a missing file is waited for rather than reported.
// (GET /api/v1/logs/stream?source=<name>&from_start=true)
func (s *Server) HandleLogStream(c echo.Context) error {
	source := c.QueryParam("source")
	if source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query parameter source is required")
	}
	fromStart := c.QueryParam("from_start") == "true"

	// filepath.Base keeps the lookup inside the log directory.
	path := filepath.Join(s.logDir, filepath.Base(source)+".log")

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	writeEvent := func(ev logEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	ctx := c.Request().Context()
	err := logging.TailFile(ctx, path, fromStart, logTailInterval, func(line string) error {
		return writeEvent(logEvent{Type: "log", Source: source, Line: line})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		_ = writeEvent(logEvent{Type: "error", Source: source, Message: err.Error()})
	}
	return nil
}
