package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"maestro-builder/backend/internal/background"
	"maestro-builder/backend/internal/supervisor"
)

// ChatRequest is the input for the synchronous, asynchronous and streaming
// orchestration endpoints.
type ChatRequest struct {
	Content string `json:"content"`
	ChatID  string `json:"chat_id"`
}

// SubmitResponse acknowledges an accepted background request.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
	ChatID    string `json:"chat_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ensureChatSession resolves the session id for a request, creating a new
// session when none is given, or one with the supplied id when it does not
// exist yet.
func (s *Server) ensureChatSession(c echo.Context, chatID string) (string, error) {
	ctx := c.Request().Context()
	if chatID != "" {
		session, err := s.store.GetChatSession(ctx, chatID)
		if err != nil {
			return "", err
		}
		if session != nil {
			return chatID, nil
		}
	}
	return s.store.CreateChatSession(ctx, chatID, "")
}

// HandleChat runs the full orchestration pipeline synchronously.
// (POST /api/v1/chat)
func (s *Server) HandleChat(c echo.Context) error {
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

	result, err := s.sup.ProcessWithFallback(c.Request().Context(), req.Content, chatID)
	if err != nil {
		if supervisor.IsUpstreamError(err) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// HandleSubmitRequest enqueues a request for background processing and
// returns immediately.
// (POST /api/v1/requests)
func (s *Server) HandleSubmitRequest(c echo.Context) error {
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

	requestID := s.proc.Submit(req.Content, chatID)
	return c.JSON(http.StatusAccepted, SubmitResponse{
		RequestID: requestID,
		ChatID:    chatID,
		Status:    "processing",
		Message:   "Request accepted for background processing",
	})
}

// HandlePollResult returns the outcome of a background request. A terminal
// result is handed out exactly once; polling again afterwards reports the
// request as unknown.
// (GET /api/v1/requests/:request_id)
func (s *Server) HandlePollResult(c echo.Context) error {
	record := s.proc.TakeResult(c.Param("request_id"))
	if record == nil {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "processing",
			"message": "Result not ready yet",
		})
	}
	if record.Status == background.StatusError {
		return c.JSON(http.StatusOK, map[string]any{
			"error":   true,
			"message": record.Err.Message,
		})
	}
	return c.JSON(http.StatusOK, record.Result)
}

// HandlePollStatus drains the status lines recorded for a chat since the
// previous poll.
// (GET /api/v1/chats/:chat_id/status)
func (s *Server) HandlePollStatus(c echo.Context) error {
	chatID := c.Param("chat_id")
	entries := s.proc.StatusLog().DrainNew(chatID)
	if entries == nil {
		entries = []background.StatusEntry{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"chat_id": chatID,
		"entries": entries,
	})
}

// HandleClearStatus discards the status lines and cursor for a chat.
// (DELETE /api/v1/chats/:chat_id/status)
func (s *Server) HandleClearStatus(c echo.Context) error {
	s.proc.StatusLog().Clear(c.Param("chat_id"))
	return c.JSON(http.StatusOK, map[string]string{"message": "Status log cleared"})
}

type editYamlRequest struct {
	Yaml        string `json:"yaml"`
	Instruction string `json:"instruction"`
	FileType    string `json:"file_type"`
}

// HandleEditYaml applies an edit instruction to a YAML document supplied by
// the caller, without touching any stored session state.
// (POST /api/v1/edit_yaml)
func (s *Server) HandleEditYaml(c echo.Context) error {
	var req editYamlRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Yaml == "" || req.Instruction == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Both yaml and instruction are required")
	}
	fileType := req.FileType
	if fileType == "" {
		fileType = "yaml"
	}

	edited, err := s.sup.EditYAML(c.Request().Context(), req.Yaml, fileType, req.Instruction)
	if err != nil {
		if supervisor.IsUpstreamError(err) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"edited_yaml": edited})
}
