// Package api contains the HTTP handlers for the builder service
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"maestro-builder/backend/internal/background"
	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/internal/supervisor"
	"maestro-builder/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	store  repository.ChatStore
	sup    *supervisor.Supervisor
	proc   *background.Processor
	logger *logging.Logger
	logDir string
}

// NewServer creates a new Server.
func NewServer(store repository.ChatStore, sup *supervisor.Supervisor, proc *background.Processor, logger *logging.Logger, logDir string) *Server {
	return &Server{
		store:  store,
		sup:    sup,
		proc:   proc,
		logger: logger,
		logDir: logDir,
	}
}

// RegisterRoutes mounts all handlers on the given group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/health", s.HandleHealth)

	g.POST("/chat", s.HandleChat)
	g.POST("/chat/stream", s.HandleChatStream)
	g.POST("/requests", s.HandleSubmitRequest)
	g.GET("/requests/:request_id", s.HandlePollResult)

	g.GET("/chats", s.HandleChatHistory)
	g.POST("/chats", s.HandleCreateChatSession)
	g.DELETE("/chats", s.HandleDeleteAllChatSessions)
	g.GET("/chats/:chat_id", s.HandleGetChatSession)
	g.DELETE("/chats/:chat_id", s.HandleDeleteChatSession)
	g.GET("/chats/:chat_id/yamls", s.HandleGetYamls)
	g.GET("/chats/:chat_id/status", s.HandlePollStatus)
	g.DELETE("/chats/:chat_id/status", s.HandleClearStatus)

	g.POST("/edit_yaml", s.HandleEditYaml)
	g.GET("/logs/stream", s.HandleLogStream)
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status        string    `json:"status"`
	Database      string    `json:"database"`
	SessionsCount int       `json:"sessions_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// HandleHealth reports service and database health.
// (GET /api/v1/health)
func (s *Server) HandleHealth(c echo.Context) error {
	sessions, err := s.store.ListChatSessions(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Health check failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, HealthStatus{
		Status:        "healthy",
		Database:      "connected",
		SessionsCount: len(sessions),
		Timestamp:     time.Now(),
	})
}

type createSessionRequest struct {
	Name string `json:"name"`
}

// HandleCreateChatSession creates a new chat session.
// (POST /api/v1/chats)
func (s *Server) HandleCreateChatSession(c echo.Context) error {
	var req createSessionRequest
	// An empty body is allowed; the store names the session.
	_ = c.Bind(&req)

	chatID, err := s.store.CreateChatSession(c.Request().Context(), "", req.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error creating chat session: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"chat_id": chatID})
}

// HandleChatHistory lists all sessions with their most recent message.
// (GET /api/v1/chats)
func (s *Server) HandleChatHistory(c echo.Context) error {
	ctx := c.Request().Context()

	sessions, err := s.store.ListChatSessions(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error retrieving chat history: "+err.Error())
	}

	history := make([]models.ChatHistory, 0, len(sessions))
	for _, session := range sessions {
		lastMessage := ""
		if last, err := s.store.GetLastMessage(ctx, session.ID); err == nil && last != nil {
			lastMessage = last.Content
		}
		history = append(history, models.ChatHistory{
			ID:           session.ID,
			Name:         session.Name,
			CreatedAt:    session.CreatedAt,
			LastMessage:  lastMessage,
			MessageCount: session.MessageCount,
		})
	}
	return c.JSON(http.StatusOK, history)
}

// HandleGetChatSession returns a full session with messages and YAML files.
// (GET /api/v1/chats/:chat_id)
func (s *Server) HandleGetChatSession(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chat_id")

	session, err := s.store.GetChatSession(ctx, chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error retrieving chat session: "+err.Error())
	}
	if session == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Chat session not found")
	}

	messages, err := s.store.GetMessages(ctx, chatID, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error retrieving messages: "+err.Error())
	}
	files, err := s.store.GetYamlFiles(ctx, chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error retrieving YAML files: "+err.Error())
	}

	yamlFiles := make(map[string]string, len(files))
	for _, f := range files {
		yamlFiles[f.Name] = f.Content
	}

	return c.JSON(http.StatusOK, models.ChatSessionDetail{
		ID:           session.ID,
		Name:         session.Name,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		MessageCount: session.MessageCount,
		Messages:     messages,
		YamlFiles:    yamlFiles,
	})
}

// HandleDeleteChatSession deletes one session.
// (DELETE /api/v1/chats/:chat_id)
func (s *Server) HandleDeleteChatSession(c echo.Context) error {
	deleted, err := s.store.DeleteChatSession(c.Request().Context(), c.Param("chat_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error deleting chat session: "+err.Error())
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "Chat session not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Chat session deleted successfully"})
}

// HandleDeleteAllChatSessions deletes every session.
// (DELETE /api/v1/chats)
func (s *Server) HandleDeleteAllChatSessions(c echo.Context) error {
	if err := s.store.DeleteAllChatSessions(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error deleting all chat sessions: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "All chat sessions deleted successfully"})
}

// HandleGetYamls returns the YAML documents stored for a session.
// (GET /api/v1/chats/:chat_id/yamls)
func (s *Server) HandleGetYamls(c echo.Context) error {
	files, err := s.store.GetYamlFiles(c.Request().Context(), c.Param("chat_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error retrieving YAML files: "+err.Error())
	}
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Chat session not found or no YAML files")
	}
	return c.JSON(http.StatusOK, files)
}
