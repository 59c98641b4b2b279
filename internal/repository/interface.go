package repository

import (
	"context"

	"maestro-builder/backend/pkg/models"
)

// ChatStore is the persistence interface consumed by the orchestration
// pipeline and the HTTP layer. Sessions own their messages and YAML files;
// deleting a session cascades to both.
type ChatStore interface {
	// CreateChatSession creates a session. An empty id or name is filled
	// in by the store; the effective id is returned.
	CreateChatSession(ctx context.Context, id, name string) (string, error)
	// GetChatSession retrieves a session by id, nil when absent.
	GetChatSession(ctx context.Context, id string) (*models.ChatSession, error)
	// ListChatSessions lists all sessions, most recently updated first.
	ListChatSessions(ctx context.Context) ([]models.ChatSession, error)
	// AddMessage appends a message and bumps the session's message count.
	AddMessage(ctx context.Context, chatID, role, content string) (int64, error)
	// GetMessages returns a session's messages in timestamp order. A zero
	// limit means no limit.
	GetMessages(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error)
	// GetLastMessage returns a session's most recent message, nil when the
	// session has none.
	GetLastMessage(ctx context.Context, chatID string) (*models.ChatMessage, error)
	// GetYamlFiles returns the YAML documents stored for a session.
	GetYamlFiles(ctx context.Context, chatID string) ([]models.YamlFile, error)
	// UpdateYamlFiles upserts the given documents for a session.
	UpdateYamlFiles(ctx context.Context, chatID string, files map[string]string) error
	// DeleteChatSession deletes one session; false when it did not exist.
	DeleteChatSession(ctx context.Context, chatID string) (bool, error)
	// DeleteAllChatSessions deletes every session.
	DeleteAllChatSessions(ctx context.Context) error
}
