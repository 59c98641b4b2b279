package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"maestro-builder/backend/pkg/models"
)

// PostgresChatStore is a PostgreSQL implementation of the ChatStore interface.
type PostgresChatStore struct {
	db *pgxpool.Pool
}

// NewPostgresChatStore creates a new PostgresChatStore.
func NewPostgresChatStore(db *pgxpool.Pool) *PostgresChatStore {
	return &PostgresChatStore{db: db}
}

// EnsureSchema creates the chat tables if they do not exist yet.
func (s *PostgresChatStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			message_count INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chat_sessions (id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS yaml_files (
			chat_id TEXT NOT NULL REFERENCES chat_sessions (id) ON DELETE CASCADE,
			file_name TEXT NOT NULL,
			content TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (chat_id, file_name)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages (chat_id);
		CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages (ts);
		CREATE INDEX IF NOT EXISTS idx_yaml_files_chat_id ON yaml_files (chat_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create chat schema: %w", err)
	}
	return nil
}

// CreateChatSession creates a session, generating the id and a timestamped
// default name when they are not provided.
func (s *PostgresChatStore) CreateChatSession(ctx context.Context, id, name string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if name == "" {
		name = "Chat " + time.Now().Format("2006-01-02 15:04")
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_sessions (id, name, created_at, updated_at, message_count)
		VALUES ($1, $2, now(), now(), 0)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
	`, id, name)
	if err != nil {
		return "", fmt.Errorf("failed to create chat session: %w", err)
	}
	return id, nil
}

// GetChatSession retrieves a session by id. Returns nil, nil when absent.
func (s *PostgresChatStore) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at, message_count
		FROM chat_sessions WHERE id = $1
	`, id).Scan(&session.ID, &session.Name, &session.CreatedAt, &session.UpdatedAt, &session.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListChatSessions lists every session, most recently updated first.
func (s *PostgresChatStore) ListChatSessions(ctx context.Context) ([]models.ChatSession, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, created_at, updated_at, message_count
		FROM chat_sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		var session models.ChatSession
		if err := rows.Scan(&session.ID, &session.Name, &session.CreatedAt, &session.UpdatedAt, &session.MessageCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// AddMessage appends a message and maintains the session counters.
func (s *PostgresChatStore) AddMessage(ctx context.Context, chatID, role, content string) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (chat_id, role, content, ts)
		VALUES ($1, $2, $3, now())
		RETURNING id
	`, chatID, role, content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to add message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE chat_sessions
		SET message_count = message_count + 1, updated_at = now()
		WHERE id = $1
	`, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to update session counters: %w", err)
	}

	return id, tx.Commit(ctx)
}

// GetMessages returns a session's messages in timestamp order.
func (s *PostgresChatStore) GetMessages(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, chat_id, role, content, ts
		FROM messages WHERE chat_id = $1 ORDER BY ts ASC
	`
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetLastMessage returns a session's most recent message. Returns nil, nil
// when the session has no messages.
func (s *PostgresChatStore) GetLastMessage(ctx context.Context, chatID string) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := s.db.QueryRow(ctx, `
		SELECT id, chat_id, role, content, ts
		FROM messages WHERE chat_id = $1 ORDER BY ts DESC, id DESC LIMIT 1
	`, chatID).Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetYamlFiles returns the YAML documents stored for a session.
func (s *PostgresChatStore) GetYamlFiles(ctx context.Context, chatID string) ([]models.YamlFile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT file_name, content FROM yaml_files WHERE chat_id = $1 ORDER BY file_name
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.YamlFile
	for rows.Next() {
		var f models.YamlFile
		if err := rows.Scan(&f.Name, &f.Content); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateYamlFiles upserts the given documents for a session.
func (s *PostgresChatStore) UpdateYamlFiles(ctx context.Context, chatID string, files map[string]string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for name, content := range files {
		_, err := tx.Exec(ctx, `
			INSERT INTO yaml_files (chat_id, file_name, content, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (chat_id, file_name)
			DO UPDATE SET content = EXCLUDED.content, updated_at = now()
		`, chatID, name, content)
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", name, err)
		}
	}
	return tx.Commit(ctx)
}

// DeleteChatSession deletes one session and, via cascade, its messages and
// YAML files.
func (s *PostgresChatStore) DeleteChatSession(ctx context.Context, chatID string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM chat_sessions WHERE id = $1", chatID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllChatSessions deletes every session.
func (s *PostgresChatStore) DeleteAllChatSessions(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "DELETE FROM chat_sessions")
	return err
}
