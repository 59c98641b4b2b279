package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"maestro-builder/backend/pkg/models"
)

// MemoryChatStore is an in-memory ChatStore used by tests and by the server
// when it runs without a database.
type MemoryChatStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	messages map[string][]models.ChatMessage
	files    map[string]map[string]string
	nextID   int64
}

// NewMemoryChatStore creates an empty MemoryChatStore.
func NewMemoryChatStore() *MemoryChatStore {
	return &MemoryChatStore{
		sessions: make(map[string]*models.ChatSession),
		messages: make(map[string][]models.ChatMessage),
		files:    make(map[string]map[string]string),
	}
}

func (s *MemoryChatStore) CreateChatSession(_ context.Context, id, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if name == "" {
		name = "Chat " + time.Now().Format("2006-01-02 15:04")
	}
	now := time.Now()
	s.sessions[id] = &models.ChatSession{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (s *MemoryChatStore) GetChatSession(_ context.Context, id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryChatStore) ListChatSessions(_ context.Context) ([]models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]models.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *MemoryChatStore) AddMessage(_ context.Context, chatID, role, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.messages[chatID] = append(s.messages[chatID], models.ChatMessage{
		ID:        s.nextID,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if session, ok := s.sessions[chatID]; ok {
		session.MessageCount++
		session.UpdatedAt = time.Now()
	}
	return s.nextID, nil
}

func (s *MemoryChatStore) GetMessages(_ context.Context, chatID string, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.messages[chatID]
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *MemoryChatStore) GetLastMessage(_ context.Context, chatID string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.messages[chatID]
	if len(messages) == 0 {
		return nil, nil
	}
	last := messages[len(messages)-1]
	return &last, nil
}

func (s *MemoryChatStore) GetYamlFiles(_ context.Context, chatID string) ([]models.YamlFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []models.YamlFile
	for name, content := range s.files[chatID] {
		files = append(files, models.YamlFile{Name: name, Content: content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *MemoryChatStore) UpdateYamlFiles(_ context.Context, chatID string, files map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.files[chatID] == nil {
		s.files[chatID] = make(map[string]string)
	}
	for name, content := range files {
		s.files[chatID][name] = content
	}
	return nil
}

func (s *MemoryChatStore) DeleteChatSession(_ context.Context, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[chatID]; !ok {
		return false, nil
	}
	delete(s.sessions, chatID)
	delete(s.messages, chatID)
	delete(s.files, chatID)
	return true, nil
}

func (s *MemoryChatStore) DeleteAllChatSessions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*models.ChatSession)
	s.messages = make(map[string][]models.ChatMessage)
	s.files = make(map[string]map[string]string)
	return nil
}
