// Package models defines the domain models for the builder service
package models

import (
	"time"
)

// ChatSession is one conversation with the builder, owning its messages
// and generated YAML files.
type ChatSession struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ChatMessage is a single message within a chat session.
type ChatMessage struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistory is the list view of a session: its metadata plus the most
// recent message.
type ChatHistory struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
}

// ChatSessionDetail is the full session payload returned to the frontend.
type ChatSessionDetail struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	MessageCount int               `json:"message_count"`
	Messages     []ChatMessage     `json:"messages"`
	YamlFiles    map[string]string `json:"yaml_files"`
}

// YamlFile is a named YAML document owned by a chat session. The default
// generation flow produces two of them: agents.yaml and workflow.yaml.
type YamlFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Canonical file names written by the generation flow.
const (
	AgentsFileName   = "agents.yaml"
	WorkflowFileName = "workflow.yaml"
)
