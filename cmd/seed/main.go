package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"maestro-builder/backend/internal/config"
	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/pkg/models"
)

const seedAgentsYaml = `apiVersion: maestro/v1alpha1
kind: Agent
metadata:
  name: summarizer
spec:
  framework: openai
  description: |
    Summarizes long documents into concise notes.
---
apiVersion: maestro/v1alpha1
kind: Agent
metadata:
  name: fact_checker
spec:
  framework: openai
  description: |
    Verifies claims in the summary against the source document.
`

const seedWorkflowYaml = `apiVersion: maestro/v1alpha1
kind: Workflow
metadata:
  name: summarize_and_check
spec:
  template:
    prompt: Summarize the document and verify the claims
    agents:
      - summarizer
      - fact_checker
`

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresChatStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Skip seeding when a demo session already exists
	sessions, err := store.ListChatSessions(ctx)
	if err != nil {
		log.Fatalf("Failed to list existing sessions: %v", err)
	}
	for _, s := range sessions {
		if s.Name == "Demo: summarize and check" {
			logger.Info("Demo session already present, nothing to do")
			return
		}
	}

	chatID, err := store.CreateChatSession(ctx, "", "Demo: summarize and check")
	if err != nil {
		log.Fatalf("Failed to create demo session: %v", err)
	}

	if _, err := store.AddMessage(ctx, chatID, "user",
		"Build a workflow that summarizes a document and fact checks the summary"); err != nil {
		log.Fatalf("Failed to add user message: %v", err)
	}
	if _, err := store.AddMessage(ctx, chatID, "assistant",
		"I've created your workflow! Generated agents.yaml and workflow.yaml."); err != nil {
		log.Fatalf("Failed to add assistant message: %v", err)
	}

	if err := store.UpdateYamlFiles(ctx, chatID, map[string]string{
		models.AgentsFileName:   seedAgentsYaml,
		models.WorkflowFileName: seedWorkflowYaml,
	}); err != nil {
		log.Fatalf("Failed to store YAML files: %v", err)
	}

	logger.Info("Seeded demo session %s", chatID)
	logger.Info("Seeding complete!")
}
