package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"maestro-builder/backend/pkg/models"
)

func TestPostgresChatStore(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresChatStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))

	t.Run("create and get session", func(t *testing.T) {
		id, err := store.CreateChatSession(ctx, "", "My session")
		require.NoError(t, err)
		require.NotEmpty(t, id)

		session, err := store.GetChatSession(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "My session", session.Name)
		assert.Equal(t, 0, session.MessageCount)
	})

	t.Run("missing session is nil", func(t *testing.T) {
		session, err := store.GetChatSession(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("messages bump session counters", func(t *testing.T) {
		id, err := store.CreateChatSession(ctx, "", "")
		require.NoError(t, err)

		_, err = store.AddMessage(ctx, id, "user", "create a summarizer")
		require.NoError(t, err)
		_, err = store.AddMessage(ctx, id, "assistant", "done")
		require.NoError(t, err)

		session, err := store.GetChatSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, session.MessageCount)

		messages, err := store.GetMessages(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "user", messages[0].Role)
		assert.Equal(t, "assistant", messages[1].Role)

		limited, err := store.GetMessages(ctx, id, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("last message is the most recent", func(t *testing.T) {
		id, err := store.CreateChatSession(ctx, "", "")
		require.NoError(t, err)

		last, err := store.GetLastMessage(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, last)

		_, err = store.AddMessage(ctx, id, "user", "create a summarizer")
		require.NoError(t, err)
		_, err = store.AddMessage(ctx, id, "assistant", "done")
		require.NoError(t, err)

		last, err = store.GetLastMessage(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, "assistant", last.Role)
		assert.Equal(t, "done", last.Content)
	})

	t.Run("yaml files upsert", func(t *testing.T) {
		id, err := store.CreateChatSession(ctx, "", "")
		require.NoError(t, err)

		err = store.UpdateYamlFiles(ctx, id, map[string]string{
			models.AgentsFileName: "apiVersion: v1",
		})
		require.NoError(t, err)

		err = store.UpdateYamlFiles(ctx, id, map[string]string{
			models.AgentsFileName:   "apiVersion: v2",
			models.WorkflowFileName: "kind: Workflow",
		})
		require.NoError(t, err)

		files, err := store.GetYamlFiles(ctx, id)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, models.AgentsFileName, files[0].Name)
		assert.Equal(t, "apiVersion: v2", files[0].Content)
		assert.Equal(t, models.WorkflowFileName, files[1].Name)
	})

	t.Run("delete cascades", func(t *testing.T) {
		id, err := store.CreateChatSession(ctx, "", "")
		require.NoError(t, err)
		_, err = store.AddMessage(ctx, id, "user", "hello")
		require.NoError(t, err)
		require.NoError(t, store.UpdateYamlFiles(ctx, id, map[string]string{"a.yaml": "x: 1"}))

		deleted, err := store.DeleteChatSession(ctx, id)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.DeleteChatSession(ctx, id)
		require.NoError(t, err)
		assert.False(t, deleted)

		files, err := store.GetYamlFiles(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
