package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-builder/backend/internal/background"
	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/internal/supervisor"
	"maestro-builder/backend/pkg/models"
)

type scriptedClient struct {
	response string
	err      error
}

func (c *scriptedClient) Chat(_ context.Context, _, _ string) (string, error) {
	return c.response, c.err
}

const agentsResponse = "```yaml\napiVersion: maestro/v1alpha1\nkind: Agent\nmetadata:\n  name: summarizer\nspec:\n  description: |\n    Summarizes documents\n```"

func defaultClients() supervisor.Clients {
	return supervisor.Clients{
		Classifier: &scriptedClient{response: `{"intent":"GENERATE_WORKFLOW","confidence":0.9,"reasoning":"new flow"}`},
		Agents:     &scriptedClient{response: agentsResponse},
		Workflow:   &scriptedClient{response: "```yaml\napiVersion: maestro/v1alpha1\nkind: Workflow\n```"},
		Editor:     &scriptedClient{response: "```yaml\nedited: true\n```"},
	}
}

type testEnv struct {
	echo  *echo.Echo
	store repository.ChatStore
	proc  *background.Processor
}

func newTestEnv(t *testing.T, clients supervisor.Clients) *testEnv {
	t.Helper()
	return newEnv(t, clients, t.TempDir())
}

func newTestEnvWithLogDir(t *testing.T, logDir string) *testEnv {
	t.Helper()
	return newEnv(t, defaultClients(), logDir)
}

func newEnv(t *testing.T, clients supervisor.Clients, logDir string) *testEnv {
	t.Helper()
	store := repository.NewMemoryChatStore()
	logger := logging.NewLogger()
	sup := supervisor.New(clients, store, logger, nil)
	proc := background.NewProcessor(sup, logger, 2, logDir)
	t.Cleanup(proc.Close)

	srv := NewServer(store, sup, proc, logger, logDir)
	e := echo.New()
	srv.RegisterRoutes(e.Group("/api/v1"))
	return &testEnv{echo: e, store: store, proc: proc}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeJSON[HealthStatus](t, rec)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "connected", status.Database)
}

func TestCreateAndGetChatSession(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodPost, "/api/v1/chats", `{"name":"My session"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeJSON[map[string]string](t, rec)
	chatID := created["chat_id"]
	require.NotEmpty(t, chatID)

	rec = env.do(t, http.MethodGet, "/api/v1/chats/"+chatID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeJSON[models.ChatSessionDetail](t, rec)
	assert.Equal(t, chatID, detail.ID)
	assert.Equal(t, "My session", detail.Name)
	assert.Empty(t, detail.Messages)
}

func TestGetUnknownChatSession(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodGet, "/api/v1/chats/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHistoryIncludesLastMessage(t *testing.T) {
	env := newTestEnv(t, defaultClients())
	ctx := context.Background()

	chatID, err := env.store.CreateChatSession(ctx, "", "History test")
	require.NoError(t, err)
	_, err = env.store.AddMessage(ctx, chatID, "user", "build me a workflow")
	require.NoError(t, err)
	_, err = env.store.AddMessage(ctx, chatID, "assistant", "I've created your workflow!")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[[]models.ChatHistory](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "I've created your workflow!", history[0].LastMessage)
	assert.Equal(t, 2, history[0].MessageCount)
}

func TestDeleteChatSession(t *testing.T) {
	env := newTestEnv(t, defaultClients())
	chatID, err := env.store.CreateChatSession(context.Background(), "", "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/api/v1/chats/"+chatID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/chats/"+chatID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetYamlsWhenNonePresent(t *testing.T) {
	env := newTestEnv(t, defaultClients())
	chatID, err := env.store.CreateChatSession(context.Background(), "", "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/chats/"+chatID+"/yamls", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSyncReturnsPipelineResult(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodPost, "/api/v1/chat", `{"content":"build a summarizer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeJSON[models.PipelineResult](t, rec)
	assert.Equal(t, models.IntentGenerateWorkflow, result.Intent)
	require.Len(t, result.YamlFiles, 2)
	assert.NotEmpty(t, result.ChatID)

	files, err := env.store.GetYamlFiles(context.Background(), result.ChatID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestChatRequiresContent(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodPost, "/api/v1/chat", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAndPollConsumesResultOnce(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodPost, "/api/v1/requests", `{"content":"build a summarizer"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decodeJSON[SubmitResponse](t, rec)
	require.NotEmpty(t, accepted.RequestID)
	assert.Equal(t, "processing", accepted.Status)

	deadline := time.Now().Add(5 * time.Second)
	var result models.PipelineResult
	for {
		require.True(t, time.Now().Before(deadline), "request never finished")
		rec = env.do(t, http.MethodGet, "/api/v1/requests/"+accepted.RequestID, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var probe map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &probe))
		if probe["status"] == "processing" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		result = decodeJSON[models.PipelineResult](t, rec)
		break
	}
	assert.Equal(t, models.IntentGenerateWorkflow, result.Intent)

	// The result was consumed; another poll reports processing again.
	rec = env.do(t, http.MethodGet, "/api/v1/requests/"+accepted.RequestID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	followUp := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "processing", followUp["status"])
}

func TestEditYamlEndpoint(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodPost, "/api/v1/edit_yaml",
		`{"yaml":"name: old","instruction":"rename to new","file_type":"agents"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "edited: true", body["edited_yaml"])
}

func TestEditYamlValidatesInput(t *testing.T) {
	env := newTestEnv(t, defaultClients())

	rec := env.do(t, http.MethodPost, "/api/v1/edit_yaml", `{"yaml":"name: old"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPollStatusDrainsAndClears(t *testing.T) {
	env := newTestEnv(t, defaultClients())
	env.proc.StatusLog().Append("chat-1", "step one", "info")
	env.proc.StatusLog().Append("chat-1", "step two", "info")

	rec := env.do(t, http.MethodGet, "/api/v1/chats/chat-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeJSON[map[string]json.RawMessage](t, rec)
	var entries []background.StatusEntry
	require.NoError(t, json.Unmarshal(first["entries"], &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "step one", entries[0].Message)

	// Already drained; nothing new.
	rec = env.do(t, http.MethodGet, "/api/v1/chats/chat-1/status", "")
	second := decodeJSON[map[string]json.RawMessage](t, rec)
	require.NoError(t, json.Unmarshal(second["entries"], &entries))
	assert.Empty(t, entries)

	rec = env.do(t, http.MethodDelete, "/api/v1/chats/chat-1/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
