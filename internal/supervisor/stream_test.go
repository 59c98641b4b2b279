package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/internal/services"
	"maestro-builder/backend/pkg/models"
)

func collectEvents(t *testing.T, sup *Supervisor, userInput, chatID string) []Event {
	t.Helper()
	var events []Event
	err := sup.StreamEvents(context.Background(), userInput, chatID, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func eventTypes(events []Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestStreamEventsGenerateSequence(t *testing.T) {
	sup := newTestSupervisor(Clients{
		Classifier: &fakeClient{response: `{"intent":"GENERATE_WORKFLOW","confidence":0.95,"reasoning":"new"}`},
		Agents:     &fakeClient{response: fakeAgentsResponse},
		Workflow:   &fakeClient{response: fakeWorkflowResponse},
	}, nil)

	events := collectEvents(t, sup, "summarize PDFs", "chat-1")
	types := eventTypes(events)

	assert.Equal(t, EventChatID, types[0])
	assert.Equal(t, "chat-1", events[0].ChatID)
	assert.Equal(t, EventDone, types[len(types)-1])

	var finals, dones, agentsDocs, workflowDocs int
	for _, ev := range events {
		switch ev.Type {
		case EventFinal:
			finals++
			require.NotNil(t, ev.Result)
			assert.Len(t, ev.Result.YamlFiles, 2)
		case EventDone:
			dones++
		case EventAgentsYaml:
			agentsDocs++
			assert.Contains(t, ev.Content, "pdf_summarizer")
		case EventWorkflowYaml:
			workflowDocs++
		}
	}
	assert.Equal(t, 1, finals)
	assert.Equal(t, 1, dones)
	assert.Equal(t, 1, agentsDocs)
	assert.Equal(t, 1, workflowDocs)

	// The agents document appears before the workflow document.
	assert.Less(t, indexOf(types, EventAgentsYaml), indexOf(types, EventWorkflowYaml))
}

func TestStreamEventsTagsOutputBySource(t *testing.T) {
	sup := newTestSupervisor(Clients{
		Classifier: &fakeClient{response: `{"intent":"GENERATE_WORKFLOW","confidence":1}`},
		Agents:     &fakeClient{response: fakeAgentsResponse},
		Workflow:   &fakeClient{response: fakeWorkflowResponse},
	}, nil)

	events := collectEvents(t, sup, "x", "chat-2")
	sources := map[string]bool{}
	for _, ev := range events {
		if ev.Type == EventAIOutput {
			sources[ev.Source] = true
		}
	}
	assert.True(t, sources["agents"])
	assert.True(t, sources["workflow"])
}

func TestStreamEventsEditPath(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryChatStore()
	chatID, err := store.CreateChatSession(ctx, "", "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateYamlFiles(ctx, chatID, map[string]string{
		models.WorkflowFileName: "kind: Workflow",
	}))

	sup := newTestSupervisor(Clients{
		Classifier: &fakeClient{response: `{"intent":"EDIT_YAML","confidence":0.9}`},
		Editor:     &fakeClient{response: "```yaml\nkind: Workflow\nname: edited\n```"},
	}, store)

	events := collectEvents(t, sup, "rename it", chatID)
	types := eventTypes(events)
	assert.Contains(t, types, EventWorkflowYaml)
	assert.NotContains(t, types, EventAgentsYaml)
	assert.Equal(t, EventDone, types[len(types)-1])
}

func TestStreamEventsErrorThenDone(t *testing.T) {
	sup := newTestSupervisor(Clients{
		Classifier: &fakeClient{response: `{"intent":"GENERATE_WORKFLOW","confidence":1}`},
		Agents:     &fakeClient{err: &services.UpstreamError{Service: "agents", Status: 500, Detail: "down"}},
	}, nil)

	events := collectEvents(t, sup, "x", "chat-3")
	types := eventTypes(events)
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, EventError, types[len(types)-2])
	assert.Equal(t, EventDone, types[len(types)-1])
}

func TestStreamEventsStopsWhenEmitFails(t *testing.T) {
	sup := newTestSupervisor(Clients{
		Classifier: &fakeClient{response: `{"intent":"GENERATE_WORKFLOW","confidence":1}`},
		Agents:     &fakeClient{response: fakeAgentsResponse},
		Workflow:   &fakeClient{response: fakeWorkflowResponse},
	}, nil)

	clientGone := errors.New("client disconnected")
	count := 0
	err := sup.StreamEvents(context.Background(), "x", "chat-4", func(Event) error {
		count++
		if count == 3 {
			return clientGone
		}
		return nil
	})
	assert.ErrorIs(t, err, clientGone)
	assert.Equal(t, 3, count)
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}
