package supervisor

import (
	"context"
	"fmt"
	"strings"

	"maestro-builder/backend/pkg/models"
)

// Event is one element of the progress stream. Type decides which of the
// optional fields are set.
type Event struct {
	Type    string                 `json:"type"`
	ChatID  string                 `json:"chat_id,omitempty"`
	Message string                 `json:"message,omitempty"`
	Source  string                 `json:"source,omitempty"`
	Line    string                 `json:"line,omitempty"`
	Content string                 `json:"content,omitempty"`
	Result  *models.PipelineResult `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Stream event types.
const (
	EventChatID       = "chat_id"
	EventStatus       = "status"
	EventAIOutput     = "ai_output"
	EventAgentsYaml   = "agents_yaml"
	EventWorkflowYaml = "workflow_yaml"
	EventFinal        = "final"
	EventError        = "error"
	EventDone         = "done"
)

// StreamEvents runs the pipeline cooperatively on the caller's goroutine,
// pushing progress through emit as it happens: status lines per phase, the
// raw model output tagged by source, each YAML document as soon as it is
// produced, one final event with the complete result, and a terminal done
// event. A pipeline failure becomes a single error event immediately
// followed by done; the stream always ends with done. An emit failure
// (client gone) aborts the run and is returned as-is.
func (s *Supervisor) StreamEvents(ctx context.Context, userInput, chatID string, emit func(Event) error) error {
	status := func(message string) error {
		return emit(Event{Type: EventStatus, Message: message})
	}
	aiOutput := func(source, raw string) error {
		for _, line := range strings.Split(raw, "\n") {
			if err := emit(Event{Type: EventAIOutput, Source: source, Line: line}); err != nil {
				return err
			}
		}
		return nil
	}
	fail := func(pipelineErr error) error {
		if err := emit(Event{Type: EventError, Error: pipelineErr.Error()}); err != nil {
			return err
		}
		return emit(Event{Type: EventDone})
	}

	if err := emit(Event{Type: EventChatID, ChatID: chatID}); err != nil {
		return err
	}
	if err := status("Classifying your request..."); err != nil {
		return err
	}

	agentsYaml, workflowYaml := s.loadYamlContext(ctx, chatID)

	classification, err := s.ClassifyIntent(ctx, userInput, agentsYaml, workflowYaml)
	if err != nil {
		classification = models.Classification{
			Intent:    models.IntentGenerateWorkflow,
			Reasoning: fmt.Sprintf("Classification failed (%v), defaulting to workflow generation", err),
		}
		if err := status("Classification unavailable, defaulting to workflow generation"); err != nil {
			return err
		}
	} else if err := status(fmt.Sprintf("Intent: %s (confidence %.2f)", classification.Intent, classification.Confidence)); err != nil {
		return err
	}

	if classification.Intent == models.IntentEditYaml && (agentsYaml != "" || workflowYaml != "") {
		target, content := models.AgentsFileName, agentsYaml
		if agentsYaml == "" {
			target, content = models.WorkflowFileName, workflowYaml
		}
		if err := status(fmt.Sprintf("Editing %s...", target)); err != nil {
			return err
		}

		raw, editErr := s.callEditor(ctx, editPrompt(content, target, userInput))
		if editErr != nil {
			return fail(editErr)
		}
		if err := aiOutput("editor", raw); err != nil {
			return err
		}

		edited := ExtractYAML(raw)
		s.saveYamlFiles(ctx, chatID, map[string]string{target: edited})

		eventType := EventAgentsYaml
		if target == models.WorkflowFileName {
			eventType = EventWorkflowYaml
		}
		if err := emit(Event{Type: eventType, Content: edited}); err != nil {
			return err
		}

		reasoning := classification.Reasoning
		if reasoning == "" {
			reasoning = "Successfully routed to editing"
		}
		result := &models.PipelineResult{
			Intent:     models.IntentEditYaml,
			Confidence: classification.Confidence,
			Reasoning:  reasoning,
			Response:   successResponse(models.IntentEditYaml, userInput, target),
			YamlFiles:  []models.YamlFile{{Name: target, Content: edited}},
			ChatID:     chatID,
		}
		s.recordExchange(ctx, chatID, userInput, result.Response)

		if err := emit(Event{Type: EventFinal, Result: result}); err != nil {
			return err
		}
		return emit(Event{Type: EventDone})
	}

	if err := status("Generating agents.yaml..."); err != nil {
		return err
	}
	rawAgents, genErr := s.callAgents(ctx, userInput)
	if genErr != nil {
		return fail(genErr)
	}
	if err := aiOutput("agents", rawAgents); err != nil {
		return err
	}

	generatedAgents := ExtractYAML(rawAgents)
	s.saveYamlFiles(ctx, chatID, map[string]string{models.AgentsFileName: generatedAgents})
	if err := emit(Event{Type: EventAgentsYaml, Content: generatedAgents}); err != nil {
		return err
	}

	if err := status("Generating workflow.yaml..."); err != nil {
		return err
	}
	infos := ParseAgentInfo(generatedAgents)
	rawWorkflow, genErr := s.callWorkflow(ctx, BuildWorkflowPrompt(infos, userInput))
	if genErr != nil {
		return fail(genErr)
	}
	if err := aiOutput("workflow", rawWorkflow); err != nil {
		return err
	}

	generatedWorkflow := ExtractYAML(rawWorkflow)
	s.saveYamlFiles(ctx, chatID, map[string]string{models.WorkflowFileName: generatedWorkflow})
	if err := emit(Event{Type: EventWorkflowYaml, Content: generatedWorkflow}); err != nil {
		return err
	}

	reasoning := classification.Reasoning
	if reasoning == "" {
		reasoning = "Successfully routed to workflow generation"
	}
	result := &models.PipelineResult{
		Intent:     models.IntentGenerateWorkflow,
		Confidence: classification.Confidence,
		Reasoning:  reasoning,
		Response:   successResponse(models.IntentGenerateWorkflow, userInput, ""),
		YamlFiles: []models.YamlFile{
			{Name: models.AgentsFileName, Content: generatedAgents},
			{Name: models.WorkflowFileName, Content: generatedWorkflow},
		},
		ChatID: chatID,
	}
	s.recordExchange(ctx, chatID, userInput, result.Response)

	if err := emit(Event{Type: EventFinal, Result: result}); err != nil {
		return err
	}
	return emit(Event{Type: EventDone})
}
