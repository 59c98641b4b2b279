package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/observability"
	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/internal/services"
	"maestro-builder/backend/pkg/models"
)

// Sink receives progress lines emitted during an orchestration run. The
// background processor binds one per request so that progress reaches the
// per-chat status log.
type Sink func(message, level string)

// Clients bundles the four remote generation/classification services.
type Clients struct {
	Classifier services.AgentClient
	Agents     services.AgentClient
	Workflow   services.AgentClient
	Editor     services.AgentClient
}

// Supervisor classifies user intent and coordinates document generation or
// YAML editing based on the classification.
type Supervisor struct {
	clients Clients
	store   repository.ChatStore
	logger  *logging.Logger
	metrics *observability.Metrics
	sink    Sink
}

// New creates a Supervisor. The store may be nil, in which case persistence
// side effects are skipped.
func New(clients Clients, store repository.ChatStore, logger *logging.Logger, metrics *observability.Metrics) *Supervisor {
	return &Supervisor{
		clients: clients,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// WithSink returns a copy of the Supervisor whose progress lines go to the
// given sink instead of the console logger.
func (s *Supervisor) WithSink(sink Sink) *Supervisor {
	copied := *s
	copied.sink = sink
	return &copied
}

func (s *Supervisor) emit(message, level string) {
	if s.sink != nil {
		s.sink(message, level)
		return
	}
	if s.logger == nil {
		return
	}
	switch level {
	case "error":
		s.logger.Error("%s", message)
	case "warning":
		s.logger.Warn("%s", message)
	default:
		s.logger.Info("%s", message)
	}
}

const classificationPromptTemplate = `You are an intent classifier. Determine if the user wants to GENERATE_WORKFLOW or EDIT_YAML.

User input: %s

Current YAML files (if any):
Agents YAML:
%s

Workflow YAML:
%s

Return ONLY valid JSON (no prose, no markdown) with the following schema:
{
  "intent": "GENERATE_WORKFLOW" | "EDIT_YAML",
  "confidence": number,  // 0.0 to 1.0
  "reasoning": string
}

Example valid responses:
{"intent":"GENERATE_WORKFLOW","confidence":0.92,"reasoning":"User is asking to create a new flow"}
{"intent":"EDIT_YAML","confidence":0.87,"reasoning":"User wants to modify existing YAML"}`

// ClassifyIntent asks the classifier service what the user wants. It fails
// only when the remote call itself fails; a malformed response body yields
// the GENERATE_WORKFLOW default instead of an error.
func (s *Supervisor) ClassifyIntent(ctx context.Context, userInput, agentsYaml, workflowYaml string) (models.Classification, error) {
	s.emit("Classifying user intent...", "info")

	prompt := fmt.Sprintf(classificationPromptTemplate, userInput, agentsYaml, workflowYaml)
	response, err := s.clients.Classifier.Chat(ctx, prompt, "IntentClassifier")
	if err != nil {
		s.metrics.RecordUpstreamFailure(ctx, "classifier")
		s.emit(fmt.Sprintf("Intent classification failed: %v", err), "error")
		return models.Classification{}, err
	}

	classification := parseClassification(response)
	s.emit(fmt.Sprintf("Intent classified as %s (confidence: %.2f)", classification.Intent, classification.Confidence), "info")
	return classification, nil
}

// parseClassification decodes the classifier's JSON body. Anything that does
// not line up with the expected shape degrades to the GENERATE_WORKFLOW
// default with a reasoning string naming the problem.
func parseClassification(response string) models.Classification {
	var raw map[string]any
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return defaultClassification(err.Error())
	}

	intentText := ""
	if v, ok := raw["intent"]; ok {
		intentText = strings.ToUpper(fmt.Sprint(v))
	}
	intent := models.ParseIntent(intentText)

	confidence := 1.0
	if v, ok := raw["confidence"]; ok {
		switch n := v.(type) {
		case float64:
			confidence = n
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return defaultClassification(fmt.Sprintf("confidence %q is not a number", n))
			}
			confidence = parsed
		default:
			return defaultClassification(fmt.Sprintf("confidence has unexpected type %T", v))
		}
	}

	reasoning := ""
	if v, ok := raw["reasoning"]; ok {
		reasoning = fmt.Sprint(v)
	}

	return models.Classification{Intent: intent, Confidence: confidence, Reasoning: reasoning}
}

func defaultClassification(detail string) models.Classification {
	return models.Classification{
		Intent:     models.IntentGenerateWorkflow,
		Confidence: 0.5,
		Reasoning:  "Defaulted due to parsing error: " + detail,
	}
}

func (s *Supervisor) callAgents(ctx context.Context, userInput string) (string, error) {
	s.emit("Starting agents YAML generation...", "info")
	out, err := s.clients.Agents.Chat(ctx, userInput, "TaskInterpreter")
	if err != nil {
		s.metrics.RecordUpstreamFailure(ctx, "agents")
		s.emit(fmt.Sprintf("Agents generation failed: %v", err), "error")
		return "", err
	}
	return out, nil
}

// GenerateAgentsYAML generates the agents document from the user's request.
func (s *Supervisor) GenerateAgentsYAML(ctx context.Context, userInput string) (string, error) {
	out, err := s.callAgents(ctx, userInput)
	if err != nil {
		return "", err
	}
	agentsYaml := ExtractYAML(out)
	s.emit(fmt.Sprintf("Generated agents YAML (%d characters)", len(agentsYaml)), "info")
	return agentsYaml, nil
}

func (s *Supervisor) callWorkflow(ctx context.Context, prompt string) (string, error) {
	s.emit("Starting workflow YAML generation...", "info")
	out, err := s.clients.Workflow.Chat(ctx, prompt, "WorkflowYAMLBuilder")
	if err != nil {
		s.metrics.RecordUpstreamFailure(ctx, "workflow")
		s.emit(fmt.Sprintf("Workflow generation failed: %v", err), "error")
		return "", err
	}
	return out, nil
}

// GenerateWorkflowYAML derives the agent list from the agents document and
// generates a workflow that composes them.
func (s *Supervisor) GenerateWorkflowYAML(ctx context.Context, agentsYaml, userInput string) (string, error) {
	infos := ParseAgentInfo(agentsYaml)
	s.emit(fmt.Sprintf("Found %d agents to include in workflow", len(infos)), "info")

	out, err := s.callWorkflow(ctx, BuildWorkflowPrompt(infos, userInput))
	if err != nil {
		return "", err
	}
	workflowYaml := ExtractYAML(out)
	s.emit(fmt.Sprintf("Generated workflow YAML (%d characters)", len(workflowYaml)), "info")
	return workflowYaml, nil
}

func editPrompt(yamlContent, fileName, instruction string) string {
	label := strings.SplitN(fileName, ".", 2)[0]
	return fmt.Sprintf("Current YAML file (type: %s):\n%s\n\nUser instruction: %s\n\nPlease apply the requested edit and return only the updated YAML file.", label, yamlContent, instruction)
}

func (s *Supervisor) callEditor(ctx context.Context, prompt string) (string, error) {
	out, err := s.clients.Editor.Chat(ctx, prompt, "")
	if err != nil {
		s.metrics.RecordUpstreamFailure(ctx, "editor")
		s.emit(fmt.Sprintf("YAML editing failed: %v", err), "error")
		return "", err
	}
	return out, nil
}

// EditYAML applies a user instruction to an existing document through the
// editing service.
func (s *Supervisor) EditYAML(ctx context.Context, yamlContent, fileName, instruction string) (string, error) {
	s.emit(fmt.Sprintf("Editing %s...", fileName), "info")
	out, err := s.callEditor(ctx, editPrompt(yamlContent, fileName, instruction))
	if err != nil {
		return "", err
	}
	edited := ExtractYAML(out)
	s.emit(fmt.Sprintf("Edited YAML ready (%d characters)", len(edited)), "info")
	return edited, nil
}

// loadYamlContext fetches the stored documents for classification context.
// Best effort: a store failure leaves both empty.
func (s *Supervisor) loadYamlContext(ctx context.Context, chatID string) (agentsYaml, workflowYaml string) {
	if s.store == nil || chatID == "" {
		return "", ""
	}
	files, err := s.store.GetYamlFiles(ctx, chatID)
	if err != nil {
		s.emit(fmt.Sprintf("Could not fetch YAML files for context: %v", err), "warning")
		return "", ""
	}
	for _, f := range files {
		switch f.Name {
		case models.AgentsFileName:
			agentsYaml = f.Content
		case models.WorkflowFileName:
			workflowYaml = f.Content
		}
	}
	return agentsYaml, workflowYaml
}

// saveYamlFiles persists documents for the chat. Best effort: failures are
// logged, never propagated.
func (s *Supervisor) saveYamlFiles(ctx context.Context, chatID string, files map[string]string) {
	if s.store == nil || chatID == "" {
		return
	}
	if err := s.store.UpdateYamlFiles(ctx, chatID, files); err != nil {
		s.emit(fmt.Sprintf("Could not save YAML files: %v", err), "warning")
		return
	}
	for name := range files {
		s.emit(fmt.Sprintf("Saved %s for immediate viewing", name), "info")
	}
}

// GenerateBoth runs the full generation flow: the agents document first
// (saved immediately so a concurrent viewer sees partial progress), then
// the workflow document built on top of it.
func (s *Supervisor) GenerateBoth(ctx context.Context, userInput, chatID string) (agentsYaml, workflowYaml string, err error) {
	agentsYaml, err = s.GenerateAgentsYAML(ctx, userInput)
	if err != nil {
		return "", "", err
	}
	s.saveYamlFiles(ctx, chatID, map[string]string{models.AgentsFileName: agentsYaml})

	workflowYaml, err = s.GenerateWorkflowYAML(ctx, agentsYaml, userInput)
	if err != nil {
		return "", "", err
	}
	return agentsYaml, workflowYaml, nil
}

// ProcessRequest is the per-request state machine. It classifies the input,
// routes to editing when an edit target exists (agents.yaml preferred), and
// otherwise generates both documents.
func (s *Supervisor) ProcessRequest(ctx context.Context, userInput, chatID string) (*models.PipelineResult, error) {
	s.emit("Processing your request...", "info")

	agentsYaml, workflowYaml := s.loadYamlContext(ctx, chatID)
	if agentsYaml != "" || workflowYaml != "" {
		s.emit("Found existing YAML files to use as context", "info")
	} else {
		s.emit("No existing YAML files found, starting fresh", "info")
	}

	classification, err := s.ClassifyIntent(ctx, userInput, agentsYaml, workflowYaml)
	if err != nil {
		// Degrade rather than abort: route to generation and carry the
		// failure detail in the reasoning.
		classification = models.Classification{
			Intent:    models.IntentGenerateWorkflow,
			Reasoning: fmt.Sprintf("Classification failed (%v), defaulting to workflow generation", err),
		}
		s.emit(classification.Reasoning, "warning")
	}

	if classification.Intent == models.IntentEditYaml {
		if agentsYaml == "" && workflowYaml == "" {
			// Editing with nothing to edit is invalid.
			s.emit("No existing YAML files found, switching to workflow generation", "warning")
			classification.Intent = models.IntentGenerateWorkflow
		} else {
			target, content := models.AgentsFileName, agentsYaml
			if agentsYaml == "" {
				target, content = models.WorkflowFileName, workflowYaml
			}

			edited, err := s.EditYAML(ctx, content, target, userInput)
			if err != nil {
				return nil, err
			}
			s.saveYamlFiles(ctx, chatID, map[string]string{target: edited})

			reasoning := classification.Reasoning
			if reasoning == "" {
				reasoning = "Successfully routed to editing"
			}
			return &models.PipelineResult{
				Intent:     models.IntentEditYaml,
				Confidence: classification.Confidence,
				Reasoning:  reasoning,
				Response:   successResponse(models.IntentEditYaml, userInput, target),
				YamlFiles:  []models.YamlFile{{Name: target, Content: edited}},
				ChatID:     chatID,
			}, nil
		}
	}

	agentsOut, workflowOut, err := s.GenerateBoth(ctx, userInput, chatID)
	if err != nil {
		return nil, err
	}
	s.saveYamlFiles(ctx, chatID, map[string]string{
		models.AgentsFileName:   agentsOut,
		models.WorkflowFileName: workflowOut,
	})

	reasoning := classification.Reasoning
	if reasoning == "" {
		reasoning = "Successfully routed to workflow generation"
	}
	return &models.PipelineResult{
		Intent:     models.IntentGenerateWorkflow,
		Confidence: classification.Confidence,
		Reasoning:  reasoning,
		Response:   successResponse(models.IntentGenerateWorkflow, userInput, ""),
		YamlFiles: []models.YamlFile{
			{Name: models.AgentsFileName, Content: agentsOut},
			{Name: models.WorkflowFileName, Content: workflowOut},
		},
		ChatID: chatID,
	}, nil
}

// ProcessWithFallback wraps ProcessRequest with the top-level degrade
// policy: on failure it retries as an agents-only generation and only
// reports an error when that fallback fails as well, naming both failures.
func (s *Supervisor) ProcessWithFallback(ctx context.Context, userInput, chatID string) (*models.PipelineResult, error) {
	start := time.Now()
	s.metrics.RequestStarted(ctx)
	defer s.metrics.RequestFinished(ctx)
	defer func() { s.metrics.ObserveDuration(ctx, time.Since(start).Seconds()) }()

	result, err := s.ProcessRequest(ctx, userInput, chatID)
	if err == nil {
		s.metrics.RecordRun(ctx, string(result.Intent), true)
		s.recordExchange(ctx, chatID, userInput, result.Response)
		s.emit("Request completed successfully!", "info")
		return result, nil
	}

	s.emit(fmt.Sprintf("Pipeline failed (%v), attempting agents-only fallback", err), "warning")
	agentsYaml, fallbackErr := s.GenerateAgentsYAML(ctx, userInput)
	if fallbackErr != nil {
		s.metrics.RecordRun(ctx, string(models.IntentGenerateWorkflow), false)
		return nil, fmt.Errorf("pipeline failed: %v; fallback also failed: %w", err, fallbackErr)
	}
	s.saveYamlFiles(ctx, chatID, map[string]string{models.AgentsFileName: agentsYaml})

	result = &models.PipelineResult{
		Intent:     models.IntentGenerateWorkflow,
		Confidence: 0,
		Reasoning:  fmt.Sprintf("Degraded to agents-only output after failure: %v", err),
		Response:   fmt.Sprintf("Generated agents.yaml from your prompt, but workflow generation did not complete: %v", err),
		YamlFiles:  []models.YamlFile{{Name: models.AgentsFileName, Content: agentsYaml}},
		ChatID:     chatID,
	}
	s.metrics.RecordRun(ctx, string(models.IntentGenerateWorkflow), true)
	s.recordExchange(ctx, chatID, userInput, result.Response)
	return result, nil
}

// IsUpstreamError reports whether err originated in one of the remote
// services.
func IsUpstreamError(err error) bool {
	var upstream *services.UpstreamError
	return errors.As(err, &upstream)
}

// recordExchange persists the user/assistant message pair. Best effort.
func (s *Supervisor) recordExchange(ctx context.Context, chatID, userInput, response string) {
	if s.store == nil || chatID == "" {
		return
	}
	if _, err := s.store.AddMessage(ctx, chatID, "user", userInput); err != nil {
		s.emit(fmt.Sprintf("Could not save user message: %v", err), "warning")
		return
	}
	if _, err := s.store.AddMessage(ctx, chatID, "assistant", response); err != nil {
		s.emit(fmt.Sprintf("Could not save assistant message: %v", err), "warning")
	}
}

func successResponse(intent models.Intent, userRequest, fileEdited string) string {
	if intent == models.IntentEditYaml && fileEdited != "" {
		return fmt.Sprintf("Successfully edited %s based on your request: %s", fileEdited, userRequest)
	}
	return "✅ Successfully generated both agents.yaml and workflow.yaml from your prompt!\n\n" +
		fmt.Sprintf("Your request: %q\n\n", userRequest) +
		"I've created:\n" +
		"• **agents.yaml** - Contains the agent definitions\n" +
		"• **workflow.yaml** - Contains the workflow that uses those agents\n\n" +
		"Both files are now available in the YAML panel on the right. You can switch between tabs to view each file."
}
