package models

// Intent is the classified purpose of a user request.
type Intent string

const (
	IntentGenerateWorkflow Intent = "GENERATE_WORKFLOW"
	IntentEditYaml         Intent = "EDIT_YAML"
)

// ParseIntent maps an upstream intent string to one of the two recognized
// values. Anything unrecognized collapses to GENERATE_WORKFLOW so that a
// misbehaving classifier can never route a request nowhere.
func ParseIntent(raw string) Intent {
	if Intent(raw) == IntentEditYaml {
		return IntentEditYaml
	}
	return IntentGenerateWorkflow
}

// Classification is the outcome of intent classification for one request.
// Immutable once produced.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// AgentInfo is the name/description pair extracted from an agents document,
// used to build the workflow generation prompt. Ephemeral; only the source
// YAML is persisted.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PipelineResult is the terminal value of one orchestration run.
type PipelineResult struct {
	Intent     Intent     `json:"intent"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Response   string     `json:"response"`
	YamlFiles  []YamlFile `json:"yaml_files"`
	ChatID     string     `json:"chat_id"`
}
