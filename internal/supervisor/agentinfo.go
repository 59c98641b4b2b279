package supervisor

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"maestro-builder/backend/pkg/models"
)

var (
	nameLineRe  = regexp.MustCompile(`(?m)^name:\s*\w+`)
	nameRe      = regexp.MustCompile(`name:\s*(\w+)`)
	blockDescRe = regexp.MustCompile(`(?s)description:\s*\|\s*\n\s*(.+?)(?:\nname:|$)`)
)

// ParseAgentInfo extracts {name, description} records from an agents
// document, in document order. Structured parsing over the `---` separated
// blocks is tried first; if it fails or yields nothing usable, a lossy
// regex scan takes over. Never fails: malformed input degrades to whatever
// the regexes can recover.
func ParseAgentInfo(agentsYaml string) []models.AgentInfo {
	var infos []models.AgentInfo

	for _, block := range strings.Split(agentsYaml, "---") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var doc any
		if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
			return parseAgentInfoFallback(agentsYaml)
		}
		mapping, ok := doc.(map[string]any)
		if !ok {
			// Prose the model wrapped around the documents; skip it.
			continue
		}
		metadata, ok := mapping["metadata"].(map[string]any)
		if !ok {
			continue
		}
		name, ok := metadata["name"].(string)
		if !ok || name == "" {
			continue
		}
		description := ""
		if spec, ok := mapping["spec"].(map[string]any); ok {
			if d, ok := spec["description"].(string); ok {
				description = d
			}
		}
		infos = append(infos, models.AgentInfo{Name: name, Description: description})
	}

	if len(infos) == 0 {
		// Multiple bare name: lines mean a flat, schema-less document;
		// the regex scan handles those better than the decoder.
		if len(nameLineRe.FindAllString(agentsYaml, -1)) > 1 {
			return parseAgentInfoFallback(agentsYaml)
		}
		var flat any
		if err := yaml.Unmarshal([]byte(agentsYaml), &flat); err != nil {
			return parseAgentInfoFallback(agentsYaml)
		}
		if mapping, ok := flat.(map[string]any); ok {
			if name, ok := mapping["name"].(string); ok && name != "" {
				description, _ := mapping["description"].(string)
				infos = append(infos, models.AgentInfo{Name: name, Description: description})
			}
		}
	}

	return infos
}

func parseAgentInfoFallback(agentsYaml string) []models.AgentInfo {
	names := nameRe.FindAllStringSubmatch(agentsYaml, -1)
	descs := blockDescRe.FindAllStringSubmatch(agentsYaml, -1)

	infos := make([]models.AgentInfo, 0, len(names))
	for i, match := range names {
		description := ""
		if i < len(descs) {
			description = strings.TrimSpace(descs[i][1])
		}
		infos = append(infos, models.AgentInfo{Name: match[1], Description: description})
	}
	return infos
}

// BuildWorkflowPrompt enumerates the parsed agents and appends the original
// request, producing the prompt sent to the workflow generation service.
func BuildWorkflowPrompt(infos []models.AgentInfo, userInput string) string {
	var b strings.Builder
	b.WriteString("Create a workflow that uses the following agents:\n\n")
	for i, info := range infos {
		fmt.Fprintf(&b, "agent%d: %s – %s\n", i+1, info.Name, info.Description)
	}
	fmt.Fprintf(&b, "\nprompt: %s", userInput)
	return b.String()
}
