// Package supervisor implements the request-orchestration pipeline: intent
// classification, agents/workflow document generation, and YAML editing,
// coordinated by the Supervisor state machine.
package supervisor

import "strings"

const (
	yamlFence = "```yaml"
	bareFence = "```"
)

// ExtractYAML pulls a YAML document out of free-form model output. It is a
// textual heuristic, not a parser: fenced blocks win, then a bare
// apiVersion: anchor, then the trimmed input itself. It never fails and
// tolerates stray prose, partial fences, and multi-document text.
func ExtractYAML(text string) string {
	if idx := strings.Index(text, yamlFence); idx >= 0 {
		rest := text[idx+len(yamlFence):]
		if end := strings.Index(rest, bareFence); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}

	if idx := strings.Index(text, bareFence); idx >= 0 {
		rest := text[idx+len(bareFence):]
		if end := strings.Index(rest, bareFence); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}

	if idx := strings.Index(text, "apiVersion:"); idx >= 0 {
		rest := text[idx:]
		if end := strings.Index(rest, "\n\n"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}

	return strings.TrimSpace(text)
}
