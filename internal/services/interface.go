package services

import "context"

// AgentClient is an interface for one remote text-generation service.
type AgentClient interface {
	// Chat sends a prompt, optionally tagged with an agent name, and
	// returns the service's raw text response.
	Chat(ctx context.Context, prompt, agent string) (string, error)
}
