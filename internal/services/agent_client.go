package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UpstreamError reports that a remote generation service was unreachable or
// answered with a non-success status.
type UpstreamError struct {
	Service string
	Status  int
	Detail  string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s service failed with status %d: %s", e.Service, e.Status, e.Detail)
	}
	return fmt.Sprintf("failed to communicate with %s service: %s", e.Service, e.Detail)
}

// HTTPAgentClient is an HTTP implementation of the AgentClient interface.
// All four remote services share the same contract: POST {prompt, agent?}
// and a 200 response carrying {response}.
type HTTPAgentClient struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPAgentClient creates a new HTTPAgentClient with a per-service
// request timeout.
func NewHTTPAgentClient(name, url string, timeout time.Duration) *HTTPAgentClient {
	return &HTTPAgentClient{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Agent  string `json:"agent,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat sends a prompt to the remote service and returns its text response.
func (c *HTTPAgentClient) Chat(ctx context.Context, prompt, agent string) (string, error) {
	requestBody, err := json.Marshal(chatRequest{Prompt: prompt, Agent: agent})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Service: c.name, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", &UpstreamError{Service: c.name, Status: resp.StatusCode, Detail: fmt.Sprintf("failed to read error body: %v", err)}
		}
		return "", &UpstreamError{Service: c.name, Status: resp.StatusCode, Detail: string(detail)}
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return body.Response, nil
}
