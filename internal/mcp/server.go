package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/internal/supervisor"
)

type Server struct {
	mcpServer *server.MCPServer
	sup       *supervisor.Supervisor
	store     repository.ChatStore
}

func NewServer(sup *supervisor.Supervisor, store repository.ChatStore) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Maestro Builder",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		sup:   sup,
		store: store,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_workflow",
			mcp.WithDescription("Generate Maestro agents.yaml and workflow.yaml from a natural language request"),
			mcp.WithString("request", mcp.Required(), mcp.Description("What the workflow should do")),
			mcp.WithString("chat_id", mcp.Description("Existing chat session to attach the result to")),
		),
		s.handleGenerateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"edit_yaml",
			mcp.WithDescription("Edit a YAML document according to an instruction"),
			mcp.WithString("yaml", mcp.Required(), mcp.Description("The YAML document to edit")),
			mcp.WithString("instruction", mcp.Required(), mcp.Description("How the document should change")),
			mcp.WithString("file_type", mcp.Description("Document kind, e.g. agents or workflow")),
		),
		s.handleEditYaml,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_yaml_files",
			mcp.WithDescription("List the YAML documents stored for a chat session"),
			mcp.WithString("chat_id", mcp.Required(), mcp.Description("The chat session ID")),
		),
		s.handleListYamlFiles,
	)
}

func (s *Server) handleGenerateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	userRequest, ok := args["request"].(string)
	if !ok || userRequest == "" {
		return mcp.NewToolResultError("Missing required parameter: request"), nil
	}
	chatID, _ := args["chat_id"].(string)
	if chatID == "" && s.store != nil {
		created, err := s.store.CreateChatSession(ctx, "", "")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create chat session: %v", err)), nil
		}
		chatID = created
	}

	result, err := s.sup.ProcessWithFallback(ctx, userRequest, chatID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleEditYaml(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	yamlContent, ok := args["yaml"].(string)
	if !ok || yamlContent == "" {
		return mcp.NewToolResultError("Missing required parameter: yaml"), nil
	}
	instruction, ok := args["instruction"].(string)
	if !ok || instruction == "" {
		return mcp.NewToolResultError("Missing required parameter: instruction"), nil
	}
	fileType, _ := args["file_type"].(string)
	if fileType == "" {
		fileType = "yaml"
	}

	edited, err := s.sup.EditYAML(ctx, yamlContent, fileType, instruction)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to edit YAML: %v", err)), nil
	}

	return mcp.NewToolResultText(edited), nil
}

func (s *Server) handleListYamlFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	chatID, ok := args["chat_id"].(string)
	if !ok || chatID == "" {
		return mcp.NewToolResultError("Missing required parameter: chat_id"), nil
	}

	files, err := s.store.GetYamlFiles(ctx, chatID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list YAML files: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(files)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
