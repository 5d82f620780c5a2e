package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"sql-sandbox/configs"
	"sql-sandbox/internal/assignment"
	"sql-sandbox/internal/hint"
	"sql-sandbox/internal/sqlproxy"
)

type QueryRunner interface {
	Run(ctx context.Context, q sqlproxy.Query) (*sqlproxy.Result, error)
}

type HintProvider interface {
	Hint(ctx context.Context, req hint.HintRequest) (string, error)
}

type Catalog interface {
	List(ctx context.Context, q assignment.ListQuery) (*assignment.ListResponse, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *configs.Config
	logger    *zap.Logger
	queries   QueryRunner
	hints     HintProvider
	catalog   Catalog
	mcpServer *server.MCPServer

	mu         sync.Mutex
	httpServer *server.StreamableHTTPServer
}

// New creates the server and registers its tools. hints and catalog may be
// nil, in which case their tools are not registered.
func New(cfg *configs.Config, logger *zap.Logger, queries QueryRunner, hints HintProvider, catalog Catalog) *MCPServer {
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		queries: queries,
		hints:   hints,
		catalog: catalog,
	}

	logger.Info("configuration loaded",
		zap.String("mcp.transport", cfg.MCP.Transport),
		zap.Int("mcp.http_port", cfg.MCP.HTTPPort),
		zap.String("sandbox.dialect", cfg.Sandbox.Dialect),
		zap.Strings("sandbox.schemas", cfg.Sandbox.Schemas),
		zap.Duration("sandbox.time_budget", cfg.Sandbox.TimeBudget),
		zap.Int("sandbox.row_cap", cfg.Sandbox.RowCap),
	)

	s.mcpServer = server.NewMCPServer("sql-sandbox", "1.0.0")
	s.registerExecuteSQLTool()
	if hints != nil {
		s.registerHintTool()
	}
	if catalog != nil {
		s.registerListAssignmentsTool()
	}
	return s
}

func (s *MCPServer) registerExecuteSQLTool() {
	tool := mcp.Tool{
		Name:        "execute_sql",
		Description: "Run a single read-only SQL query (SELECT or WITH) against the sample tables. Changes are always rolled back.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "SQL text, exactly one statement",
				},
				"schemaContext": map[string]any{
					"type":        "string",
					"description": "Sample schema to run in (optional)",
					"enum":        s.config.Sandbox.Schemas,
				},
				"assignmentId": map[string]any{
					"type":        "string",
					"description": "Assignment whose schema to use (optional)",
				},
			},
			Required: []string{"query"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleExecuteSQL)
}

func (s *MCPServer) handleExecuteSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return nil, fmt.Errorf("query parameter is required: %w", err)
	}

	result, err := s.queries.Run(ctx, sqlproxy.Query{
		Text:          query,
		SchemaContext: request.GetString("schemaContext", ""),
		AssignmentID:  request.GetString("assignmentId", ""),
	})
	if err != nil {
		var qErr *sqlproxy.Error
		if !errors.As(err, &qErr) {
			return nil, err
		}
		s.logger.Info("sql tool query failed", zap.String("kind", string(qErr.Kind)), zap.String("code", qErr.Code))
		return jsonResult(sqlproxy.NewErrorResponse(qErr), true)
	}

	s.logger.Info("sql tool query completed",
		zap.Int("rows", len(result.Records)),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", result.Duration))
	return jsonResult(sqlproxy.NewQueryResponse(result), false)
}

func (s *MCPServer) registerHintTool() {
	tool := mcp.Tool{
		Name:        "get_hint",
		Description: "Get a short hint for a SQL attempt without revealing the solution",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The assignment question",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "The learner's current SQL attempt",
				},
				"schema": map[string]any{
					"type":        "string",
					"description": "Table definitions to include in the prompt (optional)",
				},
				"assignmentId": map[string]any{
					"type":        "string",
					"description": "Assignment whose tables to describe when schema is omitted (optional)",
				},
			},
			Required: []string{"question", "query"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetHint)
}

func (s *MCPServer) handleGetHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return nil, fmt.Errorf("question parameter is required: %w", err)
	}
	query, err := request.RequireString("query")
	if err != nil {
		return nil, fmt.Errorf("query parameter is required: %w", err)
	}

	text, err := s.hints.Hint(ctx, hint.HintRequest{
		Question:     question,
		Query:        query,
		Schema:       request.GetString("schema", ""),
		AssignmentID: request.GetString("assignmentId", ""),
	})
	if err != nil {
		s.logger.Warn("hint tool failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *MCPServer) registerListAssignmentsTool() {
	tool := mcp.Tool{
		Name:        "list_assignments",
		Description: "List SQL practice assignments with their sample tables",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"difficulty": map[string]any{
					"type":        "string",
					"description": "Filter by difficulty, e.g. easy, medium, hard (optional)",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListAssignments)
}

func (s *MCPServer) handleListAssignments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.catalog.List(ctx, assignment.ListQuery{
		Difficulty: request.GetString("difficulty", ""),
		Page:       1,
		PageSize:   100,
	})
	if err != nil {
		s.logger.Error("list assignments tool failed", zap.Error(err))
		return mcp.NewToolResultError("failed to fetch assignments"), nil
	}
	return jsonResult(out, false)
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	result := mcp.NewToolResultText(string(raw))
	result.IsError = isError
	return result, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.MCP.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	s.mu.Lock()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
	httpServer := s.httpServer
	s.mu.Unlock()
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// Shutdown stops the HTTP transport if it was started.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	return httpServer.Shutdown(ctx)
}
