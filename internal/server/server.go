package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/execd/execd/internal/config"
	"github.com/execd/execd/internal/runner"
	"github.com/execd/execd/internal/search"
)

// Version is reported to MCP clients and by the version command.
const Version = "0.1.0"

// toolHandler runs one validated-or-not tool call and always produces a
// result. Failures are rendered into the result, never returned.
type toolHandler func(ctx context.Context, args map[string]any) *mcp.CallToolResult

// Server routes MCP tool calls to the runtime executors and the search
// index.
type Server struct {
	cfg      *config.Config
	node     runner.Runner
	deno     runner.Runner
	index    *search.Index
	log      *zap.Logger
	handlers map[string]toolHandler
	mcp      *mcpserver.MCPServer
}

// New assembles the tool surface over the given executors and search index.
func New(cfg *config.Config, node, deno runner.Runner, index *search.Index, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:   cfg,
		node:  node,
		deno:  deno,
		index: index,
		log:   logger,
		mcp:   mcpserver.NewMCPServer("execd", Version),
	}
	s.handlers = map[string]toolHandler{
		"run_nodejs_code": s.handleRunNode,
		"run_deno_code":   s.handleRunDeno,
		"search_code":     s.handleSearch,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	timeoutProp := map[string]any{
		"type":        "number",
		"description": "Execution timeout in milliseconds (default 120000)",
	}

	s.mcp.AddTool(mcp.Tool{
		Name:        "run_nodejs_code",
		Description: "Execute JavaScript code with Node.js. Both ES module and CommonJS sources are accepted.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "JavaScript source code to execute",
				},
				"timeout": timeoutProp,
			},
			Required: []string{"code"},
		},
	}, s.toolFunc("run_nodejs_code"))

	s.mcp.AddTool(mcp.Tool{
		Name:        "run_deno_code",
		Description: "Execute JavaScript or TypeScript code with Deno (all permissions granted).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "JavaScript or TypeScript source code to execute",
				},
				"timeout": timeoutProp,
			},
			Required: []string{"code"},
		},
	}, s.toolFunc("run_deno_code"))

	s.mcp.AddTool(mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed JavaScript/TypeScript code by function name, doc text, or content. Folders are re-indexed before every query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"folders": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Folders to index and search (default: working directory)",
				},
				"extensions": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "File extensions to include (default: js, ts)",
				},
				"ignores": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Directory names to skip (default: node_modules)",
				},
				"topK": map[string]any{
					"type":        "number",
					"description": "Maximum number of results (default 8)",
				},
			},
			Required: []string{"query"},
		},
	}, s.toolFunc("search_code"))
}

// toolFunc adapts a named tool to the mcp-go handler signature.
func (s *Server) toolFunc(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		return s.Dispatch(ctx, name, args), nil
	}
}

// Dispatch runs one tool call end to end: validation, execution or search,
// rendering. It is the router boundary: unknown tool names and handler
// panics come back as error text segments, so a failing request can never
// surface as a protocol fault or take the host down.
func (s *Server) Dispatch(ctx context.Context, name string, args map[string]any) (result *mcp.CallToolResult) {
	id := uuid.New().String()
	log := s.log.With(zap.String("tool", name), zap.String("request_id", id))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("tool handler panicked", zap.Any("panic", r))
			result = errResult(fmt.Sprintf("error: internal failure: %v", r))
		}
		log.Debug("tool call finished",
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("is_error", result != nil && result.IsError),
		)
	}()

	log.Debug("tool call started")

	h, ok := s.handlers[name]
	if !ok {
		return errResult(fmt.Sprintf("error: unknown tool %q", name))
	}
	return h(ctx, args)
}

// ServeStdio runs the MCP server over stdin/stdout until the client
// disconnects or the process is signalled.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// Texts flattens a tool result back into its text segments.
func Texts(result *mcp.CallToolResult) []string {
	texts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return texts
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
