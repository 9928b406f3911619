package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/execd/execd/internal/runner"
)

// --- Execution tools ---

func (s *Server) handleRunNode(ctx context.Context, args map[string]any) *mcp.CallToolResult {
	return s.runCode(ctx, s.node, args)
}

func (s *Server) handleRunDeno(ctx context.Context, args map[string]any) *mcp.CallToolResult {
	return s.runCode(ctx, s.deno, args)
}

func (s *Server) runCode(ctx context.Context, r runner.Runner, args map[string]any) *mcp.CallToolResult {
	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required")
	}

	timeout, err := optionalMillis(args, "timeout")
	if err != nil {
		return errResult("error: " + err.Error())
	}

	res := r.Run(ctx, runner.Request{Code: code, Timeout: timeout})
	return &mcp.CallToolResult{
		Content: segments(renderExecution(res)),
		IsError: !res.Success,
	}
}

// --- Search tool ---

func (s *Server) handleSearch(ctx context.Context, args map[string]any) *mcp.CallToolResult {
	query, _ := args["query"].(string)
	if query == "" {
		return errResult("error: 'query' is required")
	}

	folders := stringList(args, "folders")
	if len(folders) == 0 {
		folders = []string{s.cfg.Workdir}
	}
	extensions := stringList(args, "extensions")
	if len(extensions) == 0 {
		extensions = s.cfg.Search.Extensions
	}
	ignores := stringList(args, "ignores")
	if len(ignores) == 0 {
		ignores = s.cfg.Search.Ignores
	}

	topK := s.cfg.Search.TopK
	if n, err := optionalInt(args, "topK"); err != nil {
		return errResult("error: " + err.Error())
	} else if n > 0 {
		topK = n
	}

	start := time.Now()
	stats, err := s.index.Sync(ctx, folders, extensions, ignores)
	if err != nil {
		return errResult(fmt.Sprintf("error: syncing index: %v", err))
	}

	matches, err := s.index.Query(ctx, query, topK)
	if err != nil {
		return errResult(fmt.Sprintf("error: searching: %v", err))
	}

	return &mcp.CallToolResult{
		Content: segments(renderSearch(query, matches, stats, time.Since(start))),
	}
}

// --- Argument helpers ---

// optionalMillis reads a millisecond count from the argument bag. JSON
// numbers arrive as float64.
func optionalMillis(args map[string]any, key string) (time.Duration, error) {
	ms, err := optionalInt(args, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func optionalInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}

	var n int
	switch num := v.(type) {
	case float64:
		n = int(num)
	case int:
		n = num
	default:
		return 0, fmt.Errorf("'%s' must be a number", key)
	}
	if n <= 0 {
		return 0, fmt.Errorf("'%s' must be positive", key)
	}
	return n, nil
}

func stringList(args map[string]any, key string) []string {
	switch list := args[key].(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return list
	}
	return nil
}
