package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/execd/execd/internal/runner"
	"github.com/execd/execd/internal/search"
)

// renderExecution turns one execution result into ordered text segments:
// stdout, stderr, spawn error, then a summary line.
func renderExecution(res runner.Result) []string {
	var segs []string

	if out := strings.TrimSpace(res.Stdout); out != "" {
		if res.StdoutTruncated {
			out += "\n... (stdout truncated)"
		}
		segs = append(segs, out)
	}
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		if res.StderrTruncated {
			errOut += "\n... (stderr truncated)"
		}
		segs = append(segs, "Error: "+errOut)
	}
	if res.ErrorMessage != "" {
		segs = append(segs, "Error: "+res.ErrorMessage)
	}

	return append(segs, executionSummary(res))
}

// The summary always reports an exit code; a process that never produced
// one (spawn failure or kill) is displayed as code 0.
func executionSummary(res runner.Result) string {
	code := 0
	if res.ExitCode != nil {
		code = *res.ExitCode
	}
	return fmt.Sprintf("Execution finished in %dms with exit code %d", res.Duration.Milliseconds(), code)
}

// renderSearch produces a header, one block per match, and a timing summary.
func renderSearch(query string, matches []search.Match, stats search.SyncStats, elapsed time.Duration) []string {
	if len(matches) == 0 {
		return []string{
			fmt.Sprintf("No results for %q", query),
			searchSummary(stats, elapsed),
		}
	}

	segs := make([]string, 0, len(matches)+2)
	segs = append(segs, fmt.Sprintf("Found %d results for %q", len(matches), query))
	for i, m := range matches {
		segs = append(segs, renderMatch(i+1, m))
	}
	return append(segs, searchSummary(stats, elapsed))
}

func renderMatch(rank int, m search.Match) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d. %s (score %.2f)\n", rank, m.Name, m.Score)
	fmt.Fprintf(&b, "   %s:%d-%d (%s, %d lines)\n", m.File, m.StartLine, m.EndLine, m.Kind, m.EndLine-m.StartLine+1)
	if len(m.Params) > 0 {
		fmt.Fprintf(&b, "   params: %s\n", strings.Join(m.Params, ", "))
	}
	if m.ReturnType != "" {
		fmt.Fprintf(&b, "   returns: %s\n", m.ReturnType)
	}
	if m.Extends != "" {
		fmt.Fprintf(&b, "   extends: %s\n", m.Extends)
	}
	if m.Doc != "" {
		fmt.Fprintf(&b, "   doc: %s\n", m.Doc)
	}
	if len(m.Calls) > 0 {
		fmt.Fprintf(&b, "   calls: %s\n", strings.Join(m.Calls, ", "))
	}
	if m.Snippet != "" {
		for _, line := range strings.Split(m.Snippet, "\n") {
			fmt.Fprintf(&b, "   | %s\n", line)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func searchSummary(stats search.SyncStats, elapsed time.Duration) string {
	return fmt.Sprintf("Search took %dms (%d files scanned, %d indexed, %d chunks)",
		elapsed.Milliseconds(), stats.Scanned, stats.Indexed, stats.Chunks)
}

func segments(texts []string) []mcp.Content {
	content := make([]mcp.Content, len(texts))
	for i, t := range texts {
		content[i] = mcp.TextContent{Type: "text", Text: t}
	}
	return content
}
