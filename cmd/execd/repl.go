package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/execd/execd/internal/server"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run code interactively",
	Long: `Start an interactive loop that feeds each line through the same dispatch
path as the MCP tools.

Commands:
  :runtime node|deno   switch the active runtime
  :timeout <ms>        set the execution timeout
  :search <query>      search indexed code
  :quit                exit

Examples:
  execd repl
  execd repl --config execd.yaml`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

var runtimeTools = map[string]string{
	"node": "run_nodejs_code",
	"deno": "run_deno_code",
}

type replState struct {
	srv       *server.Server
	runtime   string
	timeoutMS int
}

func runRepl(cmd *cobra.Command, args []string) error {
	srv, _, cleanup, err := buildServer()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("execd - interactive runner")
	fmt.Println("Type :help for commands, :quit to exit")
	fmt.Println()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt("node"),
		HistoryFile:     filepath.Join(os.TempDir(), "execd_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	st := &replState{srv: srv, runtime: "node"}

	// Ctrl+C while a snippet runs cancels that snippet, not the repl.
	var reqCancel context.CancelFunc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if reqCancel != nil {
				reqCancel()
			}
		}
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ":") {
			if done := st.command(input); done {
				return nil
			}
			rl.SetPrompt(prompt(st.runtime))
			continue
		}

		callArgs := map[string]any{"code": input}
		if st.timeoutMS > 0 {
			callArgs["timeout"] = float64(st.timeoutMS)
		}

		reqCtx, cancel := context.WithCancel(context.Background())
		reqCancel = cancel
		printResult(st.srv.Dispatch(reqCtx, runtimeTools[st.runtime], callArgs))
		cancel()
		reqCancel = nil
	}
}

// command handles one colon command; returns true when the repl should exit.
func (st *replState) command(input string) bool {
	fields := strings.Fields(input)

	switch fields[0] {
	case ":quit", ":exit", ":q":
		fmt.Println("Goodbye!")
		return true

	case ":runtime":
		if len(fields) != 2 || runtimeTools[fields[1]] == "" {
			fmt.Println("usage: :runtime node|deno")
			break
		}
		st.runtime = fields[1]
		fmt.Printf("Runtime: %s\n\n", st.runtime)

	case ":timeout":
		ms := 0
		if len(fields) == 2 {
			ms, _ = strconv.Atoi(fields[1])
		}
		if ms <= 0 {
			fmt.Println("usage: :timeout <ms>")
			break
		}
		st.timeoutMS = ms
		fmt.Printf("Timeout: %dms\n\n", ms)

	case ":search":
		query := strings.TrimSpace(strings.TrimPrefix(input, ":search"))
		if query == "" {
			fmt.Println("usage: :search <query>")
			break
		}
		printResult(st.srv.Dispatch(context.Background(), "search_code", map[string]any{
			"query": query,
		}))

	case ":help":
		fmt.Println("Commands:")
		fmt.Println("  :help                - Show this help")
		fmt.Println("  :runtime node|deno   - Switch the active runtime")
		fmt.Println("  :timeout <ms>        - Set the execution timeout")
		fmt.Println("  :search <query>      - Search indexed code")
		fmt.Println("  :quit                - Exit")
		fmt.Println()

	default:
		fmt.Printf("Unknown command: %s (try :help)\n\n", fields[0])
	}
	return false
}

func prompt(runtime string) string {
	return fmt.Sprintf("\033[36m%s>\033[0m ", runtime)
}

// printResult prints each rendered segment; error results show in red.
func printResult(result *mcp.CallToolResult) {
	for _, text := range server.Texts(result) {
		if result.IsError {
			fmt.Printf("\033[31m%s\033[0m\n", text)
			continue
		}
		fmt.Println(text)
	}
	fmt.Println()
}
