package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/execd/execd/internal/config"
	"github.com/execd/execd/internal/runner"
	"github.com/execd/execd/internal/search"
	"github.com/execd/execd/internal/server"
)

var (
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "execd",
	Short: "execd - MCP code execution gateway",
	Long: `execd is an MCP server that runs JavaScript and TypeScript snippets in
Node.js and Deno child processes and answers structural code-search
queries over local source trees.

Without a subcommand it serves MCP over stdio, same as 'execd serve'.`,
	Version: server.Version,
	RunE:    runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default execd.yaml in . or ~/.execd)")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Enable debug logging")
}

// newLogger builds the process logger. Both variants write to stderr, so
// stdio-transport mode never corrupts the protocol stream on stdout.
func newLogger() (*zap.Logger, error) {
	if verboseFlag {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildServer loads configuration and assembles the executors, the search
// index, and the tool router. The returned cleanup closes what it opened.
func buildServer() (*server.Server, *config.Config, func(), error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	nodeBin, nodeArgs := cfg.Node.Binary, []string(nil)
	denoBin, denoArgs := cfg.Deno.Binary, []string(nil)
	if cfg.Execution.Profile != "" {
		prof, err := runner.LoadProfile(cfg.Execution.Profile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading runtime profile: %w", err)
		}
		nodeBin, nodeArgs = prof.Node.Resolve(nodeBin)
		denoBin, denoArgs = prof.Deno.Resolve(denoBin)
	}

	opts := runner.Options{
		Workdir:        cfg.Workdir,
		TempDir:        cfg.Execution.TempDir,
		DefaultTimeout: cfg.DefaultTimeout(),
		MaxOutputBytes: cfg.Execution.MaxOutputBytes,
		Logger:         logger,
	}

	var embedder *search.Embedder
	if cfg.Search.Embedding.BaseURL != "" {
		embedder = search.NewEmbedder(
			cfg.Search.Embedding.BaseURL,
			cfg.Search.Embedding.APIKey,
			cfg.Search.Embedding.Model,
		)
	}

	idx, err := search.Open(search.Options{
		DataDir:  cfg.Search.IndexDir,
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening search index: %w", err)
	}

	node := runner.NewNodeRunner(nodeBin, nodeArgs, opts)
	deno := runner.NewDenoRunner(denoBin, denoArgs, opts)

	cleanup := func() {
		idx.Close()
		logger.Sync()
	}
	return server.New(cfg, node, deno, idx, logger), cfg, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
