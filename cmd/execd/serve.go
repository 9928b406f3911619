package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/execd/execd/internal/server"
)

var httpFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server on stdio, or over streamable HTTP with --http.

In stdio mode stdout carries the protocol and all logging goes to stderr.

Examples:
  execd serve
  execd serve --http :8731`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&httpFlag, "http", "", "Serve MCP over HTTP on this address instead of stdio (overrides server.http_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, cfg, cleanup, err := buildServer()
	if err != nil {
		return err
	}
	defer cleanup()

	addr := httpFlag
	if addr == "" {
		addr = cfg.Server.HTTPAddr
	}
	if addr == "" {
		return srv.ServeStdio()
	}

	httpSrv := server.NewHTTPServer(srv)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		httpSrv.Shutdown(context.Background())
	}()

	if err := httpSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
