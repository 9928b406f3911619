package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// HTTPServer exposes the MCP server over streamable HTTP, for clients that
// connect over the network instead of owning our stdio.
type HTTPServer struct {
	router chi.Router
	http   *http.Server
	log    *zap.Logger
}

// NewHTTPServer mounts the MCP endpoint at /mcp plus a health probe.
func NewHTTPServer(s *Server) *HTTPServer {
	h := &HTTPServer{
		router: chi.NewRouter(),
		log:    s.log,
	}

	r := h.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcp))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return h
}

// Start begins listening on the given address.
func (h *HTTPServer) Start(addr string) error {
	h.http = &http.Server{
		Addr:    addr,
		Handler: h.router,
	}

	h.log.Info("http server starting", zap.String("addr", addr))
	return h.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	h.log.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return h.http.Shutdown(shutdownCtx)
}
