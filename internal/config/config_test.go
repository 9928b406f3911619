package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so no stray execd.yaml is picked up
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workdir != "." {
		t.Errorf("Workdir = %q, want %q", cfg.Workdir, ".")
	}
	if cfg.Node.Binary != "node" {
		t.Errorf("Node.Binary = %q, want %q", cfg.Node.Binary, "node")
	}
	if cfg.Deno.Binary != "deno" {
		t.Errorf("Deno.Binary = %q, want %q", cfg.Deno.Binary, "deno")
	}
	if cfg.Execution.DefaultTimeoutMS != 120000 {
		t.Errorf("DefaultTimeoutMS = %d, want 120000", cfg.Execution.DefaultTimeoutMS)
	}
	if cfg.Execution.MaxOutputBytes != 1<<20 {
		t.Errorf("MaxOutputBytes = %d, want %d", cfg.Execution.MaxOutputBytes, 1<<20)
	}
	if cfg.Search.TopK != 8 {
		t.Errorf("Search.TopK = %d, want 8", cfg.Search.TopK)
	}
	if len(cfg.Search.Extensions) != 2 || cfg.Search.Extensions[0] != "js" || cfg.Search.Extensions[1] != "ts" {
		t.Errorf("Search.Extensions = %v, want [js ts]", cfg.Search.Extensions)
	}
	if len(cfg.Search.Ignores) != 1 || cfg.Search.Ignores[0] != "node_modules" {
		t.Errorf("Search.Ignores = %v, want [node_modules]", cfg.Search.Ignores)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "execd.yaml")
	data := `
workdir: /srv/code
node:
  binary: /usr/local/bin/node22
execution:
  default_timeout_ms: 5000
search:
  top_k: 3
  embedding:
    base_url: http://localhost:8089/v1
    api_key: ${EXECD_TEST_EMBED_KEY}
server:
  http_addr: ":8731"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EXECD_TEST_EMBED_KEY", "sk-test-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", path, err)
	}

	if cfg.Workdir != "/srv/code" {
		t.Errorf("Workdir = %q, want /srv/code", cfg.Workdir)
	}
	if cfg.Node.Binary != "/usr/local/bin/node22" {
		t.Errorf("Node.Binary = %q", cfg.Node.Binary)
	}
	if cfg.Execution.DefaultTimeoutMS != 5000 {
		t.Errorf("DefaultTimeoutMS = %d, want 5000", cfg.Execution.DefaultTimeoutMS)
	}
	if got := cfg.DefaultTimeout().Milliseconds(); got != 5000 {
		t.Errorf("DefaultTimeout() = %dms, want 5000ms", got)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("Search.TopK = %d, want 3", cfg.Search.TopK)
	}
	if cfg.Search.Embedding.APIKey != "sk-test-123" {
		t.Errorf("Embedding.APIKey = %q, want expanded env value", cfg.Search.Embedding.APIKey)
	}
	if cfg.Server.HTTPAddr != ":8731" {
		t.Errorf("Server.HTTPAddr = %q, want :8731", cfg.Server.HTTPAddr)
	}
	// Defaults still apply for keys the file omits
	if cfg.Deno.Binary != "deno" {
		t.Errorf("Deno.Binary = %q, want default", cfg.Deno.Binary)
	}
	if cfg.Search.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q, want default", cfg.Search.Embedding.Model)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() with explicit missing file should error")
	}
}
