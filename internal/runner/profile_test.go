package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	data := `
node:
  binary: /opt/node22/bin/node
  args: ["--max-old-space-size=256"]
deno:
  args: ["--quiet"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}

	bin, args := p.Node.Resolve("node")
	if bin != "/opt/node22/bin/node" {
		t.Errorf("node binary = %q", bin)
	}
	if len(args) != 1 || args[0] != "--max-old-space-size=256" {
		t.Errorf("node args = %v", args)
	}

	bin, args = p.Deno.Resolve("deno")
	if bin != "deno" {
		t.Errorf("deno binary = %q, want fallback", bin)
	}
	if len(args) != 1 || args[0] != "--quiet" {
		t.Errorf("deno args = %v", args)
	}
}

func TestLoadProfileMissing(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadProfile() on missing file should error")
	}
}

func TestResolveZeroProfile(t *testing.T) {
	var rp RuntimeProfile
	bin, args := rp.Resolve("node")
	if bin != "node" || len(args) != 0 {
		t.Errorf("Resolve() = %q %v, want fallback with no args", bin, args)
	}
}
