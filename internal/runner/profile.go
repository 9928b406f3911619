package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeProfile overrides one runtime's binary and prepends extra flags.
// Zero values keep the configured defaults.
type RuntimeProfile struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// Profile carries per-runtime overrides, e.g. pinning a specific node
// install or adding hardening flags.
type Profile struct {
	Node RuntimeProfile `yaml:"node"`
	Deno RuntimeProfile `yaml:"deno"`
}

// LoadProfile reads a runtime profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}

	return &p, nil
}

// Resolve returns the binary and args to use, preferring the profile's
// values over the fallback binary.
func (rp RuntimeProfile) Resolve(fallback string) (string, []string) {
	bin := fallback
	if rp.Binary != "" {
		bin = rp.Binary
	}
	return bin, rp.Args
}
