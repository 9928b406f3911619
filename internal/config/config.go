package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type NodeConfig struct {
	Binary string `mapstructure:"binary"`
}

type DenoConfig struct {
	Binary string `mapstructure:"binary"`
}

type ExecutionConfig struct {
	DefaultTimeoutMS int    `mapstructure:"default_timeout_ms"`
	MaxOutputBytes   int    `mapstructure:"max_output_bytes"`
	TempDir          string `mapstructure:"temp_dir"`
	Profile          string `mapstructure:"profile"`
}

type EmbeddingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type SearchConfig struct {
	IndexDir   string          `mapstructure:"index_dir"`
	TopK       int             `mapstructure:"top_k"`
	Extensions []string        `mapstructure:"extensions"`
	Ignores    []string        `mapstructure:"ignores"`
	Embedding  EmbeddingConfig `mapstructure:"embedding"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type Config struct {
	Workdir   string          `mapstructure:"workdir"`
	Node      NodeConfig      `mapstructure:"node"`
	Deno      DenoConfig      `mapstructure:"deno"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Search    SearchConfig    `mapstructure:"search"`
	Server    ServerConfig    `mapstructure:"server"`
}

// Load reads execd.yaml from the given file, or from the working directory
// and $HOME/.execd when file is empty. A missing config file is not an
// error; every key has a default so the server runs with zero configuration.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("execd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.execd")
	}

	v.SetDefault("workdir", ".")
	v.SetDefault("node.binary", "node")
	v.SetDefault("deno.binary", "deno")
	v.SetDefault("execution.default_timeout_ms", 120000)
	v.SetDefault("execution.max_output_bytes", 1<<20)
	v.SetDefault("search.top_k", 8)
	v.SetDefault("search.extensions", []string{"js", "ts"})
	v.SetDefault("search.ignores", []string{"node_modules"})
	v.SetDefault("search.embedding.model", "text-embedding-3-small")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in the embedding API key
	if key := cfg.Search.Embedding.APIKey; strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		cfg.Search.Embedding.APIKey = os.Getenv(key[2 : len(key)-1])
	}

	return &cfg, nil
}

// DefaultTimeout returns the execution timeout as a duration.
func (c *Config) DefaultTimeout() time.Duration {
	if c.Execution.DefaultTimeoutMS <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Execution.DefaultTimeoutMS) * time.Millisecond
}
