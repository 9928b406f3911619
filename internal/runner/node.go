package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

// NodeRunner executes JavaScript with the Node.js runtime. ES-module source
// is piped over stdin; CommonJS source goes through a temp .cjs file because
// Node rejects CommonJS constructs on a module-mode stdin.
type NodeRunner struct {
	bin  string
	args []string // extra flags, placed before the strategy arguments
	opts Options
}

// NewNodeRunner creates a runner for the given node binary. Extra args come
// from an optional runtime profile.
func NewNodeRunner(bin string, args []string, opts Options) *NodeRunner {
	return &NodeRunner{bin: bin, args: args, opts: opts.withDefaults()}
}

func (r *NodeRunner) Name() string { return "node" }

func (r *NodeRunner) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	strategy := Classify(req.Code)

	r.opts.Logger.Debug("spawning node",
		zap.String("strategy", strategy.String()),
		zap.Duration("timeout", r.opts.timeout(req)),
	)

	if strategy == StrategyCommonJS {
		return r.runCommonJS(ctx, start, req)
	}
	return r.runModule(ctx, start, req)
}

func (r *NodeRunner) runModule(ctx context.Context, start time.Time, req Request) Result {
	args := append(append([]string{}, r.args...), "--input-type=module")
	return spawn(ctx, start, r.opts, spawnSpec{
		bin:     r.bin,
		args:    args,
		stdin:   strings.NewReader(req.Code),
		timeout: r.opts.timeout(req),
	})
}

func (r *NodeRunner) runCommonJS(ctx context.Context, start time.Time, req Request) Result {
	if err := os.MkdirAll(r.opts.TempDir, 0o755); err != nil {
		return failure(start, fmt.Errorf("creating temp dir: %w", err))
	}

	// xid encodes a timestamp plus a random payload, so concurrent requests
	// never collide on the file name.
	path := filepath.Join(r.opts.TempDir, "exec-"+xid.New().String()+".cjs")
	if err := os.WriteFile(path, []byte(req.Code), 0o644); err != nil {
		return failure(start, fmt.Errorf("writing code file: %w", err))
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.opts.Logger.Debug("temp file cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}()

	args := append(append([]string{}, r.args...), path)
	return spawn(ctx, start, r.opts, spawnSpec{
		bin:     r.bin,
		args:    args,
		timeout: r.opts.timeout(req),
	})
}
