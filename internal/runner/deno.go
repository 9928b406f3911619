package runner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DenoRunner executes JavaScript or TypeScript with the Deno runtime. Source
// is always piped over stdin ("deno run -A -"); Deno accepts both module
// dialects there, so nothing is classified and no temp file is written.
type DenoRunner struct {
	bin  string
	args []string
	opts Options
}

// NewDenoRunner creates a runner for the given deno binary. Extra args come
// from an optional runtime profile.
func NewDenoRunner(bin string, args []string, opts Options) *DenoRunner {
	return &DenoRunner{bin: bin, args: args, opts: opts.withDefaults()}
}

func (r *DenoRunner) Name() string { return "deno" }

func (r *DenoRunner) Run(ctx context.Context, req Request) Result {
	start := time.Now()

	r.opts.Logger.Debug("spawning deno", zap.Duration("timeout", r.opts.timeout(req)))

	// -A grants all permissions, "-" reads the program from stdin.
	args := append([]string{"run", "-A"}, r.args...)
	args = append(args, "-")

	return spawn(ctx, start, r.opts, spawnSpec{
		bin:     r.bin,
		args:    args,
		stdin:   strings.NewReader(req.Code),
		timeout: r.opts.timeout(req),
	})
}
