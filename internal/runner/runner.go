package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Request describes one code execution.
type Request struct {
	Code    string
	Timeout time.Duration // falls back to Options.DefaultTimeout when zero
}

// Result is the normalized outcome of one execution. Exactly one Result is
// produced per Request no matter how the child process ended.
type Result struct {
	Success         bool
	Stdout          string
	Stderr          string
	Duration        time.Duration
	ExitCode        *int   // nil when the process was killed or never started
	ErrorMessage    string // set only when spawning or feeding the process failed
	StdoutTruncated bool
	StderrTruncated bool
}

// Runner executes source code in an external runtime.
type Runner interface {
	Name() string
	Run(ctx context.Context, req Request) Result
}

// Options configure a runtime executor.
type Options struct {
	Workdir        string // child working directory, also roots the temp dir
	TempDir        string // commonjs artifacts, default <Workdir>/temp
	DefaultTimeout time.Duration
	MaxOutputBytes int // per-stream capture limit, 0 means unlimited
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Workdir == "" {
		o.Workdir = "."
	}
	if o.TempDir == "" {
		o.TempDir = filepath.Join(o.Workdir, "temp")
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 120 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) timeout(req Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return o.DefaultTimeout
}

// limitedWriter keeps the first limit bytes and silently drops the rest,
// remembering whether anything was dropped.
type limitedWriter struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	room := w.limit - w.buf.Len()
	if room <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		w.buf.Write(p[:room])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitedWriter) String() string { return w.buf.String() }

// spawnSpec describes one child process launch.
type spawnSpec struct {
	bin     string
	args    []string
	stdin   io.Reader
	timeout time.Duration
}

// spawn runs one child process to completion and normalizes the outcome.
// The context deadline kills the child; a timeout therefore surfaces the
// same way as any other kill, with no exit code.
func spawn(ctx context.Context, start time.Time, opts Options, spec spawnSpec) Result {
	ctx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.bin, spec.args...)
	cmd.Dir = opts.Workdir
	cmd.Env = os.Environ()
	if spec.stdin != nil {
		cmd.Stdin = spec.stdin
	}

	stdout := &limitedWriter{limit: opts.MaxOutputBytes}
	stderr := &limitedWriter{limit: opts.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	return finalize(start, stdout, stderr, err)
}

// finalize builds the result envelope. Duration is measured from the start
// timestamp taken before any setup work, so even the earliest failure paths
// report elapsed time.
func finalize(start time.Time, stdout, stderr *limitedWriter, waitErr error) Result {
	res := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
		Duration:        time.Since(start),
	}

	if waitErr == nil {
		code := 0
		res.ExitCode = &code
		res.Success = true
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			res.ExitCode = &code
		}
		// Killed by a signal (timeout included): no exit code to report.
		return res
	}

	res.ErrorMessage = waitErr.Error()
	return res
}

// failure is the envelope for errors that happen before a process exists,
// such as temp file setup.
func failure(start time.Time, err error) Result {
	return Result{Duration: time.Since(start), ErrorMessage: err.Error()}
}
