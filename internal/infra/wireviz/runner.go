// Package wireviz drives the external WireViz engine. It stages harness
// descriptions into scoped workspaces, invokes the binary with a closed
// argument set and collects the produced artifact.
package wireviz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"wireviz-web/internal/config"
	"wireviz-web/internal/domain"
	"wireviz-web/internal/metrics"
)

const outputTailBytes = 4096

// RunError describes a failed engine invocation: a non-zero exit, a missing
// binary or a timeout. Output carries the tail of the captured stderr (or
// stdout) for diagnostics.
type RunError struct {
	ExitCode int
	Timeout  bool
	Output   string
}

func (e *RunError) Error() string {
	if e.Timeout {
		return "engine run timed out"
	}
	if e.Output != "" {
		return fmt.Sprintf("engine exited with code %d: %s", e.ExitCode, e.Output)
	}
	return fmt.Sprintf("engine exited with code %d", e.ExitCode)
}

func (e *RunError) Unwrap() error {
	if e.Timeout {
		return context.DeadlineExceeded
	}
	return nil
}

// Stats is a point-in-time snapshot of engine activity.
type Stats struct {
	Renders    uint64
	Failures   uint64
	LastRender time.Time
}

// Runner invokes the engine binary on staged descriptions. It is safe for
// concurrent use; every invocation gets its own workspace.
type Runner struct {
	cfg config.Config

	mu         sync.Mutex
	renders    uint64
	failures   uint64
	lastRender time.Time
}

// New creates a Runner bound to the given engine configuration.
func New(cfg config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Render stages the request, runs the engine under the configured timeout and
// returns the produced artifact. The workspace is removed on every path, so a
// failed run leaves nothing behind.
func (r *Runner) Render(ctx context.Context, req domain.RenderRequest) (*domain.Artifact, error) {
	ws, err := newWorkspace(r.cfg.Engine.WorkDir)
	if err != nil {
		return nil, err
	}
	defer ws.cleanup()

	inputPath, err := ws.stage(req)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(r.cfg.Engine.TimeoutSecs) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	runErr := r.run(runCtx, buildArgs(inputPath, ws.dir, req.Format)...)
	metrics.RenderDuration.WithLabelValues(string(req.Format)).Observe(time.Since(start).Seconds())

	if runErr != nil {
		r.observe(req.Format, runErr)
		return nil, runErr
	}

	data, err := os.ReadFile(ws.outputPath(req.Format))
	if err != nil {
		err = fmt.Errorf("engine finished but left no %s output: %w", req.Format, err)
		r.observe(req.Format, err)
		return nil, err
	}
	r.observe(req.Format, nil)

	name := req.OutputName
	if name == "" {
		name = "diagram." + req.Format.Ext()
	}
	return &domain.Artifact{
		Bytes:    data,
		MIMEType: req.Format.MIMEType(),
		Filename: name,
	}, nil
}

// Version asks the engine binary for its version string.
func (r *Runner) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, r.cfg.Engine.Path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("engine version probe failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Stats reports how the engine has been doing since startup.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Renders: r.renders, Failures: r.failures, LastRender: r.lastRender}
}

// buildArgs assembles the engine argument vector. Only the staged input path
// and the closed flag set {-o, -f} are ever passed; values come from our own
// staging, never verbatim from the request.
func buildArgs(inputPath, outDir string, f domain.Format) []string {
	args := []string{inputPath, "-o", outDir}
	if f != domain.FormatSVG {
		args = append(args, "-f", string(f))
	}
	return args
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.cfg.Engine.Path, args...)
	// Children of the engine may inherit our pipes; do not let them block
	// Wait past the deadline.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	runErr := &RunError{ExitCode: -1, Output: outputTail(&stdout, &stderr)}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		runErr.Timeout = true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		runErr.ExitCode = exitErr.ExitCode()
	}
	if runErr.Output == "" {
		runErr.Output = err.Error()
	}
	return runErr
}

// observe folds one finished invocation into counters and metrics.
func (r *Runner) observe(f domain.Format, err error) {
	outcome := "ok"
	var runErr *RunError
	switch {
	case err == nil:
	case errors.As(err, &runErr) && runErr.Timeout:
		outcome = "timeout"
	default:
		outcome = "engine_error"
	}
	metrics.RendersTotal.WithLabelValues(string(f), outcome).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
	if err != nil {
		r.failures++
	}
	r.lastRender = time.Now()
}

func outputTail(stdout, stderr *bytes.Buffer) string {
	s := strings.TrimSpace(stderr.String())
	if s == "" {
		s = strings.TrimSpace(stdout.String())
	}
	if len(s) > outputTailBytes {
		s = s[len(s)-outputTailBytes:]
	}
	return s
}
