// Package runtime translates validated API requests into invocations of the
// external runtime control CLI and device bridge, and maps their exit status
// and output into structured results.
//
// The Adapter interface is the narrow boundary to the external tools; the
// Controller above it is testable with a fake adapter.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout marks a command that exceeded its deadline. A timed-out call is
// reported, never silently retried.
var ErrTimeout = errors.New("command timed out")

// CommandError reports a command that ran but exited nonzero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// Result holds the outcome of one external command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Adapter executes external commands with a bounded timeout.
//
// A nonzero exit status is data, not an error: it is returned in the Result.
// Errors are reserved for the command failing to run at all or exceeding its
// timeout (ErrTimeout).
type Adapter interface {
	Execute(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error)
}

// Logger is the minimal logging interface the adapter needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// CLIAdapter runs commands via os/exec. Arguments are passed as an argv
// vector, never through a shell; validation upstream keeps metacharacters
// out regardless.
type CLIAdapter struct {
	logger Logger
}

// NewCLIAdapter creates an Adapter backed by os/exec.
func NewCLIAdapter(logger Logger) *CLIAdapter {
	return &CLIAdapter{logger: logger}
}

// Execute runs name with args, bounded by timeout.
func (a *CLIAdapter) Execute(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	a.logger.Debug("command executed",
		"command", name,
		"args", args,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if cmdCtx.Err() != nil && errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		a.warnTimeout(name, timeout)
		return res, fmt.Errorf("%s: %w", name, ErrTimeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("running %s: %w", name, err)
	}
	return res, nil
}

func (a *CLIAdapter) warnTimeout(name string, timeout time.Duration) {
	a.logger.Warn("command timed out", "command", name, "timeout", timeout)
}
