package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// Result is the outcome of a one-shot command.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Runner executes one-shot commands.
type Runner interface {
	Execute(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
//
// When ctx is cancelled or Timeout elapses the command receives SIGTERM,
// then SIGKILL after Grace.
type ExecRunner struct {
	Timeout time.Duration
	Grace   time.Duration
	logger  Logger
}

// NewExecRunner creates a runner. Zero durations mean no timeout and the
// default grace period.
func NewExecRunner(timeout, grace time.Duration) *ExecRunner {
	if grace <= 0 {
		grace = defaultGracefulTimeout
	}
	return &ExecRunner{Timeout: timeout, Grace: grace, logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *ExecRunner) SetLogger(logger Logger) {
	r.logger = logger
}

// Execute runs name with args and waits for it. A non-zero exit returns the
// Result together with an error wrapping ErrCommandFailed. Cancellation
// returns an error wrapping the context error.
func (r *ExecRunner) Execute(ctx context.Context, name string, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Binaries come from operator config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.Grace

	start := time.Now()
	err := cmd.Run()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	r.logger.Debug("command finished",
		"command", name,
		"args", args,
		"exit_code", res.ExitCode,
		"duration", time.Since(start),
	)

	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("running %s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, fmt.Errorf("%w: %s exited with status %d", ErrCommandFailed, name, res.ExitCode)
	}
	return res, fmt.Errorf("running %s: %w", name, err)
}
