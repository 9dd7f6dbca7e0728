// Package runner executes external commands for the git and restic clients.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"vault-backup/internal/vb"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, since children of a killed process can keep them open.
const waitDelay = 2 * time.Second

// ExecRunner is the default vb.CommandRunner, delegating to os/exec.
type ExecRunner struct {
	timeout time.Duration
	logger  vb.Logger
}

var _ vb.CommandRunner = (*ExecRunner)(nil)

// NewExecRunner creates an ExecRunner. A zero timeout leaves each command
// bounded only by the caller's context.
func NewExecRunner(timeout time.Duration, logger vb.Logger) *ExecRunner {
	return &ExecRunner{timeout: timeout, logger: logger}
}

// Run starts cmd, waits for it and captures its output.
// A non-zero exit is reported through Result.ExitCode, not as an error.
func (r *ExecRunner) Run(ctx context.Context, cmd vb.Command) (*vb.Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Warn("command interrupted", "command", cmd.Name, "args", cmd.Args, "elapsed", elapsed, "error", ctxErr)
		return nil, fmt.Errorf("running %s: %w", cmd.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		r.logger.Debug("command finished", "command", cmd.Name, "args", cmd.Args, "elapsed", elapsed)
		return &vb.Result{Stdout: stdout.Bytes(), Stderr: stderr.String()}, nil
	case errors.As(err, &exitErr):
		r.logger.Debug("command exited non-zero", "command", cmd.Name, "args", cmd.Args, "exit_code", exitErr.ExitCode(), "elapsed", elapsed)
		return &vb.Result{Stdout: stdout.Bytes(), Stderr: stderr.String(), ExitCode: exitErr.ExitCode()}, nil
	default:
		return nil, fmt.Errorf("starting %s: %w", cmd.Name, err)
	}
}
