package vb

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors that callers check with errors.Is.
var (
	// ErrNotFound means the requested ref, path, or snapshot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means a required identifier or path was missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTarget means a restore target resolves outside the vault root.
	ErrInvalidTarget = errors.New("invalid restore target")

	// ErrCommitFailed means git refused a commit after changes were staged.
	ErrCommitFailed = errors.New("commit failed")

	// ErrBackupFailed means the snapshot step of a backup run did not complete.
	ErrBackupFailed = errors.New("backup failed")

	// ErrRepositoryNotInitialized means the restic repository has not been created yet.
	ErrRepositoryNotInitialized = errors.New("backup repository not initialized")
)

// ToolError describes an external command that exited non-zero.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s exited with status %d", e.Tool, firstArg(e.Args), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg = fmt.Sprintf("%s: %s", msg, s)
	}
	return msg
}

// NewToolError builds a ToolError from a finished command.
func NewToolError(cmd Command, res *Result) *ToolError {
	return &ToolError{
		Tool:     cmd.Name,
		Args:     cmd.Args,
		ExitCode: res.ExitCode,
		Stderr:   res.Stderr,
	}
}

func firstArg(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}
