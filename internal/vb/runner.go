package vb

import "context"

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the parent environment.
	Env []string
}

// Result captures the outcome of a command that ran to completion.
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// OK reports whether the command exited with status 0.
func (r *Result) OK() bool { return r.ExitCode == 0 }

// CommandRunner executes external processes.
// Run returns a Result whenever the process ran, including non-zero exits.
// The error is reserved for failures to start the process or for context
// cancellation and timeouts.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}
