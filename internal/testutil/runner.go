package testutil

import (
	"context"
	"strings"
	"sync"

	"vault-backup/internal/vb"
)

// FakeRunner is a scripted vb.CommandRunner. Responses are matched against
// the command line ("name arg1 arg2 ...") by the longest registered prefix.
// Unmatched commands exit with status 127.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []vb.Command
}

type fakeResponse struct {
	res *vb.Result
	err error
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]fakeResponse)}
}

// On registers the result returned for commands starting with prefix.
func (r *FakeRunner) On(prefix string, res *vb.Result) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = fakeResponse{res: res}
	return r
}

// OnError registers a start failure for commands starting with prefix.
func (r *FakeRunner) OnError(prefix string, err error) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = fakeResponse{err: err}
	return r
}

func (r *FakeRunner) Run(ctx context.Context, cmd vb.Command) (*vb.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line := CommandLine(cmd)
	best, found := "", false
	for prefix := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, found = prefix, true
		}
	}
	if !found {
		return &vb.Result{ExitCode: 127, Stderr: "unexpected command: " + line}, nil
	}
	resp := r.responses[best]
	if resp.err != nil {
		return nil, resp.err
	}
	copied := *resp.res
	return &copied, nil
}

// Calls returns the commands run so far.
func (r *FakeRunner) Calls() []vb.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]vb.Command(nil), r.calls...)
}

// Called reports whether any command line started with prefix.
func (r *FakeRunner) Called(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(CommandLine(c), prefix) {
			return true
		}
	}
	return false
}

// CommandLine joins a command and its arguments with spaces.
func CommandLine(cmd vb.Command) string {
	return strings.TrimSpace(cmd.Name + " " + strings.Join(cmd.Args, " "))
}

// OK is a successful result with the given stdout.
func OK(stdout string) *vb.Result {
	return &vb.Result{Stdout: []byte(stdout)}
}

// Fail is a result with a non-zero exit code.
func Fail(code int, stderr string) *vb.Result {
	return &vb.Result{ExitCode: code, Stderr: stderr}
}
