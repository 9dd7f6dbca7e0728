// Package git reads vault history and records vault changes through the git CLI.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vault-backup/internal/vb"
)

// logFormat prints one record of exactly four lines per commit.
const logFormat = "%H%n%h%n%aI%n%s"

// Identity is the author recorded on backup commits.
type Identity struct {
	Name  string
	Email string
}

// Client runs git against a working tree. It implements vb.GitHistory,
// vb.Committer and vb.CommitCounter.
type Client struct {
	runner   vb.CommandRunner
	identity Identity
	logger   vb.Logger
}

var (
	_ vb.GitHistory    = (*Client)(nil)
	_ vb.Committer     = (*Client)(nil)
	_ vb.CommitCounter = (*Client)(nil)
)

// NewClient creates a git Client.
func NewClient(runner vb.CommandRunner, identity Identity, logger vb.Logger) *Client {
	return &Client{runner: runner, identity: identity, logger: logger}
}

func (c *Client) run(ctx context.Context, root string, args ...string) (*vb.Result, vb.Command, error) {
	cmd := vb.Command{
		Name: "git",
		Args: append([]string{"-c", "core.quotePath=false"}, args...),
		Dir:  root,
	}
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return nil, cmd, fmt.Errorf("running git %s: %w", args[0], err)
	}
	return res, cmd, nil
}

// output runs git and returns stdout, or an error for any non-zero exit.
func (c *Client) output(ctx context.Context, root string, args ...string) ([]byte, error) {
	res, cmd, err := c.run(ctx, root, args...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, vb.NewToolError(cmd, res)
	}
	return res.Stdout, nil
}

// listing runs a read-only query where any failure means "nothing".
func (c *Client) listing(ctx context.Context, root string, args ...string) string {
	out, err := c.output(ctx, root, args...)
	if err != nil {
		c.logger.Debug("git query returned nothing", "args", args, "error", err)
		return ""
	}
	return string(out)
}

// Log returns up to limit commits, newest first. A limit of 0 means all.
// An unreadable repository yields no commits.
func (c *Client) Log(ctx context.Context, root string, limit int) []vb.Commit {
	args := []string{"log", "--format=" + logFormat}
	if limit > 0 {
		args = append(args, "-"+strconv.Itoa(limit))
	}
	return ParseLog(c.listing(ctx, root, args...))
}

// LogOne resolves ref to a single commit.
func (c *Client) LogOne(ctx context.Context, root string, ref string) (vb.Commit, bool) {
	if !validRef(ref) {
		return vb.Commit{}, false
	}
	commits := ParseLog(c.listing(ctx, root, "log", "--format="+logFormat, "-1", ref, "--"))
	if len(commits) == 0 {
		return vb.Commit{}, false
	}
	return commits[0], true
}

// FileHistory lists the commits that touched path, following renames.
func (c *Client) FileHistory(ctx context.Context, root string, path string, limit int) []vb.Commit {
	args := []string{"log", "--follow", "--format=" + logFormat}
	if limit > 0 {
		args = append(args, "-"+strconv.Itoa(limit))
	}
	args = append(args, "--", path)
	return ParseLog(c.listing(ctx, root, args...))
}

// ShowFile returns the content of path as of ref. A path missing at ref is
// vb.ErrNotFound; a malformed ref is vb.ErrInvalidInput.
func (c *Client) ShowFile(ctx context.Context, root string, ref string, path string) ([]byte, error) {
	if !validRef(ref) {
		return nil, fmt.Errorf("ref %q: %w", ref, vb.ErrInvalidInput)
	}
	out, err := c.output(ctx, root, "show", ref+":"+strings.TrimPrefix(path, "/"))
	if err != nil {
		var toolErr *vb.ToolError
		if errors.As(err, &toolErr) {
			return nil, fmt.Errorf("%s not found at %s: %w", path, ref, vb.ErrNotFound)
		}
		return nil, err
	}
	return out, nil
}

// ChangedFiles lists the paths ref changed, with their status letters.
func (c *Client) ChangedFiles(ctx context.Context, root string, ref string) []vb.FileChange {
	if !validRef(ref) {
		return nil
	}
	return ParseNameStatus(c.listing(ctx, root, "diff-tree", "--no-commit-id", "-r", "--name-status", ref))
}

// FileDiff diffs ref against its parent. Root commits have no parent, so the
// second attempt diffs against the empty tree.
func (c *Client) FileDiff(ctx context.Context, root string, ref string, path string) string {
	if !validRef(ref) {
		return ""
	}
	out, err := c.output(ctx, root, "diff", ref+"^.."+ref, "--", path)
	if err == nil {
		return string(out)
	}
	c.logger.Debug("parent diff failed, trying root diff", "ref", ref, "error", err)
	return c.listing(ctx, root, "diff-tree", "-p", "--root", ref, "--", path)
}

// HasChanges reports whether the working tree differs from HEAD, untracked
// files included.
func (c *Client) HasChanges(ctx context.Context, root string) (bool, error) {
	out, err := c.output(ctx, root, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// StageAll stages every change, deletions included.
func (c *Client) StageAll(ctx context.Context, root string) error {
	if _, err := c.output(ctx, root, "add", "-A"); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// StagedFiles lists the paths in the index.
func (c *Client) StagedFiles(ctx context.Context, root string) ([]string, error) {
	out, err := c.output(ctx, root, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	return nonEmptyLines(string(out)), nil
}

// StagedSummary returns the last line of `git diff --cached --stat`,
// e.g. "3 files changed, 10 insertions(+), 2 deletions(-)".
func (c *Client) StagedSummary(ctx context.Context, root string) string {
	lines := nonEmptyLines(c.listing(ctx, root, "diff", "--cached", "--stat"))
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// Commit records the index under the configured identity.
func (c *Client) Commit(ctx context.Context, root string, message string) error {
	args := []string{}
	if c.identity.Name != "" {
		args = append(args, "-c", "user.name="+c.identity.Name)
	}
	if c.identity.Email != "" {
		args = append(args, "-c", "user.email="+c.identity.Email)
	}
	args = append(args, "commit", "-m", message)
	if _, err := c.output(ctx, root, args...); err != nil {
		return err
	}
	return nil
}

// Unstage empties the index again after a failed commit.
func (c *Client) Unstage(ctx context.Context, root string) error {
	if _, err := c.output(ctx, root, "reset", "--quiet", "HEAD"); err != nil {
		return fmt.Errorf("git reset: %w", err)
	}
	return nil
}

// CountCommitsSince counts commits on HEAD newer than the unix time since.
func (c *Client) CountCommitsSince(ctx context.Context, root string, since int64) int {
	out := strings.TrimSpace(c.listing(ctx, root, "rev-list", "--count", "--since=@"+strconv.FormatInt(since, 10), "HEAD"))
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0
	}
	return n
}

// validRef rejects refs that git would parse as options.
func validRef(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, "-")
}
