// Package restic lists, reads and creates vault snapshots through the restic CLI.
package restic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vault-backup/internal/vb"
)

// DefaultTag marks every snapshot this service creates.
const DefaultTag = "obsidian"

// Retention is the forget policy applied after each snapshot.
type Retention struct {
	Daily   int
	Weekly  int
	Monthly int
}

// Options configures a Client.
type Options struct {
	Repository   string
	Password     string
	PasswordFile string
	Tag          string
	Retention    Retention
	// Credentials supplies extra environment for remote repositories. May be nil.
	Credentials CredentialSource
}

// CredentialSource produces environment variables that authenticate restic
// against its repository backend.
type CredentialSource interface {
	Env(ctx context.Context) ([]string, error)
}

// Client runs restic. It implements vb.SnapshotHistory and vb.SnapshotStore.
type Client struct {
	runner vb.CommandRunner
	opts   Options
	logger vb.Logger
}

var (
	_ vb.SnapshotHistory = (*Client)(nil)
	_ vb.SnapshotStore   = (*Client)(nil)
)

// NewClient creates a restic Client. An empty tag defaults to DefaultTag.
func NewClient(runner vb.CommandRunner, opts Options, logger vb.Logger) *Client {
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}
	return &Client{runner: runner, opts: opts, logger: logger}
}

// Tag returns the tag applied to new snapshots.
func (c *Client) Tag() string { return c.opts.Tag }

func (c *Client) env(ctx context.Context) ([]string, error) {
	var env []string
	if c.opts.Repository != "" {
		env = append(env, "RESTIC_REPOSITORY="+c.opts.Repository)
	}
	if c.opts.Password != "" {
		env = append(env, "RESTIC_PASSWORD="+c.opts.Password)
	}
	if c.opts.PasswordFile != "" {
		env = append(env, "RESTIC_PASSWORD_FILE="+c.opts.PasswordFile)
	}
	if c.opts.Credentials != nil {
		extra, err := c.opts.Credentials.Env(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving repository credentials: %w", err)
		}
		env = append(env, extra...)
	}
	return env, nil
}

func (c *Client) run(ctx context.Context, args ...string) (*vb.Result, vb.Command, error) {
	env, err := c.env(ctx)
	if err != nil {
		return nil, vb.Command{}, err
	}
	cmd := vb.Command{Name: "restic", Args: args, Env: env}
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return nil, cmd, fmt.Errorf("running restic %s: %w", args[0], err)
	}
	return res, cmd, nil
}

// Snapshots lists snapshots carrying tag, or all snapshots when tag is
// empty. Failures are logged and yield an empty list.
func (c *Client) Snapshots(ctx context.Context, tag string) []vb.Snapshot {
	args := []string{"snapshots", "--json"}
	if tag != "" {
		args = append(args, "--tag", tag)
	}
	res, cmd, err := c.run(ctx, args...)
	if err != nil {
		c.logger.Warn("listing snapshots failed", "error", err)
		return nil
	}
	if !res.OK() {
		c.logger.Warn("listing snapshots failed", "error", vb.NewToolError(cmd, res))
		return nil
	}
	snaps, err := ParseSnapshots(res.Stdout)
	if err != nil {
		c.logger.Warn("restic snapshots output is malformed", "error", err)
		return nil
	}
	return snaps
}

// ListFiles returns every node in a snapshot. snapshotID may be a full or
// short id, or "latest".
func (c *Client) ListFiles(ctx context.Context, snapshotID string) ([]vb.Entry, error) {
	if !validID(snapshotID) {
		return nil, fmt.Errorf("snapshot %q: %w", snapshotID, vb.ErrInvalidInput)
	}
	res, cmd, err := c.run(ctx, "ls", "--json", snapshotID)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("snapshot %s: %w (%v)", snapshotID, vb.ErrNotFound, vb.NewToolError(cmd, res))
	}
	return ParseListing(res.Stdout), nil
}

// Dump returns the content of the file at path inside a snapshot.
func (c *Client) Dump(ctx context.Context, snapshotID string, path string) ([]byte, error) {
	if !validID(snapshotID) {
		return nil, fmt.Errorf("snapshot %q: %w", snapshotID, vb.ErrInvalidInput)
	}
	res, cmd, err := c.run(ctx, "dump", snapshotID, path)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("%s in snapshot %s: %w (%v)", path, snapshotID, vb.ErrNotFound, vb.NewToolError(cmd, res))
	}
	return res.Stdout, nil
}

// Initialized reports whether the repository can be opened.
func (c *Client) Initialized(ctx context.Context) bool {
	res, _, err := c.run(ctx, "snapshots", "--quiet")
	return err == nil && res.OK()
}

// Backup snapshots root, excluding the git directory, and returns the id of
// the new snapshot.
func (c *Client) Backup(ctx context.Context, root string) (string, error) {
	if !c.Initialized(ctx) {
		return "", vb.ErrRepositoryNotInitialized
	}

	c.logger.Info("starting snapshot", "vault", root)
	res, cmd, err := c.run(ctx, "backup", "--json",
		"--tag", c.opts.Tag, "--tag", "auto-backup",
		"--exclude", ".git", root)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", vb.NewToolError(cmd, res)
	}

	summary, err := ParseBackupSummary(res.Stdout)
	if err != nil {
		return "", fmt.Errorf("reading backup summary: %w", err)
	}
	c.logger.Info("snapshot saved", "snapshot_id", summary.SnapshotID,
		"files_new", summary.FilesNew, "files_changed", summary.FilesChanged,
		"data_added", summary.DataAdded)
	return summary.SnapshotID, nil
}

// Prune forgets snapshots outside the retention policy and prunes unused data.
func (c *Client) Prune(ctx context.Context) error {
	r := c.opts.Retention
	c.logger.Info("pruning snapshots", "keep_daily", r.Daily, "keep_weekly", r.Weekly, "keep_monthly", r.Monthly)
	res, cmd, err := c.run(ctx, "forget", "--tag", c.opts.Tag,
		"--keep-daily="+strconv.Itoa(r.Daily),
		"--keep-weekly="+strconv.Itoa(r.Weekly),
		"--keep-monthly="+strconv.Itoa(r.Monthly),
		"--prune", "--quiet")
	if err != nil {
		return err
	}
	if !res.OK() {
		return vb.NewToolError(cmd, res)
	}
	return nil
}

// validID rejects ids that restic would parse as options.
func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "-")
}
