package vb

import "context"

// GitHistory reads the commit history of a working tree.
// Listing operations never fail: a git error or empty output yields an empty
// result so the browsing surface keeps working.
type GitHistory interface {
	// Log returns up to limit commits, newest first.
	Log(ctx context.Context, root string, limit int) []Commit

	// LogOne returns the commit for ref, or false if ref cannot be resolved.
	LogOne(ctx context.Context, root string, ref string) (Commit, bool)

	// FileHistory returns up to limit commits that touched path, following renames.
	FileHistory(ctx context.Context, root string, path string, limit int) []Commit

	// ShowFile returns the content of path at ref.
	// Returns an error wrapping ErrNotFound if path does not exist at ref.
	ShowFile(ctx context.Context, root string, ref string, path string) ([]byte, error)

	// ChangedFiles lists the files touched by the single commit ref.
	ChangedFiles(ctx context.Context, root string, ref string) []FileChange

	// FileDiff returns the unified diff of path introduced by ref.
	// Returns an empty string when the file is unchanged or nothing can be diffed.
	FileDiff(ctx context.Context, root string, ref string, path string) string
}

// SnapshotHistory reads snapshots from the backup store.
type SnapshotHistory interface {
	// Snapshots lists snapshots carrying tag (all snapshots if tag is empty).
	// Malformed output or a store failure yields an empty list.
	Snapshots(ctx context.Context, tag string) []Snapshot

	// ListFiles returns the flat listing of a snapshot.
	// Returns an error wrapping ErrNotFound if the snapshot id is invalid.
	ListFiles(ctx context.Context, snapshotID string) ([]Entry, error)

	// Dump returns the raw content of path inside a snapshot.
	// Returns an error wrapping ErrNotFound if path does not exist there.
	Dump(ctx context.Context, snapshotID string, path string) ([]byte, error)
}

// Committer stages and commits working-tree changes.
type Committer interface {
	// HasChanges reports whether the working tree has uncommitted changes.
	HasChanges(ctx context.Context, root string) (bool, error)

	// StageAll stages every change, including deletions.
	StageAll(ctx context.Context, root string) error

	// StagedFiles lists paths staged for the next commit.
	StagedFiles(ctx context.Context, root string) ([]string, error)

	// StagedSummary returns the one-line stat summary of staged changes.
	StagedSummary(ctx context.Context, root string) string

	// Commit records the staged changes with message.
	Commit(ctx context.Context, root string, message string) error

	// Unstage drops everything from the index without touching the tree.
	Unstage(ctx context.Context, root string) error
}

// SnapshotStore creates and prunes snapshots.
type SnapshotStore interface {
	// Initialized reports whether the repository exists and is reachable.
	Initialized(ctx context.Context) bool

	// Backup snapshots root and returns the new snapshot id.
	// Returns an error wrapping ErrRepositoryNotInitialized if the repository
	// does not exist yet.
	Backup(ctx context.Context, root string) (string, error)

	// Prune applies the retention policy.
	Prune(ctx context.Context) error
}

// CommitCounter counts commits newer than a point in time.
type CommitCounter interface {
	CountCommitsSince(ctx context.Context, root string, since int64) int
}
