package vb

import "time"

// Commit is one entry of the git history.
type Commit struct {
	Hash      string `json:"hash"`
	ShortHash string `json:"short_hash"`
	// Date is the author date in ISO-8601 with offset.
	Date    string `json:"date"`
	Message string `json:"message"`
}

// ChangeStatus is the single-letter git status of a file in a commit.
type ChangeStatus string

const (
	StatusAdded       ChangeStatus = "A"
	StatusModified    ChangeStatus = "M"
	StatusDeleted     ChangeStatus = "D"
	StatusRenamed     ChangeStatus = "R"
	StatusCopied      ChangeStatus = "C"
	StatusTypeChanged ChangeStatus = "T"
)

// ParseChangeStatus takes the first character of a git status code.
// Rename and copy codes carry a similarity score ("R100") which is discarded.
func ParseChangeStatus(code string) ChangeStatus {
	if code == "" {
		return ""
	}
	return ChangeStatus(code[:1])
}

// Name returns a human readable name for the status.
func (s ChangeStatus) Name() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusCopied:
		return "copied"
	case StatusTypeChanged:
		return "type changed"
	default:
		return string(s)
	}
}

// FileChange is one file touched by a commit.
type FileChange struct {
	Path   string       `json:"path"`
	Status ChangeStatus `json:"status"`
}

// Snapshot is one restic snapshot.
type Snapshot struct {
	ID      string   `json:"id"`
	ShortID string   `json:"short_id"`
	Time    string   `json:"time"`
	Paths   []string `json:"paths"`
	Tags    []string `json:"tags"`
}

// EntryKind distinguishes files from directories in a snapshot listing.
type EntryKind string

const (
	EntryFile EntryKind = "file"
	EntryDir  EntryKind = "dir"
)

// Entry is one record of a flat snapshot listing.
type Entry struct {
	// Path is absolute within the backed-up root.
	Path  string    `json:"path"`
	Kind  EntryKind `json:"type"`
	Size  int64     `json:"size"`
	MTime string    `json:"mtime"`
}

// IsDir returns true for directory entries.
func (e Entry) IsDir() bool { return e.Kind == EntryDir }

// PendingChangeState is the set of markers shared by the watcher, the backup
// run and the health endpoint. Zero times mean "never".
type PendingChangeState struct {
	LastChange time.Time
	Pending    bool
	LastCommit time.Time
	LastBackup time.Time
}
