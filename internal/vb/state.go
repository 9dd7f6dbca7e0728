package vb

import "time"

// StateStore persists the pending-change markers.
// Implementations must be safe for concurrent use: the watcher, the backup run
// and the health endpoint share one store.
type StateStore interface {
	// MarkChange records the time of the first change in a batch.
	MarkChange(t time.Time) error

	// SetPending records whether changes are waiting for a backup run.
	SetPending(pending bool) error

	// MarkCommit records the time of the last successful commit.
	MarkCommit(t time.Time) error

	// MarkBackup records the time of the last successful snapshot.
	MarkBackup(t time.Time) error

	// Load returns the current markers. Missing markers are zero values.
	Load() (PendingChangeState, error)
}
