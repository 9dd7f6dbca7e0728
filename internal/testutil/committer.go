package testutil

import (
	"context"
	"sync"
	"time"

	"vault-backup/internal/vb"
)

// StubCommitter is a scripted vb.Committer. Set the Err fields to make the
// corresponding step fail.
type StubCommitter struct {
	mu sync.Mutex

	Changed  bool
	Staged   []string
	Summary  string
	Messages []string

	StatusErr error
	StageErr  error
	CommitErr error

	Unstaged bool
}

func (c *StubCommitter) HasChanges(context.Context, string) (bool, error) {
	return c.Changed, c.StatusErr
}

func (c *StubCommitter) StageAll(context.Context, string) error { return c.StageErr }

func (c *StubCommitter) StagedFiles(context.Context, string) ([]string, error) {
	return c.Staged, nil
}

func (c *StubCommitter) StagedSummary(context.Context, string) string { return c.Summary }

func (c *StubCommitter) Commit(_ context.Context, _ string, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CommitErr != nil {
		return c.CommitErr
	}
	c.Messages = append(c.Messages, message)
	return nil
}

func (c *StubCommitter) Unstage(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Unstaged = true
	return nil
}

// StubSnapshotStore is a scripted vb.SnapshotStore.
type StubSnapshotStore struct {
	mu sync.Mutex

	SnapshotID string
	BackupErr  error
	PruneErr   error

	Backups int
	Prunes  int
}

func (s *StubSnapshotStore) Initialized(context.Context) bool { return s.BackupErr == nil }

func (s *StubSnapshotStore) Backup(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BackupErr != nil {
		return "", s.BackupErr
	}
	s.Backups++
	return s.SnapshotID, nil
}

func (s *StubSnapshotStore) Prune(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prunes++
	return s.PruneErr
}

// MemoryStateStore is a vb.StateStore kept in memory.
type MemoryStateStore struct {
	mu    sync.Mutex
	state vb.PendingChangeState
	// Writes counts every marker write.
	Writes int
}

func (s *MemoryStateStore) update(f func(*vb.PendingChangeState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.state)
	s.Writes++
	return nil
}

func (s *MemoryStateStore) MarkChange(t time.Time) error {
	return s.update(func(st *vb.PendingChangeState) { st.LastChange = t })
}

func (s *MemoryStateStore) SetPending(p bool) error {
	return s.update(func(st *vb.PendingChangeState) { st.Pending = p })
}

func (s *MemoryStateStore) MarkCommit(t time.Time) error {
	return s.update(func(st *vb.PendingChangeState) { st.LastCommit = t })
}

func (s *MemoryStateStore) MarkBackup(t time.Time) error {
	return s.update(func(st *vb.PendingChangeState) { st.LastBackup = t })
}

func (s *MemoryStateStore) Load() (vb.PendingChangeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// WriteCount returns the number of marker writes so far.
func (s *MemoryStateStore) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Writes
}
