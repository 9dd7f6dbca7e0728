package testutil

import (
	"context"
	"fmt"
	"sync"

	"vault-backup/internal/vb"
)

// StubGitHistory serves commits and file contents from maps.
type StubGitHistory struct {
	Commits []vb.Commit
	// Files maps "ref:path" to content.
	Files   map[string][]byte
	Changes map[string][]vb.FileChange
	Diffs   map[string]string
}

func NewStubGitHistory() *StubGitHistory {
	return &StubGitHistory{
		Files:   make(map[string][]byte),
		Changes: make(map[string][]vb.FileChange),
		Diffs:   make(map[string]string),
	}
}

// AddFile registers content for path at ref.
func (g *StubGitHistory) AddFile(ref, path string, data []byte) {
	g.Files[ref+":"+path] = data
}

func (g *StubGitHistory) Log(_ context.Context, _ string, limit int) []vb.Commit {
	if limit > 0 && len(g.Commits) > limit {
		return g.Commits[:limit]
	}
	return g.Commits
}

func (g *StubGitHistory) LogOne(_ context.Context, _ string, ref string) (vb.Commit, bool) {
	for _, c := range g.Commits {
		if c.Hash == ref || c.ShortHash == ref {
			return c, true
		}
	}
	return vb.Commit{}, false
}

func (g *StubGitHistory) FileHistory(ctx context.Context, root string, _ string, limit int) []vb.Commit {
	return g.Log(ctx, root, limit)
}

func (g *StubGitHistory) ShowFile(_ context.Context, _ string, ref string, path string) ([]byte, error) {
	data, ok := g.Files[ref+":"+path]
	if !ok {
		return nil, fmt.Errorf("%s:%s: %w", ref, path, vb.ErrNotFound)
	}
	return data, nil
}

func (g *StubGitHistory) ChangedFiles(_ context.Context, _ string, ref string) []vb.FileChange {
	return g.Changes[ref]
}

func (g *StubGitHistory) FileDiff(_ context.Context, _ string, ref string, path string) string {
	return g.Diffs[ref+":"+path]
}

func (g *StubGitHistory) CountCommitsSince(_ context.Context, _ string, _ int64) int {
	return len(g.Commits)
}

// StubSnapshotHistory serves snapshots and listings from maps.
type StubSnapshotHistory struct {
	mu        sync.Mutex
	Snaps     []vb.Snapshot
	Listings  map[string][]vb.Entry
	Files     map[string][]byte
	listCalls int
}

func NewStubSnapshotHistory() *StubSnapshotHistory {
	return &StubSnapshotHistory{
		Listings: make(map[string][]vb.Entry),
		Files:    make(map[string][]byte),
	}
}

// AddFile registers content for path inside snapshot id.
func (s *StubSnapshotHistory) AddFile(id, path string, data []byte) {
	s.Files[id+":"+path] = data
}

func (s *StubSnapshotHistory) Snapshots(_ context.Context, _ string) []vb.Snapshot {
	return s.Snaps
}

func (s *StubSnapshotHistory) ListFiles(_ context.Context, id string) ([]vb.Entry, error) {
	s.mu.Lock()
	s.listCalls++
	entries, ok := s.Listings[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, vb.ErrNotFound)
	}
	return entries, nil
}

// SetListing replaces the listing served for id.
func (s *StubSnapshotHistory) SetListing(id string, entries []vb.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Listings[id] = entries
}

// ListCalls returns how many times ListFiles was called.
func (s *StubSnapshotHistory) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *StubSnapshotHistory) Dump(_ context.Context, id string, path string) ([]byte, error) {
	data, ok := s.Files[id+":"+path]
	if !ok {
		return nil, fmt.Errorf("%s in snapshot %s: %w", path, id, vb.ErrNotFound)
	}
	return data, nil
}
