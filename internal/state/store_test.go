package state_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vault-backup/internal/state"
)

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := state.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	change := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	commit := change.Add(5 * time.Minute)
	backup := change.Add(6 * time.Minute)

	if err := s.MarkChange(change); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPending(true); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkCommit(commit); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkBackup(backup); err != nil {
		t.Fatal(err)
	}

	reopened, err := state.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.LastChange.Equal(change) || !got.LastCommit.Equal(commit) || !got.LastBackup.Equal(backup) {
		t.Errorf("Load() = %+v", got)
	}
	if !got.Pending {
		t.Error("Pending = false, want true")
	}

	if err := s.SetPending(false); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load()
	if got.Pending {
		t.Error("Pending = true after SetPending(false)")
	}
}

func TestFileStore_OnDiskFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, _ := state.NewFileStore(dir)

	s.MarkChange(time.Unix(1705314600, 0))
	s.SetPending(true)

	data, _ := os.ReadFile(filepath.Join(dir, state.LastChangeFile))
	if string(data) != "1705314600" {
		t.Errorf("last_change = %q", data)
	}
	data, _ = os.ReadFile(filepath.Join(dir, state.PendingChangesFile))
	if string(data) != "true" {
		t.Errorf("pending_changes = %q", data)
	}
}

func TestFileStore_LoadTolerant(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, _ := state.NewFileStore(dir)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() on empty dir error = %v", err)
	}
	if !got.LastChange.IsZero() || got.Pending {
		t.Errorf("Load() = %+v, want zero state", got)
	}

	os.WriteFile(filepath.Join(dir, state.LastBackupFile), []byte("garbage"), 0644)
	os.WriteFile(filepath.Join(dir, state.LastCommitFile), []byte("1705314600.75\n"), 0644)
	got, err = s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.LastBackup.IsZero() {
		t.Errorf("LastBackup = %v, want zero for malformed marker", got.LastBackup)
	}
	if got.LastCommit.Unix() != 1705314600 {
		t.Errorf("LastCommit = %v", got.LastCommit)
	}
}

func TestFileStore_Concurrent(t *testing.T) {
	t.Parallel()
	s, _ := state.NewFileStore(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetPending(i%2 == 0)
			s.MarkChange(time.Unix(int64(1705314600+i), 0))
			s.Load()
		}(i)
	}
	wg.Wait()

	if _, err := s.Load(); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}
