// Package state persists the pending-change markers as one small file per key.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"vault-backup/internal/vb"
)

// Marker file names inside the state directory.
const (
	LastChangeFile     = "last_change"
	LastCommitFile     = "last_commit"
	LastBackupFile     = "last_backup"
	PendingChangesFile = "pending_changes"
)

// FileStore is a vb.StateStore backed by a directory. Timestamps are stored
// as unix seconds and the pending flag as "true" or "false".
type FileStore struct {
	mu  sync.Mutex
	dir string
}

var _ vb.StateStore = (*FileStore)(nil)

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the state directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) MarkChange(t time.Time) error { return s.writeTime(LastChangeFile, t) }
func (s *FileStore) MarkCommit(t time.Time) error { return s.writeTime(LastCommitFile, t) }
func (s *FileStore) MarkBackup(t time.Time) error { return s.writeTime(LastBackupFile, t) }

func (s *FileStore) SetPending(pending bool) error {
	return s.write(PendingChangesFile, strconv.FormatBool(pending))
}

// Load reads every marker. Missing or unreadable timestamps load as zero.
func (s *FileStore) Load() (vb.PendingChangeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st vb.PendingChangeState
	var err error
	if st.LastChange, err = s.readTime(LastChangeFile); err != nil {
		return st, err
	}
	if st.LastCommit, err = s.readTime(LastCommitFile); err != nil {
		return st, err
	}
	if st.LastBackup, err = s.readTime(LastBackupFile); err != nil {
		return st, err
	}
	raw, err := s.read(PendingChangesFile)
	if err != nil {
		return st, err
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		st.Pending = true
	}
	return st, nil
}

func (s *FileStore) writeTime(name string, t time.Time) error {
	return s.write(name, strconv.FormatInt(t.Unix(), 10))
}

func (s *FileStore) write(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := filepath.Join(s.dir, name)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// read returns the trimmed marker content, or "" if the marker is missing.
func (s *FileStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) readTime(name string) (time.Time, error) {
	raw, err := s.read(name)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	// Fractional seconds are accepted and truncated.
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(int64(secs), 0), nil
}
