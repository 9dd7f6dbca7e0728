package offsite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vault-backup/internal/vb"
)

// FileSystemStore keeps objects as plain files, usually on a mounted
// external drive:
//
//	<root>/
//	  <name>           (object bytes)
//	  <name>.version   (decimal version marker)
type FileSystemStore struct {
	name string
	root string
}

// NewFileSystemStore creates a store rooted at root, creating the directory if needed.
func NewFileSystemStore(name, root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create offsite directory: %w", err)
	}
	return &FileSystemStore{name: name, root: root}, nil
}

// Put writes the object atomically, then its version marker.
func (s *FileSystemStore) Put(name string, r io.Reader, size int64, version int64) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.writeFile(filepath.Join(s.root, name), r, size); err != nil {
		return err
	}
	versionData := strings.NewReader(strconv.FormatInt(version, 10))
	return s.writeFile(filepath.Join(s.root, name+".version"), versionData, versionData.Size())
}

// Get writes the named object to w.
func (s *FileSystemStore) Get(name string, w io.Writer) error {
	if err := validName(name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %q in %s: %w", name, s.name, vb.ErrNotFound)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// Version returns the version marker for name.
// Returns 0 if no version file exists.
func (s *FileSystemStore) Version(name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, name+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the root exists and is a writable directory.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("offsite root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("offsite root is not a directory: %s", s.root)
	}

	scratch, err := os.CreateTemp(s.root, ".vb-write-check-*")
	if err != nil {
		return fmt.Errorf("offsite root not writable: %w", err)
	}
	scratch.Close()
	return os.Remove(scratch.Name())
}

// writeFile writes data from r to destPath using a temp file and rename.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ vb.Offsite = (*FileSystemStore)(nil)
