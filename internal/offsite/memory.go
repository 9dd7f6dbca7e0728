package offsite

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"vault-backup/internal/vb"
)

// MemoryStore is an in-memory implementation of vb.Offsite.
// It is useful for testing and is safe for concurrent use.
type MemoryStore struct {
	name     string
	objects  map[string][]byte
	versions map[string]int64
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store with the given name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:     name,
		objects:  make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// Put stores a named object along with a version marker.
func (m *MemoryStore) Put(name string, r io.Reader, size int64, version int64) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[name] = data
	m.versions[name] = version
	return nil
}

// Get writes the named object to w.
func (m *MemoryStore) Get(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("object %q in %s: %w", name, m.name, vb.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// Version returns the version stored with name, or 0 if none.
func (m *MemoryStore) Version(name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[name], nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup() error {
	return nil
}

var _ vb.Offsite = (*MemoryStore)(nil)
