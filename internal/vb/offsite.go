package vb

import "io"

// Offsite is an off-site store for ledger copies.
// All operations stream through io.Reader/io.Writer.
type Offsite interface {
	// Put stores a named object along with a version marker.
	// size is the number of bytes that will be read from r.
	Put(name string, r io.Reader, size int64, version int64) error

	// Get writes the named object to w. Returns ErrNotFound if it does not exist.
	Get(name string, w io.Writer) error

	// Version returns the version stored with the named object, or 0 if none.
	Version(name string) (int64, error)

	// ValidateSetup verifies that the store is accessible.
	ValidateSetup() error
}
