package offsite

import (
	"fmt"
	"strings"

	"vault-backup/internal/vb"
)

// validName rejects object names that would escape a store's namespace.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("object name %q: %w", name, vb.ErrInvalidInput)
	}
	return nil
}
