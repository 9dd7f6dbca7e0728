package vb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RestoreResult describes a completed restore.
type RestoreResult struct {
	Target string
	Source SourceKind
}

// Restorer writes historical file content back into the vault.
type Restorer struct {
	root     string
	resolver *Resolver
	logger   Logger
}

// NewRestorer creates a Restorer that only writes below root.
func NewRestorer(root string, resolver *Resolver, logger Logger) *Restorer {
	return &Restorer{
		root:     root,
		resolver: resolver,
		logger:   logger,
	}
}

// Restore fetches path from the commit or snapshot named by id and writes it
// to target. An empty target restores in place: absolute paths are used as-is
// and relative paths are placed under the vault root.
// The target is validated before anything is read or written.
func (r *Restorer) Restore(ctx context.Context, id string, path string, target string) (*RestoreResult, error) {
	if id == "" || path == "" {
		return nil, fmt.Errorf("source and path are required: %w", ErrInvalidInput)
	}

	dest, err := ResolveTarget(r.root, path, target)
	if err != nil {
		return nil, err
	}

	r.logger.Info("restore started", "source", id, "path", path, "target", dest)

	content, err := r.resolver.Content(ctx, id, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := writeFileAtomic(dest, content.Data, 0644); err != nil {
		return nil, err
	}

	r.logger.Info("file restored", "target", dest, "source_kind", content.Source.String())
	return &RestoreResult{Target: dest, Source: content.Source}, nil
}

// ResolveTarget computes where a restore of path should be written.
// target overrides path when set. Relative values are joined to root.
// The result must lie strictly inside root once ".." and symlinks are resolved.
func ResolveTarget(root string, path string, target string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("vault root not configured: %w", ErrInvalidInput)
	}

	raw := target
	if raw == "" {
		raw = path
	}
	if raw == "" {
		return "", fmt.Errorf("restore path is required: %w", ErrInvalidInput)
	}
	if !filepath.IsAbs(raw) {
		raw = filepath.Join(root, raw)
	}

	resolvedRoot, err := resolveExisting(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("resolving vault root: %w", err)
	}
	resolved, err := resolveExisting(filepath.Clean(raw))
	if err != nil {
		return "", fmt.Errorf("resolving restore target: %w", err)
	}

	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s: %w", raw, root, ErrInvalidTarget)
	}
	return resolved, nil
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of p and
// re-appends the parts that do not exist yet.
func resolveExisting(p string) (string, error) {
	var missing []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

// writeFileAtomic writes data to a temp file next to dest and renames it.
func writeFileAtomic(dest string, data []byte, perm fs.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".vb-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing restored content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
