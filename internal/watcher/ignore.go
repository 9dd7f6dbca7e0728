package watcher

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is an optional file in the vault root listing extra ignore entries.
const IgnoreFileName = ".vbignore"

// Default ignore entries for an Obsidian vault.
var (
	DefaultIgnoreSegments = []string{".git", ".trash"}
	DefaultIgnorePaths    = []string{".obsidian/workspace.json", ".obsidian/workspace-mobile.json"}
)

// IgnorePolicy decides which changed paths never trigger a backup.
// A path is ignored if one of its segments equals an ignored segment, or if
// it ends, on a segment boundary, with an ignored relative path. Matching is
// by whole segment: ".gitignore" is not matched by ".git".
type IgnorePolicy struct {
	segments map[string]bool
	paths    []string
}

// NewIgnorePolicy builds a policy. Blank entries and entries starting with
// '#' are skipped.
func NewIgnorePolicy(segments, paths []string) *IgnorePolicy {
	p := &IgnorePolicy{segments: make(map[string]bool)}
	for _, s := range segments {
		s = strings.Trim(strings.TrimSpace(s), "/")
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		p.segments[s] = true
	}
	for _, raw := range paths {
		raw = strings.Trim(filepath.ToSlash(strings.TrimSpace(raw)), "/")
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p.paths = append(p.paths, raw)
	}
	return p
}

// DefaultIgnorePolicy returns the policy for a stock Obsidian vault.
func DefaultIgnorePolicy() *IgnorePolicy {
	return NewIgnorePolicy(DefaultIgnoreSegments, DefaultIgnorePaths)
}

// Extend returns a policy with extra entries from an ignore file. Entries
// containing '/' are relative paths, anything else is a segment.
func (p *IgnorePolicy) Extend(entries []string) *IgnorePolicy {
	segments := make([]string, 0, len(p.segments))
	for s := range p.segments {
		segments = append(segments, s)
	}
	paths := append([]string(nil), p.paths...)
	for _, e := range entries {
		if strings.Contains(strings.Trim(strings.TrimSpace(e), "/"), "/") {
			paths = append(paths, e)
		} else {
			segments = append(segments, e)
		}
	}
	return NewIgnorePolicy(segments, paths)
}

// Match reports whether changes to path should be ignored.
func (p *IgnorePolicy) Match(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, seg := range strings.Split(normalized, "/") {
		if p.segments[seg] {
			return true
		}
	}
	for _, tail := range p.paths {
		if normalized == tail || strings.HasSuffix(normalized, "/"+tail) {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns its raw lines.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entries = append(entries, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return entries, nil
}
