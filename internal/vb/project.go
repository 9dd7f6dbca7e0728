package vb

import (
	"sort"
	"strings"
)

// ProjectDirectory returns the immediate children of prefix from a flat
// snapshot listing. Directories that only appear as parents of deeper entries
// are synthesized. The result lists directories first, then files, each in
// case-insensitive path order, and never contains the same child name twice.
func ProjectDirectory(entries []Entry, prefix string) []Entry {
	base := normalizePrefix(prefix)

	dirs := make(map[string]Entry)
	synthesized := make(map[string]bool)
	files := make(map[string]Entry)

	for _, e := range entries {
		if !strings.HasPrefix(e.Path, base) {
			continue
		}
		rel := e.Path[len(base):]
		rel = strings.TrimSuffix(rel, "/")
		if rel == "" {
			continue
		}

		name, deeper := firstSegment(rel)
		switch {
		case deeper:
			if _, ok := dirs[name]; !ok {
				dirs[name] = Entry{Path: base + name, Kind: EntryDir}
				synthesized[name] = true
			}
		case e.IsDir():
			if _, ok := dirs[name]; !ok || synthesized[name] {
				dirs[name] = Entry{Path: base + name, Kind: EntryDir, Size: 0, MTime: e.MTime}
				delete(synthesized, name)
			}
		default:
			if _, ok := files[name]; !ok {
				files[name] = e
			}
		}
	}

	result := make([]Entry, 0, len(dirs)+len(files))
	for _, d := range dirs {
		result = append(result, d)
	}
	sortByPathFold(result)

	fileList := make([]Entry, 0, len(files))
	for name, f := range files {
		if _, clash := dirs[name]; clash {
			continue
		}
		fileList = append(fileList, f)
	}
	sortByPathFold(fileList)

	return append(result, fileList...)
}

// normalizePrefix turns "", "/" and "/a/b/" into "/", "/" and "/a/b/".
func normalizePrefix(prefix string) string {
	trimmed := strings.TrimRight(prefix, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed + "/"
}

func firstSegment(rel string) (string, bool) {
	name, _, deeper := strings.Cut(rel, "/")
	return name, deeper
}

func sortByPathFold(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Path) < strings.ToLower(entries[j].Path)
	})
}
