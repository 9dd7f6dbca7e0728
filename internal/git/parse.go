package git

import (
	"strings"

	"vault-backup/internal/vb"
)

// ParseLog parses output produced with logFormat. A trailing partial record
// is dropped.
func ParseLog(out string) []vb.Commit {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	commits := make([]vb.Commit, 0, len(lines)/4)
	for i := 0; i+3 < len(lines); i += 4 {
		commits = append(commits, vb.Commit{
			Hash:      strings.TrimSpace(lines[i]),
			ShortHash: strings.TrimSpace(lines[i+1]),
			Date:      strings.TrimSpace(lines[i+2]),
			Message:   strings.TrimRight(lines[i+3], "\r"),
		})
	}
	return commits
}

// ParseNameStatus parses `git diff-tree --name-status` output. Renames and
// copies report the new path.
func ParseNameStatus(out string) []vb.FileChange {
	var changes []vb.FileChange
	for _, line := range nonEmptyLines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		changes = append(changes, vb.FileChange{
			Path:   fields[len(fields)-1],
			Status: vb.ParseChangeStatus(fields[0]),
		})
	}
	return changes
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
