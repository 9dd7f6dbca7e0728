package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"vault-backup/internal/app"
	"vault-backup/internal/vb"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func renderCommits(w io.Writer, commits []vb.Commit) {
	table := newTable(w, "Commit", "Date", "Message")
	for _, c := range commits {
		table.Append([]string{c.ShortHash, c.Date, c.Message})
	}
	table.Render()
}

func changeLabel(s vb.ChangeStatus) string {
	switch s {
	case vb.StatusAdded:
		return color.GreenString(s.Name())
	case vb.StatusDeleted:
		return color.RedString(s.Name())
	case vb.StatusModified, vb.StatusRenamed:
		return color.YellowString(s.Name())
	default:
		return s.Name()
	}
}

func renderChanges(w io.Writer, changes []vb.FileChange) {
	table := newTable(w, "Status", "Path")
	for _, c := range changes {
		table.Append([]string{changeLabel(c.Status), c.Path})
	}
	table.Render()
}

// renderDiff colors added and removed lines of a unified diff.
func renderDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(w, color.GreenString(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(w, color.RedString(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(w, color.CyanString(line))
		default:
			fmt.Fprint(w, line)
		}
	}
}

func renderSnapshots(w io.Writer, snaps []vb.Snapshot) {
	table := newTable(w, "ID", "Time", "Paths", "Tags")
	for _, s := range snaps {
		table.Append([]string{s.ShortID, s.Time, strings.Join(s.Paths, ", "), strings.Join(s.Tags, ", ")})
	}
	table.Render()
}

func renderEntries(w io.Writer, entries []vb.Entry) {
	table := newTable(w, "Type", "Size", "Modified", "Path")
	for _, e := range entries {
		size := ""
		path := e.Path
		if e.IsDir() {
			path += "/"
		} else {
			size = fmt.Sprintf("%d", e.Size)
		}
		table.Append([]string{string(e.Kind), size, e.MTime, path})
	}
	table.Render()
}

func runStatusLabel(status string) string {
	switch status {
	case "success":
		return color.GreenString(status)
	case "error":
		return color.RedString(status)
	default:
		return status
	}
}

func renderRuns(w io.Writer, runs []*vb.RunRecord) {
	table := newTable(w, "#", "Trigger", "Started", "Status", "Duration", "Snapshot")
	for _, r := range runs {
		table.Append([]string{
			fmt.Sprintf("%d", r.ID),
			string(r.Trigger),
			r.StartedAt.Local().Format(timeLayout),
			runStatusLabel(r.Status),
			r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String(),
			r.SnapshotID,
		})
	}
	table.Render()
}

func formatMarker(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(timeLayout)
}

func renderStatus(w io.Writer, s *app.Status) {
	h := s.Health
	health := color.GreenString(h.Status)
	if h.Status != "healthy" {
		health = color.RedString(h.Status)
	}
	repo := color.GreenString("ready")
	if !s.RepositoryReady {
		repo = color.RedString("unreachable or not initialized")
	}

	fmt.Fprintf(w, "Health:          %s\n", health)
	fmt.Fprintf(w, "Repository:      %s\n", repo)
	fmt.Fprintf(w, "Last change:     %s\n", formatMarker(h.LastChange))
	fmt.Fprintf(w, "Last commit:     %s\n", formatMarker(h.LastCommit))
	fmt.Fprintf(w, "Last backup:     %s\n", formatMarker(h.LastBackup))
	fmt.Fprintf(w, "Pending changes: %t\n", h.PendingChanges)
	if h.CommitsSinceBackup > 0 {
		fmt.Fprintf(w, "Commits since last backup: %d\n", h.CommitsSinceBackup)
	}
	if s.Running != nil {
		fmt.Fprintf(w, "Running:         %s backup since %s\n", s.Running.Trigger, s.Running.StartedAt.Local().Format(timeLayout))
	}
	if r := s.LastRun; r != nil {
		fmt.Fprintf(w, "Last run:        #%d %s at %s", r.ID, runStatusLabel(r.Status), r.FinishedAt.Local().Format(timeLayout))
		if r.Error != "" {
			fmt.Fprintf(w, " (%s)", r.Error)
		}
		fmt.Fprintln(w)
	}
}

func renderResult(w io.Writer, res *vb.RunResult) {
	switch {
	case !res.Success:
		fmt.Fprintf(w, "%s run %s: %v\n", color.RedString("Backup failed"), res.RunID, res.Err)
		if res.CommitCreated {
			fmt.Fprintln(w, "Changes were committed but no snapshot was created.")
		}
	case res.DryRun:
		fmt.Fprintf(w, "Dry run %s: nothing committed (%s)\n", res.RunID, res.ChangesSummary)
	case !res.CommitCreated:
		fmt.Fprintln(w, "No changes to back up.")
	default:
		fmt.Fprintf(w, "%s snapshot %s\n", color.GreenString("Backed up"), res.SnapshotID)
		if res.ChangesSummary != "" {
			fmt.Fprintln(w, res.ChangesSummary)
		}
	}
}
