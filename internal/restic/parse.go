package restic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"vault-backup/internal/vb"
)

// ParseSnapshots decodes `restic snapshots --json`. Snapshots without an id
// are dropped and missing short ids are derived from the id.
func ParseSnapshots(data []byte) ([]vb.Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var raw []vb.Snapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding snapshots: %w", err)
	}
	snaps := raw[:0]
	for _, s := range raw {
		if s.ID == "" {
			continue
		}
		if s.ShortID == "" {
			s.ShortID = s.ID[:min(8, len(s.ID))]
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

type lsRecord struct {
	StructType  string `json:"struct_type"`
	MessageType string `json:"message_type"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	MTime       string `json:"mtime"`
}

// ParseListing decodes `restic ls --json`, one object per line. The snapshot
// header record and malformed lines are skipped.
func ParseListing(data []byte) []vb.Entry {
	var entries []vb.Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec lsRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.StructType == "snapshot" || rec.MessageType == "snapshot" || rec.Path == "" {
			continue
		}
		kind := vb.EntryFile
		if rec.Type == "dir" {
			kind = vb.EntryDir
		}
		entries = append(entries, vb.Entry{Path: rec.Path, Kind: kind, Size: rec.Size, MTime: rec.MTime})
	}
	return entries
}

// BackupSummary is the final message of `restic backup --json`.
type BackupSummary struct {
	MessageType  string `json:"message_type"`
	SnapshotID   string `json:"snapshot_id"`
	FilesNew     int    `json:"files_new"`
	FilesChanged int    `json:"files_changed"`
	DataAdded    int64  `json:"data_added"`
}

// ParseBackupSummary finds the summary message in `restic backup --json` output.
func ParseBackupSummary(data []byte) (*BackupSummary, error) {
	var found *BackupSummary
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var msg BackupSummary
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			continue
		}
		if msg.MessageType == "summary" {
			found = &msg
		}
	}
	if found == nil {
		return nil, errors.New("no summary message in restic output")
	}
	return found, nil
}
