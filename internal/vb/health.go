package vb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaleBackupAge is how long the vault may go without a snapshot, while it
// has unsaved changes, before it is reported unhealthy.
const StaleBackupAge = 24 * time.Hour

// HealthReport is the JSON body of the health endpoint.
// Timestamps are RFC 3339 in UTC and nil when the marker was never written.
type HealthReport struct {
	Status             string          `json:"status"`
	LastCommit         *time.Time      `json:"last_commit"`
	LastBackup         *time.Time      `json:"last_backup"`
	LastChange         *time.Time      `json:"last_change"`
	PendingChanges     bool            `json:"pending_changes"`
	CommitsSinceBackup int             `json:"commits_since_backup"`
	SyncState          json.RawMessage `json:"sync_state"`
	UptimeSeconds      int64           `json:"uptime_seconds"`
}

// HealthService builds health reports from the persisted state markers.
type HealthService struct {
	root    string
	state   StateStore
	commits CommitCounter
	clock   Clock
	started time.Time
	logger  Logger
}

// NewHealthService creates a HealthService. Uptime is measured from the
// moment of creation.
func NewHealthService(root string, state StateStore, commits CommitCounter, clock Clock, logger Logger) *HealthService {
	return &HealthService{
		root:    root,
		state:   state,
		commits: commits,
		clock:   clock,
		started: clock.Now(),
		logger:  logger,
	}
}

// Report returns the current health of the backup service.
func (h *HealthService) Report(ctx context.Context) (*HealthReport, error) {
	st, err := h.state.Load()
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	now := h.clock.Now()

	report := &HealthReport{
		Status:         "healthy",
		LastCommit:     utcOrNil(st.LastCommit),
		LastBackup:     utcOrNil(st.LastBackup),
		LastChange:     utcOrNil(st.LastChange),
		PendingChanges: st.Pending,
		SyncState:      h.syncState(),
		UptimeSeconds:  int64(now.Sub(h.started) / time.Second),
	}

	if !st.LastCommit.IsZero() && !st.LastBackup.IsZero() && st.LastCommit.After(st.LastBackup) {
		report.CommitsSinceBackup = h.commits.CountCommitsSince(ctx, h.root, st.LastBackup.Unix())
	}

	if !st.LastBackup.IsZero() && now.Sub(st.LastBackup) > StaleBackupAge &&
		!st.LastChange.IsZero() && st.LastChange.After(st.LastBackup) {
		report.Status = "unhealthy"
	}

	return report, nil
}

// syncState returns the raw Obsidian Sync state file, or nil when it is
// missing or not valid JSON.
func (h *HealthService) syncState() json.RawMessage {
	path := filepath.Join(h.root, ".obsidian", "sync.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if !json.Valid(data) {
		h.logger.Debug("obsidian sync state is malformed", "path", path)
		return nil
	}
	return json.RawMessage(data)
}

func utcOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
