package vb

import "time"

// Trigger names what started a backup run.
type Trigger string

const (
	TriggerWatch  Trigger = "watch"
	TriggerManual Trigger = "manual"
)

// RunRecord is one row of the backup run ledger.
type RunRecord struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Trigger       Trigger   `json:"trigger"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Status        string    `json:"status"`
	CommitCreated bool      `json:"commit_created"`
	BackupCreated bool      `json:"backup_created"`
	SnapshotID    string    `json:"snapshot_id,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// NewRunRecord builds a ledger row from a finished run.
func NewRunRecord(res *RunResult, trigger Trigger, started, finished time.Time) *RunRecord {
	rec := &RunRecord{
		RunID:         res.RunID,
		Trigger:       trigger,
		StartedAt:     started,
		FinishedAt:    finished,
		Status:        res.Status(),
		CommitCreated: res.CommitCreated,
		BackupCreated: res.BackupCreated,
		SnapshotID:    res.SnapshotID,
		Summary:       res.ChangesSummary,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// RunLedger persists backup run records.
type RunLedger interface {
	// RecordRun inserts rec and sets rec.ID.
	RecordRun(rec *RunRecord) error

	// RecentRuns returns up to limit records, newest first.
	RecentRuns(limit int) ([]*RunRecord, error)

	// LastRun returns the newest record, or ErrNotFound when the ledger is empty.
	LastRun() (*RunRecord, error)

	// BackupTo writes a consistent copy of the ledger database to path.
	BackupTo(path string) error

	Close() error
}
