package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"vault-backup/internal/database/migrations"
	"vault-backup/internal/vb"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger implements vb.RunLedger using SQLite.
type SQLiteLedger struct {
	db   *sql.DB
	path string
}

// NewSQLiteLedger opens the ledger at path and brings its schema up to date.
// path can be a file path or ":memory:" for an in-memory ledger.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each :memory: connection is a separate database, and the ledger has a
	// single writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

const runColumns = `id, run_id, trigger, started_at, finished_at, status,
	commit_created, backup_created, snapshot_id, summary, error`

// RecordRun inserts rec and sets rec.ID.
func (s *SQLiteLedger) RecordRun(rec *vb.RunRecord) error {
	res, err := s.db.Exec(`INSERT INTO backup_runs
		(run_id, trigger, started_at, finished_at, status, commit_created, backup_created, snapshot_id, summary, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, string(rec.Trigger), rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Status,
		rec.CommitCreated, rec.BackupCreated, rec.SnapshotID, rec.Summary, rec.Error)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.RunID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.RunID, err)
	}
	rec.ID = id
	return nil
}

// RecentRuns returns up to limit records, newest first.
func (s *SQLiteLedger) RecentRuns(limit int) ([]*vb.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM backup_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*vb.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return out, nil
}

// LastRun returns the newest record, or vb.ErrNotFound when the ledger is empty.
func (s *SQLiteLedger) LastRun() (*vb.RunRecord, error) {
	row := s.db.QueryRow(`SELECT ` + runColumns + ` FROM backup_runs ORDER BY id DESC LIMIT 1`)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("last run: %w", vb.ErrNotFound)
		}
		return nil, fmt.Errorf("last run: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*vb.RunRecord, error) {
	var (
		rec     vb.RunRecord
		trigger string
	)
	err := row.Scan(&rec.ID, &rec.RunID, &trigger, &rec.StartedAt, &rec.FinishedAt, &rec.Status,
		&rec.CommitCreated, &rec.BackupCreated, &rec.SnapshotID, &rec.Summary, &rec.Error)
	if err != nil {
		return nil, err
	}
	rec.Trigger = vb.Trigger(trigger)
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	return &rec, nil
}

// Path returns the database file path (or ":memory:" for in-memory ledgers).
func (s *SQLiteLedger) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteLedger) CheckMigrations() error {
	return migrations.Check(s.db)
}

// BackupTo creates a complete copy of the ledger at destPath using VACUUM INTO.
// An existing file at destPath is replaced.
func (s *SQLiteLedger) BackupTo(destPath string) error {
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing previous backup: %w", err)
	}
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ vb.RunLedger = (*SQLiteLedger)(nil)
