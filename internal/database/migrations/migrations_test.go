package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp_CreatesLedgerTables(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	for _, table := range []string{"backup_runs", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 2; i++ {
		if err := Up(db); err != nil {
			t.Fatalf("Up() run %d error = %v", i+1, err)
		}
	}
	if err := Check(db); err != nil {
		t.Errorf("Check() after repeated Up() = %v", err)
	}
}

func TestCheck(t *testing.T) {
	t.Run("fresh ledger has no schema", func(t *testing.T) {
		db := openTestDB(t)
		if err := Check(db); !errors.Is(err, ErrNoSchema) {
			t.Errorf("Check() = %v, want ErrNoSchema", err)
		}
	})

	t.Run("migrated ledger is current", func(t *testing.T) {
		db := openTestDB(t)
		if err := Up(db); err != nil {
			t.Fatalf("Up() error = %v", err)
		}
		if err := Check(db); err != nil {
			t.Errorf("Check() = %v, want nil", err)
		}
	})

	t.Run("newer ledger is ahead", func(t *testing.T) {
		db := openTestDB(t)
		if err := Up(db); err != nil {
			t.Fatalf("Up() error = %v", err)
		}
		if _, err := db.Exec("UPDATE schema_migrations SET version = version + 100"); err != nil {
			t.Fatalf("bumping version: %v", err)
		}
		if err := Check(db); !errors.Is(err, ErrAhead) {
			t.Errorf("Check() = %v, want ErrAhead", err)
		}
	})

	t.Run("dirty ledger", func(t *testing.T) {
		db := openTestDB(t)
		if err := Up(db); err != nil {
			t.Fatalf("Up() error = %v", err)
		}
		if _, err := db.Exec("UPDATE schema_migrations SET dirty = 1"); err != nil {
			t.Fatalf("marking dirty: %v", err)
		}
		if err := Check(db); !errors.Is(err, ErrDirty) {
			t.Errorf("Check() = %v, want ErrDirty", err)
		}
	})
}

func TestVersion(t *testing.T) {
	db := openTestDB(t)

	v, err := Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v.Current != 0 {
		t.Errorf("Current = %d before migration, want 0", v.Current)
	}

	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	v, err = Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	latest, err := Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if v.Current != latest || v.Latest != latest {
		t.Errorf("Version() = %+v, want current and latest %d", v, latest)
	}
}

func TestSchema_RunIDUnique(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	insert := `INSERT INTO backup_runs (run_id, trigger, started_at, finished_at, status)
		VALUES ('run-1', 'watch', datetime('now'), datetime('now'), 'success')`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("duplicate run_id accepted")
	}
}

func TestSchema_StatusCheck(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	_, err := db.Exec(`INSERT INTO backup_runs (run_id, trigger, started_at, finished_at, status)
		VALUES ('run-1', 'watch', datetime('now'), datetime('now'), 'maybe')`)
	if err == nil {
		t.Error("unknown status accepted")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
