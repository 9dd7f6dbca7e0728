package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

var (
	// ErrNoSchema means the ledger has never been migrated.
	ErrNoSchema = errors.New("ledger has no schema version")
	// ErrDirty means a previous migration stopped half way.
	ErrDirty = errors.New("ledger schema is dirty")
	// ErrBehind means migrations are pending.
	ErrBehind = errors.New("ledger schema is behind")
	// ErrAhead means the ledger was written by a newer vb.
	ErrAhead = errors.New("ledger schema is ahead of this binary")
)

// SchemaVersion is the applied and the embedded schema version of a ledger.
type SchemaVersion struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Version reports the schema version of db. A never-migrated ledger has
// Current 0.
func Version(db *sql.DB) (SchemaVersion, error) {
	latest, err := Latest()
	if err != nil {
		return SchemaVersion{}, err
	}

	// m is not closed: that would close db, which the caller owns.
	m, err := newMigrate(db)
	if err != nil {
		return SchemaVersion{}, err
	}
	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{}, fmt.Errorf("reading ledger schema version: %w", err)
	}
	return SchemaVersion{Current: current, Latest: latest, Dirty: dirty}, nil
}

// Check returns nil when db is at the embedded schema version, and one of
// ErrNoSchema, ErrDirty, ErrBehind or ErrAhead otherwise.
func Check(db *sql.DB) error {
	v, err := Version(db)
	if err != nil {
		return err
	}
	switch {
	case v.Dirty:
		return fmt.Errorf("%w at version %d", ErrDirty, v.Current)
	case v.Current == 0:
		return ErrNoSchema
	case v.Current < v.Latest:
		return fmt.Errorf("%w: at %d, want %d", ErrBehind, v.Current, v.Latest)
	case v.Current > v.Latest:
		return fmt.Errorf("%w: at %d, binary knows %d", ErrAhead, v.Current, v.Latest)
	}
	return nil
}

// Up applies every pending migration. An up-to-date ledger is left alone.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating ledger: %w", err)
	}
	return nil
}

// Latest returns the highest migration version embedded in the binary.
func Latest() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("reading embedded migrations: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("wrapping ledger connection: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// lastVersion walks the source; Next fails once there is no later version.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
