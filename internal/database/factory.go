package database

import (
	"fmt"
	"os"
	"path/filepath"

	"vault-backup/internal/config"
)

// LedgerFileName is the ledger database file inside DataDir.
const LedgerFileName = "runs.db"

// NewLedgerFromConfig creates a run ledger based on the database config type.
func NewLedgerFromConfig(cfg config.DatabaseConfig) (*SQLiteLedger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, LedgerFileName))
	case "memory":
		return NewSQLiteLedger(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
