package app

import (
	"fmt"
	"os"
	"path/filepath"

	"vault-backup/internal/config"
)

// Defaults are the paths vb falls back to when neither the config file nor
// the command line names one.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	StateDir   string
	VaultPath  string
}

// GetDefaults resolves default paths from the environment:
//   - VB_CONFIG_PATH: config file (default ~/.config/vb.toml)
//   - VB_HOME: vb data directory (default ~/.local/share/vb)
//   - STATE_DIR: marker and ledger directory (default $VB_HOME/state)
//   - VAULT_PATH: the vault to back up (default /vault)
func GetDefaults() (*Defaults, error) {
	d := &Defaults{
		ConfigPath: os.Getenv("VB_CONFIG_PATH"),
		BaseDir:    os.Getenv("VB_HOME"),
		StateDir:   os.Getenv("STATE_DIR"),
		VaultPath:  os.Getenv("VAULT_PATH"),
	}

	if d.ConfigPath == "" || d.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if d.ConfigPath == "" {
			d.ConfigPath = filepath.Join(home, ".config", "vb.toml")
		}
		if d.BaseDir == "" {
			d.BaseDir = filepath.Join(home, ".local", "share", "vb")
		}
	}

	d.LogDir = filepath.Join(d.BaseDir, "log")
	if d.StateDir == "" {
		d.StateDir = filepath.Join(d.BaseDir, "state")
	}
	if d.VaultPath == "" {
		d.VaultPath = config.DefaultVaultPath
	}
	return d, nil
}

// NewConfig returns a config seeded with these paths, as written by
// `vb config init`.
func (d *Defaults) NewConfig() *config.Config {
	cfg := config.NewConfig(d.BaseDir)
	cfg.StateDir = d.StateDir
	cfg.VaultPath = d.VaultPath
	return cfg
}
