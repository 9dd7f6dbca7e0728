package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vault-backup/internal/app"
	"vault-backup/internal/config"
	"vault-backup/internal/vb"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file (if present) and applies environment
// overrides.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults.ConfigPath, defaults.BaseDir, os.Getenv)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// newApp loads the config and creates a VBApp. The caller must defer app.Close().
// operation identifies the CLI command being run and prefixes log lines.
func newApp(ctx context.Context, operation string) (*app.VBApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewVBApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "vb",
	Short:        "Obsidian vault backup: git history, restic snapshots, restore",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the vault, back up after changes settle and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Commit and snapshot the vault now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "backup")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.RunBackup(cmd.Context(), vb.TriggerManual)
		if err != nil {
			return err
		}
		renderResult(cmd.OutOrStdout(), res)
		if !res.Success {
			return res.Err
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List vault commits",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "log")
		if err != nil {
			return err
		}
		defer a.Close()

		commits := a.Log(cmd.Context(), file, limit)
		if len(commits) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No commits.")
			return nil
		}
		renderCommits(cmd.OutOrStdout(), commits)
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes REF",
	Short: "List the files a commit touched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "changes")
		if err != nil {
			return err
		}
		defer a.Close()

		changes, err := a.Changes(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderChanges(cmd.OutOrStdout(), changes)
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff REF PATH",
	Short: "Show what a commit changed in one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "diff")
		if err != nil {
			return err
		}
		defer a.Close()

		diff := a.Diff(cmd.Context(), args[0], args[1])
		if diff == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
			return nil
		}
		renderDiff(cmd.OutOrStdout(), diff)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show SOURCE PATH",
	Short: "Print a file as it was in a commit or snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "show")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Show(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(c.Data)
		return err
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")

		a, err := newApp(cmd.Context(), "snapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps := a.Snapshots(cmd.Context(), tag)
		if len(snaps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No snapshots.")
			return nil
		}
		renderSnapshots(cmd.OutOrStdout(), snaps)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls SNAPSHOT [PREFIX]",
	Short: "List one directory of a snapshot",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}

		a, err := newApp(cmd.Context(), "ls")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.List(cmd.Context(), args[0], prefix)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Empty directory.")
			return nil
		}
		renderEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore SOURCE PATH",
	Short: "Restore a file from a commit or snapshot into the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")

		a, err := newApp(cmd.Context(), "restore")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Restore(cmd.Context(), args[0], args[1], target)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s %s\n", res.Target, res.Source, args[0])
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backup runs recorded.")
			return nil
		}
		renderRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backup health",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "status")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}
		renderStatus(cmd.OutOrStdout(), s)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := defaults.NewConfig()
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", defaults.BaseDir)
		fmt.Fprintf(cmd.OutOrStdout(), "State:    %s\n", cfg.StateDir)
		fmt.Fprintf(cmd.OutOrStdout(), "Vault:    %s\n", cfg.VaultPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# effective configuration (file: %s, plus environment)\n\n", path)
		return (&config.Manager{}).Write(cmd.OutOrStdout(), cfg.Redacted())
	},
}

// ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Manage the backup run ledger and its offsite copy",
}

var ledgerKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair that encrypts offsite ledger copies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ledger-keys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptPassphrase(cmd.ErrOrStderr(), "New passphrase: ", true)
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Ledger encryption keys created.")
		if pk, err := a.PublicKey(); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", pk)
		}
		return nil
	},
}

var ledgerPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download and decrypt the offsite ledger copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp(cmd.Context(), "ledger-pull")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if a.Config().Encryption.Type != "none" {
			passphrase, err = promptPassphrase(cmd.ErrOrStderr(), "Passphrase: ", false)
			if err != nil {
				return err
			}
		}

		version, err := a.PullLedger(out, passphrase)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ledger version %d written to %s\n", version, out)
		return nil
	},
}

func init() {
	logCmd.Flags().String("file", "", "Show the history of one file (vault-relative path)")
	logCmd.Flags().IntP("limit", "n", 50, "Maximum number of commits to show")
	snapshotsCmd.Flags().String("tag", "", "Snapshot tag (default: configured tag)")
	restoreCmd.Flags().String("target", "", "Write to this path instead of the original location")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	ledgerPullCmd.Flags().String("out", "", "File to write the ledger to (must not exist)")
	ledgerPullCmd.MarkFlagRequired("out")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	ledgerCmd.AddCommand(ledgerKeysCmd)
	ledgerCmd.AddCommand(ledgerPullCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(ledgerCmd)
}
