package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"vault-backup/internal/commitmsg"
	"vault-backup/internal/config"
	"vault-backup/internal/database"
	"vault-backup/internal/encryption"
	"vault-backup/internal/git"
	"vault-backup/internal/notify"
	"vault-backup/internal/offsite"
	"vault-backup/internal/restic"
	"vault-backup/internal/runner"
	"vault-backup/internal/state"
	"vault-backup/internal/vb"
)

// VBApp is the application layer between the CLI and the backup services.
// It constructs all dependencies from config, exposes high-level operations
// for each command, and releases the ledger and log file on Close.
type VBApp struct {
	cfg    *config.Config
	logger vb.Logger

	git       vb.GitHistory
	snapshots vb.SnapshotHistory
	store     vb.SnapshotStore
	state     vb.StateStore
	ledger    vb.RunLedger
	offsite   vb.Offsite
	encryptor vb.Encryptor
	notifier  vb.Notifier
	clock     vb.Clock

	backup   *vb.BackupService
	resolver *vb.Resolver
	restorer *vb.Restorer
	health   *vb.HealthService

	gate    runGate
	logFile *os.File
}

// services are the collaborators a VBApp drives. NewVBApp builds them from
// config. ledger, offsite, encryptor, notifier and messages may be nil.
type services struct {
	git       vb.GitHistory
	commits   vb.CommitCounter
	committer vb.Committer
	snapshots vb.SnapshotHistory
	store     vb.SnapshotStore
	state     vb.StateStore
	ledger    vb.RunLedger
	offsite   vb.Offsite
	encryptor vb.Encryptor
	notifier  vb.Notifier
	messages  vb.MessageGenerator
	clock     vb.Clock
	idgen     vb.IDGenerator
}

// assemble wires the domain services on top of svc.
func assemble(cfg *config.Config, svc services, logger vb.Logger) *VBApp {
	resolver := vb.NewResolver(cfg.VaultPath, svc.git, svc.snapshots, logger)
	return &VBApp{
		cfg:       cfg,
		logger:    logger,
		git:       svc.git,
		snapshots: svc.snapshots,
		store:     svc.store,
		state:     svc.state,
		ledger:    svc.ledger,
		offsite:   svc.offsite,
		encryptor: svc.encryptor,
		notifier:  svc.notifier,
		clock:     svc.clock,
		backup: vb.NewBackupService(cfg.VaultPath, svc.committer, svc.store, svc.messages,
			svc.state, svc.clock, svc.idgen, logger, vb.BackupOptions{DryRun: cfg.DryRun}),
		resolver: resolver,
		restorer: vb.NewRestorer(cfg.VaultPath, resolver, logger),
		health:   vb.NewHealthService(cfg.VaultPath, svc.state, svc.commits, svc.clock, logger),
	}
}

// NewVBApp creates a fully wired VBApp from the given config.
// operation identifies the CLI command being run (e.g. "serve", "backup") and
// prefixes every log line. The caller must call Close when done.
func NewVBApp(ctx context.Context, cfg *config.Config, operation string) (a *VBApp, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, parseLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	var ledger *database.SQLiteLedger
	defer func() {
		if err != nil {
			if ledger != nil {
				ledger.Close()
			}
			logFile.Close()
		}
	}()

	st, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	cmdRunner := runner.NewExecRunner(time.Duration(cfg.CommandTimeoutSeconds)*time.Second, logger)
	gitClient := git.NewClient(cmdRunner, git.Identity{Name: cfg.Git.UserName, Email: cfg.Git.UserEmail}, logger)
	resticClient := restic.NewClient(cmdRunner, resticOptions(cfg), logger)

	ledger, err = database.NewLedgerFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}
	if err := ledger.CheckMigrations(); err != nil {
		return nil, fmt.Errorf("ledger schema out of date: %w", err)
	}

	store, err := offsite.NewStoreFromConfig(ctx, cfg.Offsite, cfg.Restic.AWS)
	if err != nil {
		return nil, fmt.Errorf("creating offsite store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	messages, err := commitmsg.NewFromConfig(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("creating commit message generator: %w", err)
	}

	dispatcher, err := notify.NewFromConfig(cfg.Notify, logger)
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}
	var notifier vb.Notifier
	if dispatcher.Enabled() {
		notifier = dispatcher
	}

	a = assemble(cfg, services{
		git:       gitClient,
		commits:   gitClient,
		committer: gitClient,
		snapshots: resticClient,
		store:     resticClient,
		state:     st,
		ledger:    ledger,
		offsite:   store,
		encryptor: enc,
		notifier:  notifier,
		messages:  messages,
		clock:     vb.RealClock{},
		idgen:     vb.UUIDGenerator{},
	}, logger)
	a.logFile = logFile

	a.checkLedgerVersion()
	return a, nil
}

// resticOptions maps the restic config section. S3 repositories get their
// credentials from the AWS SDK chain.
func resticOptions(cfg *config.Config) restic.Options {
	r := cfg.Restic
	opts := restic.Options{
		Repository:   r.Repository,
		Password:     r.Password,
		PasswordFile: r.PasswordFile,
		Tag:          r.Tag,
		Retention: restic.Retention{
			Daily:   r.Retention.Daily,
			Weekly:  r.Retention.Weekly,
			Monthly: r.Retention.Monthly,
		},
	}
	if strings.HasPrefix(r.Repository, "s3:") {
		opts.Credentials = restic.AWSCredentials{
			Region:          r.AWS.Region,
			Profile:         r.AWS.Profile,
			AccessKeyID:     r.AWS.AccessKeyID,
			SecretAccessKey: r.AWS.SecretAccessKey,
		}
	}
	return opts
}

// Config returns the configuration the app was built from.
func (a *VBApp) Config() *config.Config { return a.cfg }

// Log returns recent commits, or the history of one file when file is set.
func (a *VBApp) Log(ctx context.Context, file string, limit int) []vb.Commit {
	if file != "" {
		return a.git.FileHistory(ctx, a.cfg.VaultPath, file, limit)
	}
	return a.git.Log(ctx, a.cfg.VaultPath, limit)
}

// Changes lists the files touched by the commit ref.
func (a *VBApp) Changes(ctx context.Context, ref string) ([]vb.FileChange, error) {
	if _, ok := a.git.LogOne(ctx, a.cfg.VaultPath, ref); !ok {
		return nil, fmt.Errorf("commit %s: %w", ref, vb.ErrNotFound)
	}
	return a.git.ChangedFiles(ctx, a.cfg.VaultPath, ref), nil
}

// Diff returns the change ref made to path.
func (a *VBApp) Diff(ctx context.Context, ref, path string) string {
	return a.git.FileDiff(ctx, a.cfg.VaultPath, ref, path)
}

// Show returns the content of path at a commit or snapshot.
func (a *VBApp) Show(ctx context.Context, source, path string) (*vb.Content, error) {
	return a.resolver.Content(ctx, source, path)
}

// Snapshots lists snapshots with tag, defaulting to the configured tag.
func (a *VBApp) Snapshots(ctx context.Context, tag string) []vb.Snapshot {
	if tag == "" {
		tag = a.cfg.Restic.Tag
	}
	return a.snapshots.Snapshots(ctx, tag)
}

// List returns the immediate children of prefix inside a snapshot.
// An empty prefix lists the vault root.
func (a *VBApp) List(ctx context.Context, snapshotID, prefix string) ([]vb.Entry, error) {
	entries, err := a.snapshots.ListFiles(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = a.cfg.VaultPath
	}
	return vb.ProjectDirectory(entries, prefix), nil
}

// Restore writes path from a commit or snapshot back into the vault.
func (a *VBApp) Restore(ctx context.Context, source, path, target string) (*vb.RestoreResult, error) {
	return a.restorer.Restore(ctx, source, path, target)
}

// History returns the most recent backup runs from the ledger.
func (a *VBApp) History(limit int) ([]*vb.RunRecord, error) {
	if a.ledger == nil {
		return nil, nil
	}
	return a.ledger.RecentRuns(limit)
}

// Status is the summary printed by the status command.
type Status struct {
	Health          *vb.HealthReport
	RepositoryReady bool
	LastRun         *vb.RunRecord
	Running         *Operation
}

// Status reports health markers, repository reachability and the last run.
func (a *VBApp) Status(ctx context.Context) (*Status, error) {
	report, err := a.health.Report(ctx)
	if err != nil {
		return nil, err
	}
	s := &Status{
		Health:          report,
		RepositoryReady: a.store.Initialized(ctx),
		Running:         a.gate.Current(),
	}
	if a.ledger != nil {
		last, err := a.ledger.LastRun()
		if err != nil && !errors.Is(err, vb.ErrNotFound) {
			return nil, err
		}
		s.LastRun = last
	}
	return s, nil
}

// Close releases the ledger and the log file.
func (a *VBApp) Close() error {
	var firstErr error
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			firstErr = fmt.Errorf("closing ledger: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
