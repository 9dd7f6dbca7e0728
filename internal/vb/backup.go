package vb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase is a step of a backup run.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseDetectingChanges Phase = "detecting_changes"
	PhaseNoChanges        Phase = "no_changes"
	PhaseStaging          Phase = "staging"
	PhaseCommitting       Phase = "committing"
	PhaseSnapshotting     Phase = "snapshotting"
	PhasePruning          Phase = "pruning"
	PhaseDone             Phase = "done"
)

// MessageGenerator produces a commit message summary from the staged files.
// An empty message or an error means "use the default message".
type MessageGenerator interface {
	Generate(ctx context.Context, files []string, stats string) (string, error)
}

// RunResult is the outcome of one backup run.
// CommitCreated without BackupCreated on a failed run means the git history
// advanced but no snapshot exists for it yet.
type RunResult struct {
	RunID          string
	Success        bool
	CommitCreated  bool
	BackupCreated  bool
	DryRun         bool
	SnapshotID     string
	ChangesSummary string
	Phase          Phase
	Err            error
}

// Status returns "success", "no_changes" or "error" for the run ledger.
func (r *RunResult) Status() string {
	switch {
	case !r.Success:
		return "error"
	case !r.CommitCreated && !r.BackupCreated:
		return "no_changes"
	default:
		return "success"
	}
}

// BackupOptions tunes a BackupService.
type BackupOptions struct {
	// DryRun stages and builds the commit message but commits and snapshots nothing.
	DryRun bool
}

// BackupService commits vault changes to git, snapshots the vault to the
// backup store and prunes old snapshots.
type BackupService struct {
	root      string
	committer Committer
	store     SnapshotStore
	messages  MessageGenerator
	state     StateStore
	clock     Clock
	idgen     IDGenerator
	logger    Logger
	opts      BackupOptions
}

// NewBackupService creates a BackupService for the vault at root.
// messages may be nil, in which case the timestamped default message is used.
func NewBackupService(root string, committer Committer, store SnapshotStore, messages MessageGenerator, state StateStore, clock Clock, idgen IDGenerator, logger Logger, opts BackupOptions) *BackupService {
	return &BackupService{
		root:      root,
		committer: committer,
		store:     store,
		messages:  messages,
		state:     state,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
		opts:      opts,
	}
}

// Run executes one backup run. It never returns a nil result; failures are
// reported through RunResult.Err with Success set to false.
func (s *BackupService) Run(ctx context.Context) *RunResult {
	res := &RunResult{RunID: s.idgen.New(), Phase: PhaseIdle}
	s.logger.Info("backup run started", "run_id", res.RunID, "vault", s.root)

	res.Phase = PhaseDetectingChanges
	changed, err := s.committer.HasChanges(ctx, s.root)
	if err != nil {
		return s.fail(res, fmt.Errorf("checking for changes: %w", err))
	}
	if !changed {
		res.Phase = PhaseNoChanges
		res.Success = true
		s.logger.Info("no changes to back up", "run_id", res.RunID)
		return res
	}

	res.Phase = PhaseStaging
	if err := s.committer.StageAll(ctx, s.root); err != nil {
		return s.fail(res, fmt.Errorf("staging changes: %w", err))
	}
	files, err := s.committer.StagedFiles(ctx, s.root)
	if err != nil {
		return s.fail(res, fmt.Errorf("listing staged files: %w", err))
	}
	if len(files) == 0 {
		res.Phase = PhaseNoChanges
		res.Success = true
		s.logger.Info("no changes to commit after staging", "run_id", res.RunID)
		return res
	}
	res.ChangesSummary = s.committer.StagedSummary(ctx, s.root)
	s.logger.Info("changes staged", "run_id", res.RunID, "file_count", len(files), "stats", res.ChangesSummary)

	res.Phase = PhaseCommitting
	message := s.commitMessage(ctx, files, res.ChangesSummary)

	if s.opts.DryRun {
		s.logger.Info("dry run: would commit and snapshot", "run_id", res.RunID, "message", firstLine(message))
		if err := s.committer.Unstage(ctx, s.root); err != nil {
			s.logger.Warn("dry run: unstaging failed", "run_id", res.RunID, "error", err)
		}
		res.Phase = PhaseDone
		res.DryRun = true
		res.Success = true
		return res
	}

	if err := s.committer.Commit(ctx, s.root, message); err != nil {
		s.logger.Error("git commit failed", "run_id", res.RunID, "error", err)
		return s.fail(res, fmt.Errorf("%w: %v", ErrCommitFailed, err))
	}
	res.CommitCreated = true
	s.logger.Info("commit created", "run_id", res.RunID, "message", firstLine(message))
	s.mark("last_commit", s.state.MarkCommit)

	res.Phase = PhaseSnapshotting
	snapshotID, err := s.store.Backup(ctx, s.root)
	if err != nil {
		if errors.Is(err, ErrRepositoryNotInitialized) {
			s.logger.Warn("backup repository not initialized", "run_id", res.RunID)
		}
		return s.fail(res, fmt.Errorf("%w: %v", ErrBackupFailed, err))
	}
	res.BackupCreated = true
	res.SnapshotID = snapshotID
	s.logger.Info("snapshot created", "run_id", res.RunID, "snapshot_id", snapshotID)
	s.mark("last_backup", s.state.MarkBackup)

	res.Phase = PhasePruning
	if err := s.store.Prune(ctx); err != nil {
		s.logger.Warn("prune failed", "run_id", res.RunID, "error", err)
	}

	res.Phase = PhaseDone
	res.Success = true
	s.logger.Info("backup run completed", "run_id", res.RunID, "commit_created", res.CommitCreated, "snapshot_id", snapshotID)
	return res
}

func (s *BackupService) fail(res *RunResult, err error) *RunResult {
	res.Success = false
	res.Err = err
	s.logger.Error("backup run failed", "run_id", res.RunID, "phase", string(res.Phase), "error", err)
	return res
}

func (s *BackupService) mark(name string, write func(time.Time) error) {
	if err := write(s.clock.Now()); err != nil {
		s.logger.Warn("writing state marker failed", "marker", name, "error", err)
	}
}

// commitMessage asks the generator for a summary and falls back to a
// timestamped message.
func (s *BackupService) commitMessage(ctx context.Context, files []string, stats string) string {
	if s.messages != nil {
		msg, err := s.messages.Generate(ctx, files, stats)
		if err != nil {
			s.logger.Warn("commit message generation failed, using default", "error", err)
		} else if msg = strings.TrimSpace(msg); msg != "" {
			return "vault: " + msg
		}
	}
	ts := s.clock.Now().UTC().Format("2006-01-02 15:04:05 UTC")
	return fmt.Sprintf("vault: auto-backup %s\n\n%s", ts, stats)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
