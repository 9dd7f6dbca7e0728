package app

import (
	"context"
	"time"

	"vault-backup/internal/vb"
)

// RunBackup runs one backup and records it. The run is written to the ledger,
// the ledger is mirrored off-site and the outcome is announced to the
// configured notifiers. Ledger, mirror and notification failures are logged
// and never change the run result.
//
// Returns ErrBackupInProgress if another run holds the gate. A watch trigger
// rejected that way keeps the pending marker set and queues one follow-up
// run, which starts once the current run has finished.
func (a *VBApp) RunBackup(ctx context.Context, trigger vb.Trigger) (*vb.RunResult, error) {
	op := NewOperation(trigger, a.clock.Now())
	queue := trigger == vb.TriggerWatch
	if !a.gate.enter(op, queue) {
		if !queue {
			a.logger.Warn("backup skipped, previous run still in progress", "trigger", string(trigger))
			return nil, ErrBackupInProgress
		}
		if err := a.state.SetPending(true); err != nil {
			a.logger.Warn("writing pending marker failed", "error", err)
		}
		a.logger.Info("backup in progress, follow-up run queued")
		return nil, ErrBackupInProgress
	}

	var res *vb.RunResult
	queued := false
	func() {
		defer func() { queued = a.gate.leave() }()
		res = a.run(ctx, op)
	}()
	if queued {
		a.followUp(ctx)
	}
	return res, nil
}

func (a *VBApp) run(ctx context.Context, op *Operation) *vb.RunResult {
	res := a.backup.Run(ctx)
	finished := a.clock.Now()

	a.record(op, res, finished)
	if op.Persisted() && (res.CommitCreated || !res.Success) {
		if err := a.MirrorLedger(op.Record.ID); err != nil {
			a.logger.Warn("ledger mirror failed", "run_id", res.RunID, "error", err)
		}
	}
	a.announce(ctx, res, finished)
	return res
}

// followUp runs the backup queued while the previous run held the gate.
func (a *VBApp) followUp(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	a.logger.Info("starting queued follow-up backup")
	if err := a.state.SetPending(false); err != nil {
		a.logger.Warn("writing pending marker failed", "error", err)
	}
	a.triggered(ctx)
}

func (a *VBApp) record(op *Operation, res *vb.RunResult, finished time.Time) {
	if a.ledger == nil || res.DryRun {
		return
	}
	rec := vb.NewRunRecord(res, op.Trigger, op.StartedAt, finished)
	if err := a.ledger.RecordRun(rec); err != nil {
		a.logger.Warn("recording run failed", "run_id", res.RunID, "error", err)
		return
	}
	op.Record = rec
}

func (a *VBApp) announce(ctx context.Context, res *vb.RunResult, at time.Time) {
	if a.notifier == nil {
		return
	}
	n, ok := vb.NewRunNotification(res, at)
	if !ok {
		return
	}
	if err := a.notifier.Notify(ctx, n); err != nil {
		a.logger.Warn("notification failed", "run_id", res.RunID, "error", err)
	}
}

// triggered is the debouncer callback. It runs on the timer goroutine.
func (a *VBApp) triggered(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.RunBackup(ctx, vb.TriggerWatch); err != nil {
		a.logger.Debug("watch trigger dropped", "error", err)
	}
}
