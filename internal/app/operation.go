package app

import (
	"errors"
	"sync"
	"time"

	"vault-backup/internal/vb"
)

// ErrBackupInProgress is returned when a backup is triggered while another
// run is still going.
var ErrBackupInProgress = errors.New("backup already in progress")

// Operation tracks one backup run from trigger to ledger record.
// Operations start in memory with no record; RunBackup attaches the ledger
// row once it has been written.
type Operation struct {
	Trigger   vb.Trigger
	StartedAt time.Time
	Record    *vb.RunRecord
}

// NewOperation creates an in-memory operation.
func NewOperation(trigger vb.Trigger, started time.Time) *Operation {
	return &Operation{Trigger: trigger, StartedAt: started}
}

// Persisted returns true if the run has been saved to the ledger.
func (op *Operation) Persisted() bool {
	return op.Record != nil && op.Record.ID != 0
}

// runGate serializes backup runs. A watch trigger that finds a run in
// progress is folded into a single follow-up run, started when the current
// one leaves. Other triggers are rejected.
type runGate struct {
	mu       sync.Mutex
	running  sync.Mutex
	current  *Operation
	followUp bool
}

// enter claims the gate for op. It returns false if another run holds it;
// with queue set, a follow-up run is requested in that case.
func (g *runGate) enter(op *Operation, queue bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running.TryLock() {
		if queue {
			g.followUp = true
		}
		return false
	}
	g.current = op
	return true
}

// leave releases the gate and reports whether a follow-up run was requested
// while it was held.
func (g *runGate) leave() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	followUp := g.followUp
	g.followUp = false
	g.current = nil
	g.running.Unlock()
	return followUp
}

// Current returns the in-flight operation, or nil when idle.
func (g *runGate) Current() *Operation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// wait blocks until no run is in progress.
func (g *runGate) wait() {
	g.running.Lock()
	g.running.Unlock()
}
