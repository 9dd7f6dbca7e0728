// Package watcher turns filesystem change notifications into debounced
// backup triggers.
package watcher

import (
	"sync"
	"time"

	"vault-backup/internal/vb"
)

// Op is the kind of change an Event reports.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
	OpChmod  Op = "chmod"
)

// Event is one filesystem change notification.
type Event struct {
	Path  string
	Op    Op
	IsDir bool
}

// EventSink receives change events from a Watcher.
type EventSink interface {
	Submit(ev Event)
	Cancel()
}

// Debouncer coalesces bursts of change events and invokes its trigger once
// the vault has been quiet for the configured period.
type Debouncer struct {
	quiet   time.Duration
	trigger func()
	policy  *IgnorePolicy
	store   vb.StateStore
	clock   vb.Clock
	logger  vb.Logger

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	pending    bool
	lastEvent  time.Time
	events     int
}

var _ EventSink = (*Debouncer)(nil)

// NewDebouncer creates a Debouncer. A nil policy ignores nothing.
func NewDebouncer(quiet time.Duration, trigger func(), policy *IgnorePolicy, store vb.StateStore, clock vb.Clock, logger vb.Logger) *Debouncer {
	if policy == nil {
		policy = NewIgnorePolicy(nil, nil)
	}
	return &Debouncer{
		quiet:   quiet,
		trigger: trigger,
		policy:  policy,
		store:   store,
		clock:   clock,
		logger:  logger,
	}
}

// Submit records a change and (re)starts the quiet-period timer.
func (d *Debouncer) Submit(ev Event) {
	if ev.IsDir || d.policy.Match(ev.Path) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	d.lastEvent = now
	d.events++

	if !d.pending {
		d.pending = true
		if err := d.store.MarkChange(now); err != nil {
			d.logger.Warn("writing last_change marker failed", "error", err)
		}
		if err := d.store.SetPending(true); err != nil {
			d.logger.Warn("writing pending marker failed", "error", err)
		}
		d.logger.Info("change detected, backup scheduled", "path", ev.Path, "op", string(ev.Op), "in_seconds", d.quiet.Seconds())
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// fire runs on the timer goroutine.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || !d.pending {
		d.mu.Unlock()
		return
	}
	count := d.events
	d.pending = false
	d.events = 0
	d.timer = nil
	if err := d.store.SetPending(false); err != nil {
		d.logger.Warn("writing pending marker failed", "error", err)
	}
	d.mu.Unlock()

	d.logger.Info("quiet period elapsed, starting backup", "events", count)
	d.invoke()
}

func (d *Debouncer) invoke() {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("backup trigger panicked", "panic", r)
		}
	}()
	d.trigger()
}

// Cancel stops any pending timer. Safe to call at any time, including with
// no timer running; a timer that already fired is not affected.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
	d.pending = false
	d.events = 0
}

// Pending reports whether a trigger is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// EventCount returns the number of accepted events in the current batch.
func (d *Debouncer) EventCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events
}

// LastEvent returns the time of the most recent accepted event.
func (d *Debouncer) LastEvent() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastEvent
}
