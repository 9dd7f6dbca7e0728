package vb

import (
	"context"
	"time"
)

// Notification is a backup outcome sent to the configured webhooks.
type Notification struct {
	Title     string
	Message   string
	Success   bool
	Timestamp time.Time
}

// NewRunNotification describes a finished run for notifiers.
// It returns false for runs that should not be announced (no changes).
func NewRunNotification(res *RunResult, at time.Time) (Notification, bool) {
	switch {
	case !res.Success:
		msg := "Backup run failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		if res.CommitCreated {
			msg = "Changes were committed but no snapshot was created: " + msg
		}
		return Notification{Title: "Vault backup failed", Message: msg, Success: false, Timestamp: at}, true
	case res.DryRun, !res.CommitCreated:
		return Notification{}, false
	default:
		msg := "Vault changes committed and backed up"
		if res.SnapshotID != "" {
			msg += " (snapshot " + res.SnapshotID + ")"
		}
		if res.ChangesSummary != "" {
			msg += "\n" + res.ChangesSummary
		}
		return Notification{Title: "Vault backup succeeded", Message: msg, Success: true, Timestamp: at}, true
	}
}

// Notifier delivers notifications. Implementations must not block a backup
// run for long and should log rather than fail on delivery errors.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
