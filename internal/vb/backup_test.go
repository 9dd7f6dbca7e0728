package vb_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vault-backup/internal/testutil"
	"vault-backup/internal/vb"
)

type stubMessages struct {
	msg string
	err error
}

func (m stubMessages) Generate(context.Context, []string, string) (string, error) {
	return m.msg, m.err
}

type backupFixture struct {
	committer *testutil.StubCommitter
	store     *testutil.StubSnapshotStore
	state     *testutil.MemoryStateStore
	clock     *testutil.StubClock
}

func newBackupService(f *backupFixture, messages vb.MessageGenerator, opts vb.BackupOptions) *vb.BackupService {
	return vb.NewBackupService("/vault", f.committer, f.store, messages, f.state, f.clock, testutil.NewStubIDGenerator(), vb.NewNopLogger(), opts)
}

func newBackupFixture() *backupFixture {
	return &backupFixture{
		committer: &testutil.StubCommitter{
			Changed: true,
			Staged:  []string{"notes/a.md", "notes/b.md"},
			Summary: "2 files changed, 3 insertions(+)",
		},
		store: &testutil.StubSnapshotStore{SnapshotID: "4f2a9c1b"},
		state: &testutil.MemoryStateStore{},
		clock: testutil.FixedClock(),
	}
}

func TestBackupService_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no changes writes no markers", func(t *testing.T) {
		f := newBackupFixture()
		f.committer.Changed = false

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if !res.Success || res.CommitCreated || res.BackupCreated {
			t.Errorf("Run() = %+v, want success without commit or backup", res)
		}
		if res.Phase != vb.PhaseNoChanges {
			t.Errorf("Phase = %v, want %v", res.Phase, vb.PhaseNoChanges)
		}
		if n := f.state.WriteCount(); n != 0 {
			t.Errorf("state writes = %d, want 0", n)
		}
		if f.store.Backups != 0 {
			t.Errorf("snapshots = %d, want 0", f.store.Backups)
		}
		if res.Status() != "no_changes" {
			t.Errorf("Status() = %q, want no_changes", res.Status())
		}
	})

	t.Run("nothing staged is a soft no-op", func(t *testing.T) {
		f := newBackupFixture()
		f.committer.Staged = nil

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if !res.Success || res.CommitCreated {
			t.Errorf("Run() = %+v, want soft success", res)
		}
		if len(f.committer.Messages) != 0 {
			t.Errorf("commits = %d, want 0", len(f.committer.Messages))
		}
	})

	t.Run("commits snapshots and prunes", func(t *testing.T) {
		f := newBackupFixture()

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if !res.Success || !res.CommitCreated || !res.BackupCreated {
			t.Fatalf("Run() = %+v, want full success", res)
		}
		if res.SnapshotID != "4f2a9c1b" {
			t.Errorf("SnapshotID = %q", res.SnapshotID)
		}
		if f.store.Prunes != 1 {
			t.Errorf("prunes = %d, want 1", f.store.Prunes)
		}
		st, _ := f.state.Load()
		if !st.LastCommit.Equal(f.clock.Now()) || !st.LastBackup.Equal(f.clock.Now()) {
			t.Errorf("markers = %+v, want commit and backup at %v", st, f.clock.Now())
		}
		msg := f.committer.Messages[0]
		wantPrefix := "vault: auto-backup 2024-01-15 10:30:00 UTC\n\n"
		if !strings.HasPrefix(msg, wantPrefix) || !strings.HasSuffix(msg, f.committer.Summary) {
			t.Errorf("commit message = %q", msg)
		}
		if res.RunID != "run-1" {
			t.Errorf("RunID = %q, want run-1", res.RunID)
		}
	})

	t.Run("backup marker is written after commit marker", func(t *testing.T) {
		f := newBackupFixture()
		f.clock.Tick(time.Second)
		ids := testutil.NewStubIDGenerator()
		svc := vb.NewBackupService("/vault", f.committer, f.store, nil, f.state, f.clock, ids, vb.NewNopLogger(), vb.BackupOptions{})

		for i := 0; i < 2; i++ {
			if res := svc.Run(ctx); !res.Success {
				t.Fatalf("Run() %d = %+v", i+1, res)
			}
		}
		st, _ := f.state.Load()
		if !st.LastBackup.After(st.LastCommit) {
			t.Errorf("LastBackup %v not after LastCommit %v", st.LastBackup, st.LastCommit)
		}
		if got := ids.Issued(); len(got) != 2 || got[0] != "run-1" || got[1] != "run-2" {
			t.Errorf("Issued() = %v, want [run-1 run-2]", got)
		}
		if f.clock.Reads() == 0 {
			t.Error("clock never read")
		}
	})

	t.Run("uses generated message", func(t *testing.T) {
		f := newBackupFixture()

		newBackupService(f, stubMessages{msg: "  update reading notes \n"}, vb.BackupOptions{}).Run(ctx)
		if got := f.committer.Messages[0]; got != "vault: update reading notes" {
			t.Errorf("commit message = %q", got)
		}
	})

	t.Run("falls back when generation fails", func(t *testing.T) {
		f := newBackupFixture()

		newBackupService(f, stubMessages{err: errors.New("rate limited")}, vb.BackupOptions{}).Run(ctx)
		if got := f.committer.Messages[0]; !strings.HasPrefix(got, "vault: auto-backup ") {
			t.Errorf("commit message = %q, want default", got)
		}
	})

	t.Run("commit failure", func(t *testing.T) {
		f := newBackupFixture()
		f.committer.CommitErr = errors.New("exit status 1")

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if res.Success || res.CommitCreated {
			t.Errorf("Run() = %+v, want failure without commit", res)
		}
		if !errors.Is(res.Err, vb.ErrCommitFailed) {
			t.Errorf("Err = %v, want ErrCommitFailed", res.Err)
		}
		if f.store.Backups != 0 {
			t.Errorf("snapshot taken after failed commit")
		}
	})

	t.Run("snapshot failure is partial success", func(t *testing.T) {
		f := newBackupFixture()
		f.store.BackupErr = vb.ErrRepositoryNotInitialized

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if res.Success || !res.CommitCreated || res.BackupCreated {
			t.Errorf("Run() = %+v, want commit without backup", res)
		}
		if !errors.Is(res.Err, vb.ErrBackupFailed) {
			t.Errorf("Err = %v, want ErrBackupFailed", res.Err)
		}
		st, _ := f.state.Load()
		if st.LastCommit.IsZero() || !st.LastBackup.IsZero() {
			t.Errorf("markers = %+v, want only last_commit", st)
		}
		if res.Status() != "error" {
			t.Errorf("Status() = %q, want error", res.Status())
		}
	})

	t.Run("prune failure does not fail the run", func(t *testing.T) {
		f := newBackupFixture()
		f.store.PruneErr = errors.New("lock held")

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if !res.Success || res.Phase != vb.PhaseDone {
			t.Errorf("Run() = %+v, want success", res)
		}
	})

	t.Run("dry run unstages and writes nothing", func(t *testing.T) {
		f := newBackupFixture()

		res := newBackupService(f, nil, vb.BackupOptions{DryRun: true}).Run(ctx)
		if !res.Success || !res.DryRun || res.CommitCreated {
			t.Errorf("Run() = %+v, want dry-run success", res)
		}
		if !f.committer.Unstaged {
			t.Error("staged changes were not reset")
		}
		if len(f.committer.Messages) != 0 || f.store.Backups != 0 {
			t.Error("dry run committed or snapshotted")
		}
		if n := f.state.WriteCount(); n != 0 {
			t.Errorf("state writes = %d, want 0", n)
		}
	})

	t.Run("status check failure", func(t *testing.T) {
		f := newBackupFixture()
		f.committer.StatusErr = errors.New("not a git repository")

		res := newBackupService(f, nil, vb.BackupOptions{}).Run(ctx)
		if res.Success || res.Err == nil {
			t.Errorf("Run() = %+v, want failure", res)
		}
		if res.Phase != vb.PhaseDetectingChanges {
			t.Errorf("Phase = %v", res.Phase)
		}
	})
}

func TestNewRunNotification(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	if _, ok := vb.NewRunNotification(&vb.RunResult{Success: true}, at); ok {
		t.Error("no-change run produced a notification")
	}

	n, ok := vb.NewRunNotification(&vb.RunResult{Success: true, CommitCreated: true, BackupCreated: true, SnapshotID: "4f2a9c1b"}, at)
	if !ok || !n.Success || !strings.Contains(n.Message, "4f2a9c1b") {
		t.Errorf("success notification = %+v, %v", n, ok)
	}

	n, ok = vb.NewRunNotification(&vb.RunResult{CommitCreated: true, Err: vb.ErrBackupFailed}, at)
	if !ok || n.Success || !strings.Contains(n.Message, "committed but no snapshot") {
		t.Errorf("partial notification = %+v, %v", n, ok)
	}
}
