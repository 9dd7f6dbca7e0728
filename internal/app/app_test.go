package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vault-backup/internal/config"
	"vault-backup/internal/database"
	"vault-backup/internal/encryption"
	"vault-backup/internal/offsite"
	"vault-backup/internal/testutil"
	"vault-backup/internal/vb"
	"vault-backup/internal/watcher"
)

const testPassphrase = "correct horse battery staple"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []vb.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg vb.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type testApp struct {
	*VBApp
	committer *testutil.StubCommitter
	store     *testutil.StubSnapshotStore
	git       *testutil.StubGitHistory
	snaps     *testutil.StubSnapshotHistory
	state     *testutil.MemoryStateStore
	ledger    *database.SQLiteLedger
	offsite   *offsite.MemoryStore
	encryptor *encryption.TestEncryptor
	notifier  *recordingNotifier
	clock     *testutil.StubClock
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.NewConfig(t.TempDir())
	cfg.VaultPath = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	ledger, err := database.NewSQLiteLedger(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error = %v", err)
	}

	ta := &testApp{
		committer: &testutil.StubCommitter{Changed: true, Staged: []string{"notes/a.md"}, Summary: "1 file changed, 2 insertions(+)"},
		store:     &testutil.StubSnapshotStore{SnapshotID: "4f2a9c1b"},
		git:       testutil.NewStubGitHistory(),
		snaps:     testutil.NewStubSnapshotHistory(),
		state:     &testutil.MemoryStateStore{},
		ledger:    ledger,
		offsite:   offsite.NewMemoryStore("test"),
		encryptor: encryption.NewTestEncryptor(),
		notifier:  &recordingNotifier{},
		clock:     testutil.FixedClock(),
	}
	if err := ta.encryptor.Setup(testPassphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	ta.VBApp = assemble(cfg, services{
		git:       ta.git,
		commits:   ta.git,
		committer: ta.committer,
		snapshots: ta.snaps,
		store:     ta.store,
		state:     ta.state,
		ledger:    ta.ledger,
		offsite:   ta.offsite,
		encryptor: ta.encryptor,
		notifier:  ta.notifier,
		clock:     ta.clock,
		idgen:     testutil.NewStubIDGenerator(),
	}, vb.NewNopLogger())
	t.Cleanup(func() { ta.Close() })
	return ta
}

func TestRunBackup_Success(t *testing.T) {
	ta := newTestApp(t, nil)

	res, err := ta.RunBackup(context.Background(), vb.TriggerManual)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if !res.Success || !res.BackupCreated {
		t.Fatalf("result = %+v, want successful backup", res)
	}

	runs, err := ta.ledger.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ledger has %d runs, want 1", len(runs))
	}
	rec := runs[0]
	if rec.RunID != res.RunID || rec.Trigger != vb.TriggerManual || rec.Status != "success" || rec.SnapshotID != "4f2a9c1b" {
		t.Errorf("ledger row = %+v", rec)
	}

	version, _ := ta.offsite.Version(LedgerObject)
	if version != rec.ID {
		t.Errorf("offsite version = %d, want %d", version, rec.ID)
	}
	var mirrored bytes.Buffer
	if err := ta.offsite.Get(LedgerObject, &mirrored); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.HasPrefix(mirrored.Bytes(), []byte("vb-test-seal\n")) {
		t.Error("mirrored ledger is not encrypted")
	}

	if len(ta.notifier.sent) != 1 || !ta.notifier.sent[0].Success {
		t.Errorf("notifications = %+v, want one success", ta.notifier.sent)
	}
}

func TestRunBackup_NoChanges(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.committer.Changed = false

	res, err := ta.RunBackup(context.Background(), vb.TriggerWatch)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if res.Status() != "no_changes" {
		t.Errorf("Status() = %q, want no_changes", res.Status())
	}

	last, err := ta.ledger.LastRun()
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if last.Status != "no_changes" || last.Trigger != vb.TriggerWatch {
		t.Errorf("ledger row = %+v", last)
	}
	if v, _ := ta.offsite.Version(LedgerObject); v != 0 {
		t.Errorf("no-change run mirrored the ledger (version %d)", v)
	}
	if len(ta.notifier.sent) != 0 {
		t.Errorf("no-change run sent %d notifications", len(ta.notifier.sent))
	}
}

func TestRunBackup_SnapshotFailure(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.store.BackupErr = errors.New("repository locked")
	ta.notifier.err = errors.New("webhook down")

	res, err := ta.RunBackup(context.Background(), vb.TriggerWatch)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if res.Success || !res.CommitCreated {
		t.Fatalf("result = %+v, want committed but failed", res)
	}

	last, err := ta.ledger.LastRun()
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if last.Status != "error" || last.Error == "" || !last.CommitCreated {
		t.Errorf("ledger row = %+v", last)
	}
	if v, _ := ta.offsite.Version(LedgerObject); v != last.ID {
		t.Errorf("offsite version = %d, want %d", v, last.ID)
	}
	if len(ta.notifier.sent) != 1 || ta.notifier.sent[0].Success {
		t.Errorf("notifications = %+v, want one failure", ta.notifier.sent)
	}
}

func TestRunBackup_DryRunNotRecorded(t *testing.T) {
	ta := newTestApp(t, func(c *config.Config) { c.DryRun = true })

	res, err := ta.RunBackup(context.Background(), vb.TriggerManual)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if !res.DryRun {
		t.Fatalf("result = %+v, want dry run", res)
	}
	if _, err := ta.ledger.LastRun(); !errors.Is(err, vb.ErrNotFound) {
		t.Errorf("LastRun() error = %v, want ErrNotFound", err)
	}
	if len(ta.notifier.sent) != 0 {
		t.Errorf("dry run sent %d notifications", len(ta.notifier.sent))
	}
}

func TestRunBackup_InProgress(t *testing.T) {
	ta := newTestApp(t, nil)
	if !ta.gate.enter(NewOperation(vb.TriggerWatch, time.Now()), false) {
		t.Fatal("could not claim gate")
	}

	if _, err := ta.RunBackup(context.Background(), vb.TriggerManual); !errors.Is(err, ErrBackupInProgress) {
		t.Errorf("RunBackup() error = %v, want ErrBackupInProgress", err)
	}
	if ta.store.Backups != 0 {
		t.Errorf("snapshot taken while gate was held")
	}
	if ta.gate.leave() {
		t.Error("manual trigger queued a follow-up run")
	}
}

// blockingStore holds the first snapshot until release is closed.
type blockingStore struct {
	*testutil.StubSnapshotStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Backup(ctx context.Context, root string) (string, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return s.StubSnapshotStore.Backup(ctx, root)
}

func TestRunBackup_QueuesFollowUp(t *testing.T) {
	ta := newTestApp(t, nil)
	store := &blockingStore{StubSnapshotStore: ta.store, started: make(chan struct{}), release: make(chan struct{})}
	ta.VBApp.backup = vb.NewBackupService(ta.cfg.VaultPath, ta.committer, store, nil,
		ta.state, ta.clock, testutil.NewStubIDGenerator(), vb.NewNopLogger(), vb.BackupOptions{})

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := ta.RunBackup(ctx, vb.TriggerWatch)
		done <- err
	}()
	<-store.started

	// A change settles while the first run is snapshotting.
	debouncer := watcher.NewDebouncer(time.Millisecond, func() { ta.triggered(ctx) }, nil, ta.state, ta.clock, vb.NewNopLogger())
	debouncer.Submit(watcher.Event{Path: "notes/late.md", Op: watcher.OpWrite})

	deadline := time.Now().Add(2 * time.Second)
	for debouncer.Pending() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// fire clears the marker before the trigger returns; wait for the
	// rejected trigger to set it again.
	for time.Now().Before(deadline) {
		if st, _ := ta.state.Load(); st.Pending {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if st, _ := ta.state.Load(); !st.Pending {
		t.Fatal("pending marker cleared while the change is not backed up")
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	if ta.store.Backups != 2 {
		t.Errorf("Backups = %d, want 2 (run plus follow-up)", ta.store.Backups)
	}
	if st, _ := ta.state.Load(); st.Pending {
		t.Error("pending marker still set after follow-up run")
	}
	runs, err := ta.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("ledger has %d runs, want 2", len(runs))
	}
}

func TestRunBackup_MirrorNeedsKeys(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.VBApp.encryptor = encryption.NewTestEncryptor()

	res, err := ta.RunBackup(context.Background(), vb.TriggerManual)
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if !res.Success {
		t.Errorf("mirror failure changed the run result: %+v", res)
	}
	if v, _ := ta.offsite.Version(LedgerObject); v != 0 {
		t.Errorf("ledger mirrored without keys (version %d)", v)
	}
}

func TestPullLedger(t *testing.T) {
	ta := newTestApp(t, nil)
	if _, err := ta.RunBackup(context.Background(), vb.TriggerManual); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}

	t.Run("wrong passphrase", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "pulled.db")
		if _, err := ta.PullLedger(out, "nope"); err == nil {
			t.Fatal("PullLedger() with wrong passphrase succeeded")
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Errorf("output file left behind: %v", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "pulled.db")
		version, err := ta.PullLedger(out, testPassphrase)
		if err != nil {
			t.Fatalf("PullLedger() error = %v", err)
		}
		if version != 1 {
			t.Errorf("version = %d, want 1", version)
		}

		pulled, err := database.NewSQLiteLedger(out)
		if err != nil {
			t.Fatalf("opening pulled ledger: %v", err)
		}
		defer pulled.Close()
		runs, err := pulled.RecentRuns(10)
		if err != nil {
			t.Fatalf("RecentRuns() error = %v", err)
		}
		if len(runs) != 1 || runs[0].Status != "success" {
			t.Errorf("pulled runs = %+v", runs)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "existing.db")
		if err := os.WriteFile(out, []byte("keep"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := ta.PullLedger(out, testPassphrase); err == nil {
			t.Error("PullLedger() overwrote an existing file")
		}
		data, _ := os.ReadFile(out)
		if string(data) != "keep" {
			t.Errorf("existing file modified: %q", data)
		}
	})
}

func TestSetupKeys(t *testing.T) {
	ta := newTestApp(t, nil)
	if err := ta.SetupKeys("again"); !errors.Is(err, encryption.ErrKeysExist) {
		t.Errorf("SetupKeys() error = %v, want ErrKeysExist", err)
	}

	ta.VBApp.encryptor = nil
	if err := ta.SetupKeys("x"); err == nil {
		t.Error("SetupKeys() with encryption disabled succeeded")
	}
	if _, err := ta.PublicKey(); err == nil {
		t.Error("PublicKey() with encryption disabled succeeded")
	}
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t, nil)

	s, err := ta.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if s.LastRun != nil || s.Running != nil {
		t.Errorf("fresh status = %+v", s)
	}
	if !s.RepositoryReady || s.Health.Status != "healthy" {
		t.Errorf("fresh status = %+v", s)
	}

	if _, err := ta.RunBackup(context.Background(), vb.TriggerManual); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	s, err = ta.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if s.LastRun == nil || s.LastRun.SnapshotID != "4f2a9c1b" {
		t.Errorf("LastRun = %+v", s.LastRun)
	}
	if s.Health.LastBackup == nil {
		t.Error("LastBackup marker not reported after a snapshot")
	}
}

func TestQueries(t *testing.T) {
	ta := newTestApp(t, nil)
	root := ta.cfg.VaultPath
	ta.git.Commits = []vb.Commit{{Hash: "0123456789abcdef0123456789abcdef01234567", ShortHash: "0123456"}}
	ta.git.Changes["0123456"] = []vb.FileChange{{Path: "a.md", Status: vb.StatusModified}}
	ta.snaps.Listings["4f2a9c1b"] = []vb.Entry{
		{Path: root + "/a.md", Kind: vb.EntryFile},
		{Path: root + "/sub/b.md", Kind: vb.EntryFile},
	}
	ctx := context.Background()

	t.Run("changes", func(t *testing.T) {
		changes, err := ta.Changes(ctx, "0123456")
		if err != nil || len(changes) != 1 {
			t.Errorf("Changes() = %+v, %v", changes, err)
		}
		if _, err := ta.Changes(ctx, "fffffff"); !errors.Is(err, vb.ErrNotFound) {
			t.Errorf("Changes(unknown) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list defaults to vault root", func(t *testing.T) {
		entries, err := ta.List(ctx, "4f2a9c1b", "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 || !entries[0].IsDir() || entries[1].Path != root+"/a.md" {
			t.Errorf("List() = %+v", entries)
		}
	})

	t.Run("history", func(t *testing.T) {
		runs, err := ta.History(5)
		if err != nil || len(runs) != 0 {
			t.Errorf("History() = %+v, %v", runs, err)
		}
	})
}

func TestCatchUp(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.state.SetPending(true)

	ta.catchUp(context.Background())

	st, _ := ta.state.Load()
	if st.Pending {
		t.Error("pending marker still set after catch-up")
	}
	if ta.store.Backups != 1 {
		t.Errorf("Backups = %d, want 1", ta.store.Backups)
	}

	ta.catchUp(context.Background())
	if ta.store.Backups != 1 {
		t.Errorf("catch-up ran without pending changes")
	}
}

func TestIgnorePolicy(t *testing.T) {
	ta := newTestApp(t, func(c *config.Config) { c.Ignore = []string{"drafts"} })
	if err := os.WriteFile(filepath.Join(ta.cfg.VaultPath, ".vbignore"), []byte("# local\nscratch/tmp.md\n"), 0644); err != nil {
		t.Fatal(err)
	}

	policy, err := ta.ignorePolicy()
	if err != nil {
		t.Fatalf("ignorePolicy() error = %v", err)
	}
	for path, want := range map[string]bool{
		".obsidian/workspace.json": true,
		"drafts/idea.md":           true,
		"scratch/tmp.md":           true,
		"notes/a.md":               false,
	} {
		if got := policy.Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}
