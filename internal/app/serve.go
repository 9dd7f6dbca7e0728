package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"vault-backup/internal/watcher"
	"vault-backup/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the HTTP surface for the vault.
func (a *VBApp) Handler() http.Handler {
	opts := web.Options{
		Root:       a.cfg.VaultPath,
		Git:        a.git,
		Snapshots:  a.snapshots,
		Resolver:   a.resolver,
		Restorer:   a.restorer,
		Health:     a.health,
		DefaultTag: a.cfg.Restic.Tag,
		Logger:     a.logger,
	}
	if a.ledger != nil {
		opts.Runs = a.ledger
	}
	return web.NewServer(opts).Handler()
}

// ignorePolicy combines the stock Obsidian rules, the config's ignore list and
// the vault's own ignore file.
func (a *VBApp) ignorePolicy() (*watcher.IgnorePolicy, error) {
	policy := watcher.DefaultIgnorePolicy().Extend(a.cfg.Ignore)
	entries, err := watcher.ParseIgnoreFile(filepath.Join(a.cfg.VaultPath, watcher.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return policy.Extend(entries), nil
}

// Serve watches the vault and serves HTTP until ctx is cancelled. Changes
// trigger a backup once the vault has been quiet for the debounce period.
// A run in progress when ctx is cancelled is awaited before Serve returns.
func (a *VBApp) Serve(ctx context.Context) error {
	policy, err := a.ignorePolicy()
	if err != nil {
		return err
	}

	quiet := time.Duration(a.cfg.DebounceSeconds) * time.Second
	debouncer := watcher.NewDebouncer(quiet, func() { a.triggered(ctx) }, policy, a.state, a.clock, a.logger)
	w, err := watcher.NewWatcher(a.cfg.VaultPath, debouncer, policy, a.logger)
	if err != nil {
		return err
	}
	srv := web.NewHTTPServer(a.cfg.ListenAddr, a.Handler())

	a.logger.Info("service starting",
		"vault", a.cfg.VaultPath,
		"debounce", quiet.String(),
		"listen", a.cfg.ListenAddr,
		"dry_run", a.cfg.DryRun)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		if err := w.Close(); err != nil {
			a.logger.Warn("closing watcher failed", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.catchUp(gctx)
		return nil
	})

	err = g.Wait()
	a.gate.wait()
	return err
}

// catchUp runs a backup at startup when changes were left pending by a
// previous process.
func (a *VBApp) catchUp(ctx context.Context) {
	st, err := a.state.Load()
	if err != nil {
		a.logger.Warn("reading state markers failed", "error", err)
		return
	}
	if !st.Pending {
		return
	}
	a.logger.Info("changes pending from previous run, backing up now", "last_change", st.LastChange)
	if err := a.state.SetPending(false); err != nil {
		a.logger.Warn("writing pending marker failed", "error", err)
	}
	a.triggered(ctx)
}
