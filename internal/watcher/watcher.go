package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"vault-backup/internal/vb"
)

// Watcher watches a vault recursively and forwards changes to an EventSink.
type Watcher struct {
	root   string
	sink   EventSink
	policy *IgnorePolicy
	logger vb.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher creates a Watcher for root. Nothing is watched until Start.
func NewWatcher(root string, sink EventSink, policy *IgnorePolicy, logger vb.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if policy == nil {
		policy = DefaultIgnorePolicy()
	}
	return &Watcher{root: root, sink: sink, policy: policy, logger: logger, fsw: fsw}, nil
}

// Start registers every directory under root and delivers events until ctx
// is done. It returns nil on cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	count, err := w.addTree(w.root, nil)
	if err != nil {
		return err
	}
	w.logger.Info("watching vault", "vault", w.root, "directories", count)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

// Close cancels any pending trigger and releases the OS watches.
func (w *Watcher) Close() error {
	w.sink.Cancel()
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	isDir := false
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			isDir = true
			if !w.ignored(ev.Name) {
				// A directory moved in already holds files that will never
				// produce events of their own.
				found := func(path string) {
					w.sink.Submit(Event{Path: w.relative(path), Op: OpCreate})
				}
				if _, err := w.addTree(ev.Name, found); err != nil {
					w.logger.Warn("watching new directory failed", "path", ev.Name, "error", err)
				}
			}
		}
	}
	w.sink.Submit(Event{Path: w.relative(ev.Name), Op: translateOp(ev.Op), IsDir: isDir})
}

// addTree registers dir and every non-ignored directory below it. Regular
// files found on the way are passed to found when it is non-nil.
func (w *Watcher) addTree(dir string, found func(path string)) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				w.logger.Debug("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if found != nil && d.Type().IsRegular() && !w.ignored(path) {
				found(path)
			}
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}

func (w *Watcher) ignored(path string) bool {
	return w.policy.Match(w.relative(path))
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func translateOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Write):
		return OpWrite
	default:
		return OpChmod
	}
}
