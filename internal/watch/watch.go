// Package watch turns file changes in the device databases into
// device-changed sync requests.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rpggio/feedsync/internal/engine"
)

// DefaultDebounce coalesces bursts of writes from one database transaction.
const DefaultDebounce = 500 * time.Millisecond

// sqliteSiblings are the companion files SQLite writes next to a database.
var sqliteSiblings = []string{"", "-wal", "-journal"}

// Notifier receives device change notifications.
type Notifier interface {
	RequestDeviceChanged(kind engine.DeviceKind) <-chan engine.Result
}

// Watcher watches device database files and their SQLite siblings.
type Watcher struct {
	fs       *fsnotify.Watcher
	targets  map[string][]engine.DeviceKind
	notifier Notifier
	debounce time.Duration
	logger   *slog.Logger
}

// New watches the directories holding each database in paths. Several kinds
// may share one database file.
func New(paths map[engine.DeviceKind]string, notifier Notifier, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsw,
		targets:  make(map[string][]engine.DeviceKind),
		notifier: notifier,
		debounce: debounce,
		logger:   logger,
	}
	dirs := make(map[string]struct{})
	for kind, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		for _, suffix := range sqliteSiblings {
			w.targets[abs+suffix] = append(w.targets[abs+suffix], kind)
		}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		logger.Debug("watching device directory", "dir", dir)
	}
	return w, nil
}

// Run forwards debounced changes to the notifier until ctx is cancelled or
// the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	dirty := make(map[engine.DeviceKind]bool)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			kinds := w.match(ev)
			if len(kinds) == 0 {
				continue
			}
			for _, k := range kinds {
				dirty[k] = true
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-fire:
			w.flush(dirty)
			dirty = make(map[engine.DeviceKind]bool)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) match(ev fsnotify.Event) []engine.DeviceKind {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return nil
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return nil
	}
	return w.targets[name]
}

func (w *Watcher) flush(dirty map[engine.DeviceKind]bool) {
	kinds := make([]engine.DeviceKind, 0, len(dirty))
	for k := range dirty {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		w.logger.Debug("device log changed", "kind", k)
		w.notifier.RequestDeviceChanged(k)
	}
}
