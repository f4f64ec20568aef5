package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches rapid successive writes, which editors produce
// when saving a file.
const defaultDebounce = 500 * time.Millisecond

// ReloadCallback is called with the freshly loaded configuration after the
// config file changes on disk.
type ReloadCallback func(*Config)

// Watcher monitors the config file and reloads it on change, so search
// defaults can be tuned without restarting a long-running server.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	callback ReloadCallback
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   bool

	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		watcher:  fsWatcher,
		path:     path,
		debounce: defaultDebounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetCallback sets the callback invoked after each reload.
func (w *Watcher) SetCallback(cb ReloadCallback) {
	w.callback = cb
}

// Start begins watching for config file changes.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory rather than the file: editors replace files on
	// save, which drops a direct file watch.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.started = true
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases resources. Safe to call whether or
// not Start succeeded.
func (w *Watcher) Stop() error {
	if w.started {
		close(w.stopCh)
		<-w.doneCh
	}
	return w.watcher.Close()
}

// processEvents processes file system events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleEvent marks a reload pending when the config file was touched.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

// flushPending reloads the config and delivers it to the callback.
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "error", err)
		return
	}

	w.logger.Info("config reloaded", "path", w.path)
	if w.callback != nil {
		w.callback(cfg)
	}
}
