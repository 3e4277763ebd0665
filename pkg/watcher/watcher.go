// Package watcher monitors a docs directory for Markdown changes and keeps
// the index synchronized through the change processor.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce matches editors that write files in several bursts.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives debounced file change events.
type Handler func(ctx context.Context, event Event)

// Watcher recursively watches the docs root for Markdown file changes.
// fsnotify does not descend into subdirectories on its own, so directories
// are registered on startup and as they appear.
type Watcher struct {
	docsRoot  string
	handler   Handler
	debouncer *Debouncer
	logger    *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func New(docsRoot string, debounce time.Duration, handler Handler, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		docsRoot:  docsRoot,
		handler:   handler,
		debouncer: NewDebouncer(debounce),
		logger:    logger,
	}
}

// Start begins watching. It registers the docs root and every subdirectory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addRecursive(fsw, w.docsRoot); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, fsw, w.done)
	w.logger.Info("file watcher started", "docs_root", w.docsRoot)
	return nil
}

// Stop closes the watcher and cancels pending debounced events.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, fsw, done := w.cancel, w.fsw, w.done
	w.mu.Unlock()

	cancel()
	fsw.Close()
	<-done
	w.debouncer.Clear()
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleFsEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories must be registered to keep the recursive watch alive
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.logger.Error("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") {
		return
	}

	rel, err := filepath.Rel(w.docsRoot, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		w.logger.Warn("ignoring path outside docs root", "path", event.Name)
		return
	}
	rel = filepath.ToSlash(rel)

	var eventType EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		eventType = EventAdd
	case event.Op.Has(fsnotify.Write):
		eventType = EventChange
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		eventType = EventUnlink
	default:
		return
	}

	w.debouncer.Debounce(rel, func() {
		w.handler(ctx, Event{Type: eventType, Filepath: rel})
	})
}
