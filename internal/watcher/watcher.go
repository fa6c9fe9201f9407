// Package watcher triggers knowledge base refreshes when the corpus changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// DefaultDebounce is the quiet period after the last change before a refresh.
const DefaultDebounce = 2 * time.Second

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("watcher closed")

// Refresher rebuilds the knowledge base when the corpus has changed.
type Refresher interface {
	Refresh(ctx context.Context) (domain.KnowledgeStatus, error)
}

// Watcher watches a corpus directory tree and calls Refresh once changes
// have settled. fsnotify is not recursive, so every directory is added
// individually, including ones created while watching.
type Watcher struct {
	root     string
	target   Refresher
	debounce time.Duration

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
}

// New creates a watcher for root. A debounce of zero selects DefaultDebounce.
func New(root string, target Refresher, debounce time.Duration) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", root)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{root: root, target: target, debounce: debounce, fsw: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.hidden(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run watches until ctx is cancelled or the watcher is closed.
// Refresh errors are logged; the previous index keeps serving.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	fsw := w.fsw
	w.mu.Unlock()

	logger.Info("Watching %s for changes", w.root)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("Corpus change: %s %s", event.Op, event.Name)
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.Warn("Failed to watch new directory: %v", err)
					}
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-timer.C:
			status, err := w.target.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("Refresh failed, previous index still serving: %v", err)
				continue
			}
			logger.Info("Knowledge base ready: %d chunks (%s)", status.ChunkCount, status.Fingerprint)
		}
	}
}

// relevant reports whether event can change the corpus fingerprint.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if w.hidden(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// hidden reports whether path has a dot-prefixed element below the root.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
