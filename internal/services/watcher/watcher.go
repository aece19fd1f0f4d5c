// Package watcher reports changed usage log files under the projects
// directories, coalescing bursts of writes into a single callback.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AgentsMesh/CCMonitor/internal/logger"
)

// LogExtension is the suffix of usage log files.
const LogExtension = ".jsonl"

// DefaultLatency is the longest a change waits before it is delivered.
const DefaultLatency = time.Second

// ChangeFunc receives the changed log files, sorted and without duplicates.
type ChangeFunc func(paths []string)

// Watcher watches directory trees recursively for log file changes.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	latency  time.Duration
	onChange ChangeFunc
	onError  func(error)
	pending  map[string]struct{}
	timer    *time.Timer
	stopChan chan struct{}
	done     chan struct{}
	closed   bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithErrorHandler routes watcher errors to fn instead of the log.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// New starts watching every directory under roots. Roots that do not exist
// are skipped; it is an error only if none could be watched.
func New(roots []string, latency time.Duration, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watcher: nil change callback")
	}
	if latency <= 0 {
		latency = DefaultLatency
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		latency:  latency,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	watched := 0
	for _, root := range roots {
		n, err := w.addTree(root)
		if err != nil {
			logger.Warn("Failed to watch directory", "path", root, "error", err)
			continue
		}
		watched += n
	}
	if watched == 0 {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("no watchable directories in %v", roots)
	}

	logger.Debug("File watcher started", "directories", watched, "latency", latency)
	go w.watchLoop()
	return w, nil
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			logger.Debug("Skipping unwatchable directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	return count, err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New project directories may already hold files by the time
			// the watch is in place.
			if _, err := w.addTree(event.Name); err != nil {
				w.reportError(err)
			}
			w.queueExisting(event.Name)
			return
		}
	}

	if !strings.HasSuffix(event.Name, LogExtension) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	w.queue(event.Name)
}

func (w *Watcher) queueExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, LogExtension) {
			w.queue(path)
		}
		return nil
	})
}

// queue records path. The timer is armed by the first change of a batch and
// never pushed back, so a file written continuously is still delivered once
// per latency.
func (w *Watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.latency, w.flush)
	}
}

// flush delivers the pending set.
func (w *Watcher) flush() {
	w.mu.Lock()
	w.timer = nil
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	slices.Sort(paths)
	w.onChange(paths)
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
		return
	}
	logger.Warn("File watcher error", "error", err)
}

// Close stops watching and drops pending changes. It waits for the event
// loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopChan)
	err := w.watcher.Close()
	<-w.done
	return err
}
