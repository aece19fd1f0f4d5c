// Package reader tails append-only log files, returning only the lines
// appended since the previous read and persisting per-file offsets.
package reader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/AgentsMesh/CCMonitor/internal/clock"
	"github.com/AgentsMesh/CCMonitor/internal/fsutil"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// ErrNotRegular is returned when a tracked path is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// Reader owns the offset table. All methods are safe for concurrent use.
type Reader struct {
	mu        sync.Mutex
	states    map[string]models.FileProcessState
	statePath string
	clock     clock.Clock
}

// New creates a reader and loads the offset table persisted at statePath.
// Entries for files that no longer exist are dropped. A nil clock uses the
// system clock.
func New(statePath string, clk clock.Clock) *Reader {
	if clk == nil {
		clk = clock.System{}
	}
	r := &Reader{
		states:    make(map[string]models.FileProcessState),
		statePath: statePath,
		clock:     clk,
	}
	r.load()
	return r
}

// ReadNewLines returns the complete, non-blank lines appended to path since
// the last read. A trailing line without a newline is left for the next call.
// A file that shrank below its recorded size is re-read from the start.
func (r *Reader) ReadNewLines(path string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked(path, false)
}

func (r *Reader) readLocked(path string, retried bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	size := info.Size()
	state, tracked := r.states[path]
	offset := state.Offset

	if tracked && (size < state.Offset || size < state.FileSize) {
		if retried {
			return nil, nil
		}
		logger.Info("Log file truncated, rereading from start", "path", path, "size", size, "offset", state.Offset)
		r.states[path] = models.FileProcessState{LastModified: state.LastModified}
		return r.readLocked(path, true)
	}

	if size <= offset {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("failed to close log file", "path", path, "error", err)
		}
	}()

	lines, consumed, err := readLines(io.NewSectionReader(f, offset, size-offset))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	r.states[path] = models.FileProcessState{
		Offset:        offset + consumed,
		LastModified:  info.ModTime(),
		LastProcessed: r.clock.Now(),
		FileSize:      size,
	}
	return lines, nil
}

// readLines splits src into lines, skipping blank ones. consumed counts the
// bytes up to and including the last newline.
func readLines(src io.Reader) (lines []string, consumed int64, err error) {
	br := bufio.NewReaderSize(src, 64*1024)
	for {
		chunk, err := br.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// chunk is an unterminated tail; it is read again once completed.
			return lines, consumed, nil
		}
		if err != nil {
			return nil, 0, err
		}
		consumed += int64(len(chunk))
		if line := bytes.TrimSpace(chunk); len(line) > 0 {
			lines = append(lines, string(line))
		}
	}
}

// NeedsProcessing reports whether path is untracked, was modified after it
// was last processed, or changed size since.
func (r *Reader) NeedsProcessing(path string) bool {
	r.mu.Lock()
	state, ok := r.states[path]
	r.mu.Unlock()
	if !ok {
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().After(state.LastProcessed) || info.Size() != state.FileSize
}

// InitializeToEnd marks path as fully read so only later appends are returned.
func (r *Reader) InitializeToEnd(path string) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("Cannot initialize log file", "path", path, "error", err)
		return
	}

	r.mu.Lock()
	r.states[path] = models.FileProcessState{
		Offset:        info.Size(),
		LastModified:  info.ModTime(),
		LastProcessed: r.clock.Now(),
		FileSize:      info.Size(),
	}
	r.mu.Unlock()
}

// InitializeToStart rewinds path so its whole history is read.
func (r *Reader) InitializeToStart(path string) {
	modTime := r.clock.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}

	r.mu.Lock()
	r.states[path] = models.FileProcessState{LastModified: modTime}
	r.mu.Unlock()
}

// HasState reports whether path is tracked.
func (r *Reader) HasState(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.states[path]
	return ok
}

// State returns the bookkeeping for path.
func (r *Reader) State(path string) (models.FileProcessState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[path]
	return s, ok
}

// Reset forgets path.
func (r *Reader) Reset(path string) {
	r.mu.Lock()
	delete(r.states, path)
	r.mu.Unlock()
}

// ResetAll forgets every tracked file.
func (r *Reader) ResetAll() {
	r.mu.Lock()
	clear(r.states)
	r.mu.Unlock()
}

// TrackedFileCount returns the number of tracked files.
func (r *Reader) TrackedFileCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Save atomically replaces the persisted offset table.
func (r *Reader) Save() error {
	if r.statePath == "" {
		return nil
	}

	r.mu.Lock()
	data, err := json.Marshal(r.states)
	count := len(r.states)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode file states: %w", err)
	}

	if err := fsutil.WriteFileAtomic(r.statePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to save file states: %w", err)
	}
	logger.Debug("Saved file states", "count", count)
	return nil
}

// ClearCache removes the persisted table and forgets every tracked file.
func (r *Reader) ClearCache() {
	r.mu.Lock()
	clear(r.states)
	r.mu.Unlock()

	if r.statePath == "" {
		return
	}
	if err := os.Remove(r.statePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove file state cache", "path", r.statePath, "error", err)
	}
	logger.Info("Cleared file state cache")
}

func (r *Reader) load() {
	if r.statePath == "" {
		return
	}
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to read file states", "path", r.statePath, "error", err)
		}
		logger.Info("No cached file states found, starting fresh")
		return
	}

	var loaded map[string]models.FileProcessState
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("Failed to decode file states", "path", r.statePath, "error", err)
		return
	}

	removed := 0
	for path, state := range loaded {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			removed++
			continue
		}
		r.states[path] = state
	}
	if removed > 0 {
		logger.Info("Pruned stale file states", "removed", removed)
	}
	logger.Info("Loaded cached file states", "count", len(r.states))
}
