// Package services wires the ingestion pipeline together and routes its
// events to the TUI.
package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"golang.org/x/sync/errgroup"

	"github.com/AgentsMesh/CCMonitor/internal/clock"
	"github.com/AgentsMesh/CCMonitor/internal/config"
	"github.com/AgentsMesh/CCMonitor/internal/db"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/parser"
	"github.com/AgentsMesh/CCMonitor/internal/services/aggregator"
	"github.com/AgentsMesh/CCMonitor/internal/services/pricing"
	"github.com/AgentsMesh/CCMonitor/internal/services/reader"
	"github.com/AgentsMesh/CCMonitor/internal/services/snapshot"
	"github.com/AgentsMesh/CCMonitor/internal/services/watcher"
)

type (
	// UsageUpdatedEvent carries a fresh dashboard read model.
	UsageUpdatedEvent struct {
		Data models.DashboardData
	}

	// ProgressEvent is emitted periodically during the startup scan.
	ProgressEvent struct {
		Progress models.ScanProgress
	}

	// ScanCompletedEvent is emitted when a full scan finishes.
	ScanCompletedEvent struct {
		Processed int
		Skipped   int
		Entries   int
		Duration  time.Duration
	}

	// BudgetAlertEvent is emitted when spend crosses a budget threshold.
	BudgetAlertEvent struct {
		Projection models.BudgetProjection
		Level      string
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (UsageUpdatedEvent) isServiceEvent()  {}
func (ProgressEvent) isServiceEvent()      {}
func (ScanCompletedEvent) isServiceEvent() {}
func (BudgetAlertEvent) isServiceEvent()   {}
func (ErrorEvent) isServiceEvent()         {}

// scanBatchSize is how many processed files pass between progress events.
const scanBatchSize = 200

// jobQueueSize bounds the serial lane's backlog.
const jobQueueSize = 64

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("manager closed")

// job is one unit of work on the serial lane.
type job func(ctx context.Context)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the system clock.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clock = clk }
}

// WithHTTPClient sets the client used to fetch remote pricing.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.httpClient = client }
}

// WithNotifier replaces the desktop notifier used for budget alerts.
func WithNotifier(fn func(title, body string) error) Option {
	return func(m *Manager) { m.notify = fn }
}

// Manager owns the pipeline components. Every mutation of the offsets, the
// aggregator and the snapshot runs on a single lane, in submission order.
type Manager struct {
	cfg        *config.Config
	clock      clock.Clock
	httpClient *http.Client
	notify     func(title, body string) error

	pricing    *pricing.Service
	reader     *reader.Reader
	parser     *parser.Parser
	aggregator *aggregator.Aggregator
	snapshots  *snapshot.Store

	laneMu         sync.Mutex
	jobs           chan job
	refreshPending atomic.Bool
	initOnce       sync.Once

	mu          sync.RWMutex
	database    *db.DB
	watcher     *watcher.Watcher
	subscribers []chan ServiceEvent
	progress    models.ScanProgress
	hasSnapshot bool
	initialized bool
	alerted     map[string]string
	started     bool
	closed      bool
	lifetime    context.Context
	cancel      context.CancelFunc
	group       *errgroup.Group
}

// NewManager creates the pipeline components. Nothing runs until Start or RunOnce.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	m := &Manager{
		cfg:     cfg,
		clock:   clock.System{},
		jobs:    make(chan job, jobQueueSize),
		alerted: make(map[string]string),
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.pricing = pricing.NewService(pricing.Config{
		URL:         cfg.PricingURL,
		CachePath:   cfg.PricingCachePath(),
		CacheMaxAge: cfg.PricingCacheMaxAge,
	}, m.httpClient)
	m.reader = reader.New(cfg.OffsetsPath(), m.clock)
	m.parser = parser.New()
	m.aggregator = aggregator.New(m.clock, cfg.SessionDuration)
	m.snapshots = snapshot.New(cfg.SnapshotPath(), m.clock)

	return m, nil
}

// initialize loads pricing, opens the secondary store and restores the
// snapshot. It runs once per manager.
func (m *Manager) initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		source := m.pricing.Load(ctx)
		logger.Info("Pricing loaded", "source", source, "models", m.pricing.Count())

		var database *db.DB
		if m.cfg.DatabasePath != "" {
			var err error
			database, err = db.New(m.cfg.DatabasePath)
			if err != nil {
				logger.Warn("Usage store unavailable, continuing without it", "path", m.cfg.DatabasePath, "error", err)
				database = nil
			}
		}

		hasSnapshot := m.snapshots.Load(m.aggregator)

		m.mu.Lock()
		m.database = database
		m.hasSnapshot = hasSnapshot
		m.initialized = true
		m.mu.Unlock()
	})
}

// Start runs the pipeline in the background: the serial worker, the file
// watcher, the startup scan and the refresh, save and pricing loops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	m.lifetime = gctx
	m.cancel = cancel
	m.group = g
	m.mu.Unlock()

	m.initialize(gctx)
	if m.HasSnapshot() {
		m.publish()
	}

	roots := m.cfg.ProjectsDirs()
	if len(roots) == 0 {
		logger.Warn("No project directories found", "roots", m.cfg.ClaudePaths)
	}

	g.Go(func() error {
		m.runWorker(gctx)
		return nil
	})

	if len(roots) > 0 {
		w, err := watcher.New(roots, m.cfg.WatchLatency, func(paths []string) {
			m.submit(gctx, func(ctx context.Context) { m.processFiles(ctx, paths) })
		}, watcher.WithErrorHandler(func(err error) {
			logger.Warn("File watcher error", "error", err)
			m.broadcast(ErrorEvent{Service: "watcher", Error: err})
		}))
		if err != nil {
			logger.Warn("File watching disabled", "error", err)
			m.broadcast(ErrorEvent{Service: "watcher", Error: err})
		} else {
			m.mu.Lock()
			m.watcher = w
			m.mu.Unlock()
		}
	}

	g.Go(func() error {
		m.every(gctx, m.cfg.RefreshInterval, m.requestRefresh)
		return nil
	})

	m.submit(gctx, m.scanAndSave)

	g.Go(func() error {
		m.every(gctx, m.cfg.SaveInterval, func(ctx context.Context) {
			m.submit(ctx, func(ctx context.Context) { _ = m.saveAll(ctx) })
		})
		return nil
	})
	g.Go(func() error {
		m.every(gctx, m.cfg.PricingRefreshInterval, func(ctx context.Context) {
			source := m.pricing.Load(ctx)
			logger.Info("Pricing reloaded", "source", source, "models", m.pricing.Count())
		})
		return nil
	})

	logger.Info("Pipeline started", "roots", len(roots), "snapshot", m.HasSnapshot())
	return nil
}

// RunOnce scans every log file synchronously and saves all state.
func (m *Manager) RunOnce(ctx context.Context) error {
	m.mu.RLock()
	started, closed := m.started, m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if started {
		return errors.New("manager already started")
	}

	m.initialize(ctx)

	m.laneMu.Lock()
	defer m.laneMu.Unlock()
	m.scan(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.saveAll(ctx)
}

func (m *Manager) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-m.jobs:
			m.laneMu.Lock()
			j(ctx)
			m.laneMu.Unlock()
		}
	}
}

// submit queues j on the serial lane. It reports false if ctx ended first.
func (m *Manager) submit(ctx context.Context, j job) bool {
	select {
	case m.jobs <- j:
		return true
	case <-ctx.Done():
		return false
	}
}

// run executes j on the serial lane and waits for it to finish.
func (m *Manager) run(ctx context.Context, j job) error {
	m.mu.RLock()
	started, closed, lifetime := m.started, m.closed, m.lifetime
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if !started {
		m.laneMu.Lock()
		defer m.laneMu.Unlock()
		j(ctx)
		return ctx.Err()
	}

	done := make(chan struct{})
	wrapped := func(jctx context.Context) {
		defer close(done)
		j(jctx)
	}
	select {
	case m.jobs <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-lifetime.Done():
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-lifetime.Done():
		return ErrClosed
	}
}

// every calls fn each interval until ctx ends. A non-positive interval disables it.
func (m *Manager) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// requestRefresh queues a prune and publish unless one is already waiting.
func (m *Manager) requestRefresh(ctx context.Context) {
	if !m.refreshPending.CompareAndSwap(false, true) {
		return
	}
	queued := m.submit(ctx, func(context.Context) {
		m.refreshPending.Store(false)
		m.aggregator.Prune()
		m.publish()
	})
	if !queued {
		m.refreshPending.Store(false)
	}
}

// Reset wipes all aggregated data and cached offsets, then rescans every
// log file from the start.
func (m *Manager) Reset(ctx context.Context) error {
	return m.run(ctx, func(ctx context.Context) {
		logger.Info("Resetting all usage data")
		m.aggregator.Reset()
		m.reader.ClearCache()
		if err := m.snapshots.Remove(); err != nil {
			logger.Warn("Failed to remove snapshot", "error", err)
		}

		m.mu.Lock()
		m.hasSnapshot = false
		clear(m.alerted)
		m.mu.Unlock()

		m.publish()
		m.scanAndSave(ctx)
	})
}

// Save persists offsets, the snapshot and the secondary store.
func (m *Manager) Save(ctx context.Context) error {
	var err error
	runErr := m.run(ctx, func(ctx context.Context) { err = m.saveAll(ctx) })
	return errors.Join(runErr, err)
}

// ProcessFile folds the new lines of one log file into the aggregates and
// returns how many entries were counted.
func (m *Manager) ProcessFile(path string) (int, error) {
	m.laneMu.Lock()
	defer m.laneMu.Unlock()
	return m.processFile(path)
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	if m.closed {
		close(ch)
	} else {
		m.subscribers = append(m.subscribers, ch)
	}
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return waitForEvent(ch)
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// HasSnapshot reports whether state was restored from a snapshot (and not reset since).
func (m *Manager) HasSnapshot() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasSnapshot
}

// Progress returns the latest scan progress.
func (m *Manager) Progress() models.ScanProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress
}

func (m *Manager) setProgress(p models.ScanProgress) {
	m.mu.Lock()
	m.progress = p
	m.mu.Unlock()
}

// Database returns the secondary store, or nil when it is unavailable.
func (m *Manager) Database() *db.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.database
}

// Aggregator returns the usage aggregator.
func (m *Manager) Aggregator() *aggregator.Aggregator {
	return m.aggregator
}

// Pricing returns the pricing service.
func (m *Manager) Pricing() *pricing.Service {
	return m.pricing
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Close stops every loop and the watcher, saves state one last time and
// closes the secondary store.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel, group, w := m.cancel, m.group, m.watcher
	m.mu.Unlock()

	var errs []error

	if cancel != nil {
		cancel()
	}
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if group != nil {
		if err := group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if initialized {
		m.laneMu.Lock()
		if err := m.saveAll(context.Background()); err != nil {
			errs = append(errs, err)
		}
		m.laneMu.Unlock()
	}

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	database := m.database
	m.database = nil
	m.mu.Unlock()

	if database != nil {
		if err := database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
