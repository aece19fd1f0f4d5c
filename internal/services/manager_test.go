package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/AgentsMesh/CCMonitor/internal/clock"
	"github.com/AgentsMesh/CCMonitor/internal/config"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// MockRoundTripper implements http.RoundTripper for testing
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

var offlineClient = &http.Client{Transport: &MockRoundTripper{
	RoundTripFunc: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	},
}}

type notifications struct {
	mu     sync.Mutex
	titles []string
}

func (n *notifications) notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *notifications) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.titles...)
}

// testEnv returns a config over a temporary log root and the project
// directory log files go into.
func testEnv(t *testing.T) (*config.Config, string) {
	t.Helper()

	root := t.TempDir()
	claude := filepath.Join(root, "claude")
	project := filepath.Join(claude, "projects", "-home-u-app")
	cache := filepath.Join(root, "cache")
	for _, dir := range []string{project, cache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{
		ClaudePaths:     []string{claude},
		CacheDir:        cache,
		DatabasePath:    filepath.Join(root, "usage.db"),
		PricingURL:      "http://pricing.invalid/prices.json",
		SessionDuration: 5 * time.Hour,
		BurnRateWindow:  30 * time.Minute,
		WatchLatency:    50 * time.Millisecond,
		DailyBudget:     10,
		MonthlyBudget:   200,
	}
	return cfg, project
}

func newTestManager(t *testing.T, cfg *config.Config, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{
		WithClock(clock.NewFixed(testNow, time.UTC)),
		WithHTTPClient(offlineClient),
		WithNotifier(func(string, string) error { return nil }),
	}, opts...)
	mgr, err := NewManager(cfg, opts...)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := mgr.Close(); err != nil {
			t.Logf("Close() failed: %v", err)
		}
	})
	return mgr
}

func logLine(id string, at time.Time, cost float64) string {
	return fmt.Sprintf(`{"timestamp":%q,"sessionId":"s1","requestId":"req_%s","message":{"id":"msg_%s","model":"claude-sonnet-4","usage":{"input_tokens":100,"output_tokens":50}},"costUSD":%g}`,
		at.Format(time.RFC3339), id, id, cost)
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewManager_NilConfig(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Error("NewManager(nil) error = nil, want error")
	}
}

func TestRunOnce(t *testing.T) {
	cfg, project := testEnv(t)
	log := filepath.Join(project, "s1.jsonl")
	appendLines(t, log,
		logLine("1", testNow.Add(-time.Minute), 1.25),
		`{"type":"summary","summary":"no usage here"}`,
		logLine("2", testNow.Add(-2*time.Minute), 1.75),
	)

	mgr := newTestManager(t, cfg)
	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() failed: %v", err)
	}

	totals := mgr.Aggregator().Totals()
	if totals.Requests != 2 {
		t.Errorf("Totals().Requests = %d, want 2", totals.Requests)
	}
	if totals.CostUSD != 3.0 {
		t.Errorf("Totals().CostUSD = %v, want 3", totals.CostUSD)
	}

	for _, path := range []string{cfg.OffsetsPath(), cfg.SnapshotPath()} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to be saved: %v", path, err)
		}
	}

	n, err := mgr.Database().CountAggregatedUsage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("usage store rows = %d, want 2 (one hour, one day)", n)
	}

	progress := mgr.Progress()
	if !progress.Done || progress.FilesTotal != 1 {
		t.Errorf("Progress() = %+v, want done with 1 file", progress)
	}

	diag := mgr.Diagnostics()
	if diag.Parse.Parsed != 2 || diag.Parse.NoUsageKeyword != 1 {
		t.Errorf("Diagnostics().Parse = %+v", diag.Parse)
	}
	if diag.PricingModels == 0 {
		t.Error("Diagnostics().PricingModels = 0, want embedded pricing")
	}
}

func TestRunOnce_ResumesFromSnapshot(t *testing.T) {
	cfg, project := testEnv(t)
	log := filepath.Join(project, "s1.jsonl")
	appendLines(t, log, logLine("1", testNow.Add(-time.Minute), 1))

	first, err := NewManager(cfg, WithClock(clock.NewFixed(testNow, time.UTC)), WithHTTPClient(offlineClient))
	if err != nil {
		t.Fatal(err)
	}
	if err := first.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// One new line and one replay of an already counted message.
	appendLines(t, log,
		logLine("2", testNow, 2),
		logLine("1", testNow.Add(-time.Minute), 1),
	)

	second := newTestManager(t, cfg)
	if err := second.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !second.HasSnapshot() {
		t.Error("HasSnapshot() = false, want true")
	}

	totals := second.Aggregator().Totals()
	if totals.Requests != 2 || totals.CostUSD != 3 {
		t.Errorf("Totals() = %+v, want 2 requests costing 3", totals)
	}
	if got := second.Aggregator().Stats().Duplicates; got != 1 {
		t.Errorf("Stats().Duplicates = %d, want 1", got)
	}
}

func TestProcessFile(t *testing.T) {
	cfg, project := testEnv(t)
	mgr := newTestManager(t, cfg)
	log := filepath.Join(project, "s1.jsonl")

	if _, err := mgr.ProcessFile(log); err == nil {
		t.Error("ProcessFile() on a missing file error = nil")
	}

	appendLines(t, log, logLine("1", testNow, 0.5))
	n, err := mgr.ProcessFile(log)
	if err != nil {
		t.Fatalf("ProcessFile() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ProcessFile() = %d, want 1", n)
	}

	// Nothing new to read.
	n, err = mgr.ProcessFile(log)
	if err != nil || n != 0 {
		t.Errorf("ProcessFile() = %d, %v; want 0, nil", n, err)
	}

	project1 := mgr.Aggregator().ProjectUsage()["-home-u-app"]
	if project1.RequestCount != 1 {
		t.Errorf("project RequestCount = %d, want 1", project1.RequestCount)
	}
}

func TestReset(t *testing.T) {
	cfg, project := testEnv(t)
	appendLines(t, filepath.Join(project, "s1.jsonl"),
		logLine("1", testNow, 1),
		logLine("2", testNow, 1),
	)

	mgr := newTestManager(t, cfg)
	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}

	if got := mgr.Aggregator().Totals().Requests; got != 2 {
		t.Errorf("Totals().Requests after Reset() = %d, want 2", got)
	}
	if mgr.HasSnapshot() {
		t.Error("HasSnapshot() after Reset() = true")
	}
	if _, err := os.Stat(cfg.SnapshotPath()); err != nil {
		t.Errorf("snapshot not rewritten after rescan: %v", err)
	}
}

func TestBudgetAlerts(t *testing.T) {
	cfg, project := testEnv(t)
	cfg.DailyBudget = 2
	cfg.MonthlyBudget = 4
	cfg.BudgetAlerts = true
	appendLines(t, filepath.Join(project, "s1.jsonl"), logLine("1", testNow, 3))

	n := &notifications{}
	mgr := newTestManager(t, cfg, WithNotifier(n.notify))
	events, _ := mgr.Subscribe()

	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	mgr.publish()
	mgr.publish()

	got := n.list()
	if len(got) != 1 || got[0] != "Daily budget exceeded" {
		t.Errorf("notifications = %v, want [Daily budget exceeded]", got)
	}

	alerts := 0
	for len(events) > 0 {
		if ev, ok := (<-events).(BudgetAlertEvent); ok {
			alerts++
			if ev.Level != AlertExceeded || ev.Projection.Period != "daily" {
				t.Errorf("BudgetAlertEvent = %+v", ev)
			}
		}
	}
	if alerts != 1 {
		t.Errorf("BudgetAlertEvent count = %d, want 1", alerts)
	}

	// 3.5 of 4 puts the month past the warning threshold.
	appendLines(t, filepath.Join(project, "s1.jsonl"), logLine("2", testNow, 0.5))
	if _, err := mgr.ProcessFile(filepath.Join(project, "s1.jsonl")); err != nil {
		t.Fatal(err)
	}
	mgr.publish()
	got = n.list()
	if len(got) != 2 || got[1] != "Monthly budget at 88%" {
		t.Errorf("notifications = %v, want a monthly warning", got)
	}
}

func TestBudgetAlerts_Disabled(t *testing.T) {
	cfg, project := testEnv(t)
	cfg.DailyBudget = 1
	appendLines(t, filepath.Join(project, "s1.jsonl"), logLine("1", testNow, 3))

	n := &notifications{}
	mgr := newTestManager(t, cfg, WithNotifier(n.notify))
	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	mgr.publish()
	if got := n.list(); len(got) != 0 {
		t.Errorf("notifications = %v, want none", got)
	}
}

func TestHistory(t *testing.T) {
	cfg, project := testEnv(t)
	appendLines(t, filepath.Join(project, "s1.jsonl"),
		logLine("1", testNow.Add(-48*time.Hour), 2),
		logLine("2", testNow.Add(-time.Hour), 1),
		logLine("3", testNow, 0.5),
	)

	mgr := newTestManager(t, cfg)
	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		r          models.TimeRange
		wantPoints int
		wantCost   float64
	}{
		{"24Hours", models.TimeRange24Hours, 2, 1.5},
		{"7Days", models.TimeRange7Days, 2, 3.5},
		{"AllTime", models.TimeRangeAllTime, 2, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := mgr.History(context.Background(), tt.r)
			if err != nil {
				t.Fatalf("History() failed: %v", err)
			}
			if len(h.Points) != tt.wantPoints {
				t.Errorf("History() points = %d, want %d", len(h.Points), tt.wantPoints)
			}
			if h.TotalCost != tt.wantCost {
				t.Errorf("History() TotalCost = %v, want %v", h.TotalCost, tt.wantCost)
			}
		})
	}
}

func TestHistory_FromStoreAfterRetention(t *testing.T) {
	cfg, project := testEnv(t)
	appendLines(t, filepath.Join(project, "s1.jsonl"), logLine("1", testNow, 2))

	mgr := newTestManager(t, cfg)
	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Forget the in-memory buckets; the store still has them.
	mgr.Aggregator().Reset()
	h, err := mgr.History(context.Background(), models.TimeRange7Days)
	if err != nil {
		t.Fatal(err)
	}
	if !h.HasData() || h.TotalCost != 2 {
		t.Errorf("History() = %+v, want the stored day", h)
	}
}

func TestDashboard(t *testing.T) {
	cfg, project := testEnv(t)
	appendLines(t, filepath.Join(project, "s1.jsonl"),
		logLine("1", testNow.Add(-2*time.Minute), 1),
		logLine("2", testNow.Add(-time.Minute), 2),
	)

	mgr := newTestManager(t, cfg)
	if err := mgr.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	data := mgr.Dashboard()
	if data.Today.RequestCount != 2 {
		t.Errorf("Today.RequestCount = %d, want 2", data.Today.RequestCount)
	}
	if data.BurnRate.CostPerMinute != 1.5 {
		t.Errorf("BurnRate.CostPerMinute = %v, want 1.5", data.BurnRate.CostPerMinute)
	}
	if data.Budget.Daily.Spent != 3 {
		t.Errorf("Budget.Daily.Spent = %v, want 3", data.Budget.Daily.Spent)
	}
	if data.TopModel != "claude-sonnet-4" {
		t.Errorf("TopModel = %q, want claude-sonnet-4", data.TopModel)
	}
	if data.ActiveSessions != 1 || len(data.Sessions) != 1 {
		t.Errorf("sessions = %d active of %d, want 1 of 1", data.ActiveSessions, len(data.Sessions))
	}
	if len(data.Projects) != 1 || data.Projects[0].DisplayName != "/home/u/app" {
		t.Errorf("Projects = %+v", data.Projects)
	}
	if data.TrackedFiles != 1 {
		t.Errorf("TrackedFiles = %d, want 1", data.TrackedFiles)
	}
	if data.PricingSource != "embedded" {
		t.Errorf("PricingSource = %q, want embedded", data.PricingSource)
	}
}

func waitFor(t *testing.T, events <-chan ServiceEvent, match func(ServiceEvent) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(ev) {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestStart_ScansAndWatches(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg, project := testEnv(t)
	cfg.RefreshInterval = 20 * time.Millisecond
	log := filepath.Join(project, "s1.jsonl")
	appendLines(t, log, logLine("1", testNow, 1), logLine("2", testNow, 1))

	mgr, err := NewManager(cfg,
		WithClock(clock.NewFixed(testNow, time.UTC)),
		WithHTTPClient(offlineClient),
		WithNotifier(func(string, string) error { return nil }))
	if err != nil {
		t.Fatal(err)
	}
	events, _ := mgr.Subscribe()

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil, want error")
	}

	waitFor(t, events, func(ev ServiceEvent) bool {
		done, ok := ev.(ScanCompletedEvent)
		return ok && done.Entries == 2
	})

	appendLines(t, log, logLine("3", testNow, 1))
	waitFor(t, events, func(ev ServiceEvent) bool {
		upd, ok := ev.(UsageUpdatedEvent)
		return ok && upd.Data.Totals.Requests == 3
	})

	if err := mgr.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	if got := mgr.Aggregator().Totals().Requests; got != 3 {
		t.Errorf("Totals().Requests after Reset() = %d, want 3", got)
	}

	if err := mgr.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if _, ok := <-events; ok {
		// Drain anything buffered before the close.
		for range events {
		}
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := mgr.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close() error = %v, want ErrClosed", err)
	}
}

func TestManager_Subscription(t *testing.T) {
	cfg, _ := testEnv(t)
	mgr := newTestManager(t, cfg)

	ch, cmd := mgr.Subscribe()
	if ch == nil || cmd == nil {
		t.Fatal("Subscribe() returned nil")
	}

	mgr.broadcast(ErrorEvent{Service: "test", Error: errors.New("boom")})
	msg := cmd()
	ev, ok := msg.(ErrorEvent)
	if !ok || ev.Service != "test" {
		t.Errorf("cmd() = %#v, want the broadcast ErrorEvent", msg)
	}

	mgr.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe()")
	}
	// Broadcasting with no subscribers must not block.
	mgr.broadcast(ErrorEvent{Service: "test"})
}

func TestManager_SubscribeAfterClose(t *testing.T) {
	cfg, _ := testEnv(t)
	mgr := newTestManager(t, cfg)
	if err := mgr.Close(); err != nil {
		t.Fatal(err)
	}

	ch, _ := mgr.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("Subscribe() after Close() returned an open channel")
	}
	if err := mgr.RunOnce(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("RunOnce() after Close() error = %v, want ErrClosed", err)
	}
}

func TestDiscoverLogFiles(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"b/2.jsonl", "a/1.jsonl", "a/notes.txt", "a/deep/3.jsonl"} {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got := discoverLogFiles([]string{root, root, filepath.Join(root, "missing")})
	want := []string{
		filepath.Join(root, "a/1.jsonl"),
		filepath.Join(root, "a/deep/3.jsonl"),
		filepath.Join(root, "b/2.jsonl"),
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("discoverLogFiles() = %v, want %v", got, want)
	}
}

// TestManager_ConcurrentIngestion runs direct file processing from many
// goroutines while the startup scan, the watcher and the periodic jobs are
// live. Run with -race: every fold must go through the lane and the totals
// must agree with each breakdown afterwards.
func TestManager_ConcurrentIngestion(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const (
		workers        = 8
		filesPerWorker = 3
		linesPerFile   = 15
	)

	cfg, project := testEnv(t)
	cfg.RefreshInterval = 5 * time.Millisecond
	cfg.SaveInterval = 10 * time.Millisecond
	cfg.PricingRefreshInterval = time.Hour
	projects := []string{project, filepath.Join(filepath.Dir(project), "-home-u-api")}
	if err := os.MkdirAll(projects[1], 0o755); err != nil {
		t.Fatal(err)
	}
	modelNames := []string{"claude-sonnet-4", "claude-opus-4", "claude-3-5-haiku"}

	// Some lines exist before Start so the startup scan races the workers.
	var files []string
	for w := range workers {
		for f := range filesPerWorker {
			path := filepath.Join(projects[(w+f)%len(projects)], fmt.Sprintf("w%d-f%d.jsonl", w, f))
			appendLines(t, path, logLine(fmt.Sprintf("w%d-f%d-seed", w, f), testNow, 0.5))
			files = append(files, path)
		}
	}

	mgr := newTestManager(t, cfg)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range linesPerFile {
				for f := range filesPerWorker {
					path := files[w*filesPerWorker+f]
					line := logLine(fmt.Sprintf("w%d-f%d-%d", w, f, i), testNow.Add(-time.Duration(i)*2*time.Hour), 0.25)
					line = strings.Replace(line, "claude-sonnet-4", modelNames[i%len(modelNames)], 1)

					fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
					if err != nil {
						errs <- err
						return
					}
					_, err = fh.WriteString(line + "\n")
					if closeErr := fh.Close(); err == nil {
						err = closeErr
					}
					if err != nil {
						errs <- err
						return
					}
					if _, err := mgr.ProcessFile(path); err != nil {
						errs <- err
						return
					}
					_ = mgr.Dashboard()
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker failed: %v", err)
	}

	// Pick up anything the last writes left unread.
	for _, path := range files {
		if _, err := mgr.ProcessFile(path); err != nil {
			t.Fatal(err)
		}
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	agg := mgr.Aggregator()
	want := int64(len(files) * (linesPerFile + 1))
	totals := agg.Totals()
	if totals.Requests != want {
		t.Errorf("Totals().Requests = %d, want %d", totals.Requests, want)
	}

	var byModel, byDay, byProject int64
	for _, s := range agg.ModelUsage() {
		byModel += s.RequestCount
	}
	for _, b := range agg.DailyUsage() {
		byDay += b.Summary.RequestCount
	}
	for _, p := range agg.ProjectUsage() {
		byProject += p.RequestCount
	}
	for name, got := range map[string]int64{"model": byModel, "day": byDay, "project": byProject} {
		if got != totals.Requests {
			t.Errorf("requests by %s = %d, want %d", name, got, totals.Requests)
		}
	}
	if got := len(agg.ModelUsage()); got != len(modelNames) {
		t.Errorf("models = %d, want %d", got, len(modelNames))
	}
}
