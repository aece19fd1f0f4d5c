package aggregator

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/AgentsMesh/CCMonitor/internal/clock"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

const (
	appLog   = "/home/u/.claude/projects/-home-u-app/s1.jsonl"
	otherLog = "/home/u/.claude/projects/-home-u-other/s2.jsonl"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAggregator(t *testing.T) (*Aggregator, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(now, time.UTC)
	return New(clk, 5*time.Hour), clk
}

type entryOpt func(*models.UsageEntry)

func withModel(m string) entryOpt   { return func(e *models.UsageEntry) { e.Message.Model = m } }
func withSession(s string) entryOpt { return func(e *models.UsageEntry) { e.SessionID = s } }
func withoutIDs() entryOpt {
	return func(e *models.UsageEntry) { e.Message.ID, e.RequestID = "", "" }
}

func newEntry(id string, at time.Time, input, output int64, opts ...entryOpt) models.UsageEntry {
	e := models.UsageEntry{
		Timestamp: at.Format(time.RFC3339Nano),
		RequestID: "req_" + id,
		Message: models.Message{
			ID:    "msg_" + id,
			Model: "claude-sonnet-4",
			Usage: &models.Usage{InputTokens: input, OutputTokens: output},
		},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func TestProcess_AllDimensions(t *testing.T) {
	a, _ := newTestAggregator(t)

	entries := []models.UsageEntry{
		newEntry("1", now.Add(-2*time.Minute), 100, 50, withSession("s1")),
		newEntry("2", now.Add(-time.Minute), 200, 100, withSession("s1"), withModel("claude-opus-4")),
	}
	entries[1].Message.Usage.CacheReadInputTokens = 10

	if got := a.Process(entries, []float64{0.5, 0.25}, appLog); got != 2 {
		t.Fatalf("Process() = %d, want 2", got)
	}

	if diff := cmp.Diff(models.Totals{CostUSD: 0.75, Tokens: 460, Requests: 2}, a.Totals()); diff != "" {
		t.Errorf("Totals() mismatch (-want +got):\n%s", diff)
	}

	today := a.Today()
	if today.RequestCount != 2 || today.TotalTokens() != 460 || today.CacheReadTokens != 10 {
		t.Errorf("Today() = %+v", today)
	}

	if n := len(a.MinuteUsage()); n != 2 {
		t.Errorf("MinuteUsage() has %d buckets, want 2", n)
	}
	if n := len(a.HourlyUsage()); n != 1 {
		t.Errorf("HourlyUsage() has %d buckets, want 1", n)
	}
	daily := a.DailyUsage()
	if len(daily) != 1 || daily[0].Summary.RequestCount != 2 {
		t.Fatalf("DailyUsage() = %+v", daily)
	}
	if want := map[string]int64{"claude-sonnet-4": 1, "claude-opus-4": 1}; !cmp.Equal(want, daily[0].Summary.ModelDistribution) {
		t.Errorf("ModelDistribution = %v, want %v", daily[0].Summary.ModelDistribution, want)
	}

	modelUsage := a.ModelUsage()
	if modelUsage["claude-opus-4"].TotalCostUSD != 0.25 || modelUsage["claude-sonnet-4"].RequestCount != 1 {
		t.Errorf("ModelUsage() = %+v", modelUsage)
	}

	project, ok := a.ProjectUsage()["-home-u-app"]
	if !ok {
		t.Fatal("ProjectUsage() missing -home-u-app")
	}
	if project.RequestCount != 2 || project.TotalTokens != 460 || project.DisplayName != "/home/u/app" {
		t.Errorf("project = %+v", project)
	}
	if !project.LastActivity.Equal(now.Add(-time.Minute)) {
		t.Errorf("project.LastActivity = %v", project.LastActivity)
	}
	if diff := cmp.Diff([]string{"claude-opus-4", "claude-sonnet-4"}, project.Models); diff != "" {
		t.Errorf("project.Models mismatch (-want +got):\n%s", diff)
	}

	sessions := a.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("Sessions() = %+v", sessions)
	}
	s := sessions[0]
	if s.EntryCount != 2 || s.ModelName != "claude-opus-4" || s.Status != models.SessionActive || s.ProjectPath != "-home-u-app" {
		t.Errorf("session = %+v", s)
	}
	if a.ActiveSessionCount() != 1 {
		t.Errorf("ActiveSessionCount() = %d, want 1", a.ActiveSessionCount())
	}
}

func TestProcess_DedupIsIdempotent(t *testing.T) {
	once, _ := newTestAggregator(t)
	twice, _ := newTestAggregator(t)

	e := newEntry("1", now.Add(-time.Minute), 100, 50, withSession("s1"))
	once.Process([]models.UsageEntry{e}, []float64{1}, appLog)
	twice.Process([]models.UsageEntry{e}, []float64{1}, appLog)
	twice.Process([]models.UsageEntry{e}, []float64{1}, otherLog)

	if twice.Totals().Requests != 1 {
		t.Errorf("Totals().Requests = %d, want 1", twice.Totals().Requests)
	}
	if twice.Stats().Duplicates != 1 {
		t.Errorf("Stats().Duplicates = %d, want 1", twice.Stats().Duplicates)
	}
	if diff := cmp.Diff(once.Export(), twice.Export()); diff != "" {
		t.Errorf("state mismatch after duplicate (-once +twice):\n%s", diff)
	}
}

func TestProcess_EntriesWithoutHashAreNotDeduplicated(t *testing.T) {
	a, _ := newTestAggregator(t)
	e := newEntry("1", now, 1, 1, withoutIDs())

	a.Process([]models.UsageEntry{e, e}, []float64{0, 0}, appLog)

	if a.Totals().Requests != 2 {
		t.Errorf("Totals().Requests = %d, want 2", a.Totals().Requests)
	}
	if a.SeenHashCount() != 0 {
		t.Errorf("SeenHashCount() = %d, want 0", a.SeenHashCount())
	}
}

func TestProcess_Additivity(t *testing.T) {
	entries := []models.UsageEntry{
		newEntry("1", now.Add(-3*time.Hour), 100, 10, withSession("a")),
		newEntry("2", now.Add(-2*time.Minute), 200, 20, withModel("claude-opus-4")),
		newEntry("3", now.Add(-26*time.Hour), 300, 30, withSession("b")),
		newEntry("4", now.Add(-time.Minute), 400, 40, withSession("a")),
	}
	costs := []float64{0.5, 0.25, 1.5, 2}

	combined, _ := newTestAggregator(t)
	combined.Process(entries, costs, appLog)

	forward, _ := newTestAggregator(t)
	forward.Process(entries[:2], costs[:2], appLog)
	forward.Process(entries[2:], costs[2:], appLog)

	backward, _ := newTestAggregator(t)
	backward.Process(entries[2:], costs[2:], appLog)
	backward.Process(entries[:2], costs[:2], appLog)

	want := combined.Export()
	for name, a := range map[string]*Aggregator{"forward": forward, "backward": backward} {
		if diff := cmp.Diff(want, a.Export(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("%s state mismatch (-combined +got):\n%s", name, diff)
		}
	}

	var daily, byModel int64
	for _, b := range want.Daily {
		daily += b.Summary.RequestCount
	}
	for _, s := range want.Models {
		byModel += s.RequestCount
	}
	if daily != want.TotalRequests || byModel != want.TotalRequests {
		t.Errorf("daily=%d models=%d, want both %d", daily, byModel, want.TotalRequests)
	}
}

func TestProcess_LengthMismatchIsNoOp(t *testing.T) {
	a, _ := newTestAggregator(t)
	entries := []models.UsageEntry{newEntry("1", now, 1, 1), newEntry("2", now, 1, 1)}

	if got := a.Process(entries, []float64{1}, appLog); got != 0 {
		t.Errorf("Process() = %d, want 0", got)
	}
	if a.Totals() != (models.Totals{}) || a.SeenHashCount() != 0 {
		t.Errorf("mismatched batch changed state: %+v", a.Totals())
	}
	if a.Stats().RejectedBatches != 1 {
		t.Errorf("Stats().RejectedBatches = %d, want 1", a.Stats().RejectedBatches)
	}
}

func TestProcess_Rejections(t *testing.T) {
	a, _ := newTestAggregator(t)

	badTime := newEntry("1", now, 1, 1)
	badTime.Timestamp = "not a time"
	noUsage := newEntry("2", now, 1, 1)
	noUsage.Message.Usage = nil

	if got := a.Process([]models.UsageEntry{badTime, noUsage}, []float64{1, 1}, appLog); got != 0 {
		t.Errorf("Process() = %d, want 0", got)
	}
	if a.Totals() != (models.Totals{}) {
		t.Errorf("rejected entries touched totals: %+v", a.Totals())
	}
	stats := a.Stats()
	if stats.BadTimestamps != 1 || stats.MissingUsage != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	// The hash is recorded before validation.
	if a.SeenHashCount() != 2 {
		t.Errorf("SeenHashCount() = %d, want 2", a.SeenHashCount())
	}
}

func TestProcess_UnknownModelAndProject(t *testing.T) {
	a, _ := newTestAggregator(t)
	e := newEntry("1", now, 1, 1, withModel(""))

	a.Process([]models.UsageEntry{e}, []float64{0}, "/tmp/loose.jsonl")

	if _, ok := a.ModelUsage()[models.UnknownModel]; !ok {
		t.Error("entry without model should count under unknown")
	}
	if _, ok := a.ProjectUsage()[models.UnknownProject]; !ok {
		t.Error("file outside projects should count under unknown")
	}
}

func TestToday_OnlyCurrentDay(t *testing.T) {
	a, clk := newTestAggregator(t)

	a.Process([]models.UsageEntry{
		newEntry("1", now.Add(-24*time.Hour), 100, 0),
		newEntry("2", now.Add(-time.Hour), 10, 0),
	}, []float64{1, 2}, appLog)

	if got := a.Today(); got.RequestCount != 1 || got.TotalCostUSD != 2 {
		t.Errorf("Today() = %+v, want only the entry from today", got)
	}

	// Next day: today starts empty and only collects the new day's entries.
	clk.Advance(24 * time.Hour)
	if got := a.Today(); !got.IsZero() {
		t.Errorf("Today() after midnight = %+v, want empty", got)
	}

	a.Process([]models.UsageEntry{newEntry("3", clk.Now(), 5, 0)}, []float64{3}, appLog)
	if got := a.Today(); got.RequestCount != 1 || got.TotalCostUSD != 3 {
		t.Errorf("Today() = %+v, want only the new day's entry", got)
	}
}

func TestPrune(t *testing.T) {
	a, clk := newTestAggregator(t)

	a.Process([]models.UsageEntry{
		newEntry("fresh", now.Add(-59*time.Minute), 1, 0, withSession("live")),
		newEntry("old-minute", now.Add(-61*time.Minute), 1, 0),
		newEntry("old-hour", now.Add(-8*24*time.Hour), 1, 0),
		newEntry("old-day", now.Add(-31*24*time.Hour), 1, 0, withSession("gone")),
	}, []float64{1, 1, 1, 1}, appLog)

	a.Prune()
	a.Prune()

	if got := len(a.MinuteUsage()); got != 1 {
		t.Errorf("MinuteUsage() has %d buckets, want 1", got)
	}
	// 10:59 and 11:01 land in different hour buckets.
	if got := len(a.HourlyUsage()); got != 2 {
		t.Errorf("HourlyUsage() has %d buckets, want 2", got)
	}
	if got := len(a.DailyUsage()); got != 2 {
		t.Errorf("DailyUsage() has %d buckets, want 2", got)
	}

	sessions := a.Sessions()
	if len(sessions) != 1 || sessions[0].ID != "live" {
		t.Errorf("Sessions() = %+v, want only live", sessions)
	}
	if sessions[0].Status != models.SessionIdle {
		t.Errorf("live session status = %v, want idle", sessions[0].Status)
	}

	// Totals and other dimensions are never pruned.
	if a.Totals().Requests != 4 || len(a.ModelUsage()) != 1 {
		t.Errorf("Prune() touched totals: %+v", a.Totals())
	}

	clk.Advance(5 * time.Hour)
	a.Prune()
	if len(a.Sessions()) != 0 {
		t.Error("session idle past the session duration should be evicted")
	}
	if a.Stats().EvictedSessions != 2 {
		t.Errorf("Stats().EvictedSessions = %d, want 2", a.Stats().EvictedSessions)
	}
}

func TestSession_Revival(t *testing.T) {
	a, _ := newTestAggregator(t)

	a.Process([]models.UsageEntry{newEntry("1", now.Add(-6*time.Hour), 1, 0, withSession("s"))}, []float64{1}, appLog)
	if got := a.Sessions()[0].Status; got != models.SessionDead {
		t.Fatalf("status = %v, want dead", got)
	}

	a.Prune()
	if len(a.Sessions()) != 0 {
		t.Fatal("dead session should be evicted")
	}

	a.Process([]models.UsageEntry{newEntry("2", now, 1, 0, withSession("s"))}, []float64{1}, appLog)
	sessions := a.Sessions()
	if len(sessions) != 1 || sessions[0].Status != models.SessionActive || sessions[0].EntryCount != 1 {
		t.Errorf("Sessions() = %+v, want revived active session", sessions)
	}
}

func TestReset(t *testing.T) {
	a, _ := newTestAggregator(t)
	e := newEntry("1", now, 1, 1, withSession("s"))
	a.Process([]models.UsageEntry{e}, []float64{1}, appLog)

	a.Reset()

	st := a.Export()
	if st.TotalRequests != 0 || len(st.Daily) != 0 || len(st.Models) != 0 ||
		len(st.Projects) != 0 || len(st.Sessions) != 0 || len(st.SeenHashes) != 0 {
		t.Errorf("Export() after Reset = %+v", st)
	}
	if !a.Today().IsZero() {
		t.Error("Today() not cleared")
	}

	// The same entry counts again after a reset.
	a.Process([]models.UsageEntry{e}, []float64{1}, appLog)
	if a.Totals().Requests != 1 {
		t.Errorf("Totals().Requests = %d, want 1", a.Totals().Requests)
	}
}

func TestRestoreSeenHashes(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.RestoreSeenHashes([]string{"msg_1:req_1"})

	a.Process([]models.UsageEntry{newEntry("1", now, 1, 1)}, []float64{1}, appLog)
	if a.Totals().Requests != 0 {
		t.Error("entry with a restored hash should be skipped")
	}
}

func TestExportRestore(t *testing.T) {
	src, _ := newTestAggregator(t)
	src.Process([]models.UsageEntry{
		newEntry("1", now.Add(-time.Minute), 100, 10, withSession("s1")),
		newEntry("2", now.Add(-25*time.Hour), 200, 20, withModel("claude-opus-4")),
	}, []float64{0.5, 1.5}, appLog)

	dst, _ := newTestAggregator(t)
	dst.Restore(src.Export())

	if diff := cmp.Diff(src.Export(), dst.Export()); diff != "" {
		t.Errorf("Restore() mismatch (-src +dst):\n%s", diff)
	}
	if diff := cmp.Diff(src.Today(), dst.Today()); diff != "" {
		t.Errorf("Today() mismatch (-src +dst):\n%s", diff)
	}

	later, clk := newTestAggregator(t)
	clk.Advance(48 * time.Hour)
	later.Restore(src.Export())
	if !later.Today().IsZero() {
		t.Errorf("Today() restored on a later day = %+v, want empty", later.Today())
	}
	if later.Totals() != src.Totals() {
		t.Errorf("Totals() = %+v, want %+v", later.Totals(), src.Totals())
	}
}
