package models

import (
	"maps"
	"time"
)

// TokenInfo is the unit of aggregation input.
type TokenInfo struct {
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

// Total returns the sum of all four counters.
func (t TokenInfo) Total() int64 {
	return t.InputTokens + t.OutputTokens + t.CacheCreationTokens + t.CacheReadTokens
}

// UsageSummary accumulates token counts, cost and request counts.
// The zero value is the identity element.
type UsageSummary struct {
	InputTokens         int64            `json:"inputTokens"`
	OutputTokens        int64            `json:"outputTokens"`
	CacheCreationTokens int64            `json:"cacheCreationTokens"`
	CacheReadTokens     int64            `json:"cacheReadTokens"`
	TotalCostUSD        float64          `json:"totalCostUSD"`
	RequestCount        int64            `json:"requestCount"`
	ModelDistribution   map[string]int64 `json:"modelDistribution"`
}

// Add folds one request into the summary.
func (s *UsageSummary) Add(tokens TokenInfo, cost float64, model string) {
	s.InputTokens += tokens.InputTokens
	s.OutputTokens += tokens.OutputTokens
	s.CacheCreationTokens += tokens.CacheCreationTokens
	s.CacheReadTokens += tokens.CacheReadTokens
	s.TotalCostUSD += cost
	s.RequestCount++
	if model != "" {
		if s.ModelDistribution == nil {
			s.ModelDistribution = make(map[string]int64)
		}
		s.ModelDistribution[model]++
	}
}

// TotalTokens returns the sum of all token counters.
func (s UsageSummary) TotalTokens() int64 {
	return s.InputTokens + s.OutputTokens + s.CacheCreationTokens + s.CacheReadTokens
}

// Clone returns a deep copy.
func (s UsageSummary) Clone() UsageSummary {
	c := s
	if s.ModelDistribution != nil {
		c.ModelDistribution = maps.Clone(s.ModelDistribution)
	}
	return c
}

// IsZero reports whether nothing has been folded into the summary.
func (s UsageSummary) IsZero() bool {
	return s.RequestCount == 0 && s.TotalTokens() == 0 && s.TotalCostUSD == 0
}

// Granularity is the width of a time bucket.
type Granularity int

const (
	// GranularityMinute buckets by calendar minute.
	GranularityMinute Granularity = iota
	// GranularityHour buckets by calendar hour.
	GranularityHour
	// GranularityDay buckets by calendar day.
	GranularityDay
)

// String returns the granularity name.
func (g Granularity) String() string {
	switch g {
	case GranularityMinute:
		return "minute"
	case GranularityHour:
		return "hour"
	case GranularityDay:
		return "day"
	default:
		return "unknown"
	}
}

// ParseGranularity maps a granularity name back to its value.
func ParseGranularity(s string) (Granularity, bool) {
	switch s {
	case "minute":
		return GranularityMinute, true
	case "hour":
		return GranularityHour, true
	case "day":
		return GranularityDay, true
	default:
		return 0, false
	}
}

// DateBucket is a truncated instant plus its granularity.
type DateBucket struct {
	Start       time.Time
	Granularity Granularity
}

// NewDateBucket truncates t to the start of its minute, hour or day in loc.
func NewDateBucket(t time.Time, g Granularity, loc *time.Location) DateBucket {
	return DateBucket{Start: Truncate(t, g, loc), Granularity: g}
}

// Truncate snaps t down to the start of its minute, hour or day in loc's calendar.
func Truncate(t time.Time, g Granularity, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	y, mo, d := t.Date()
	switch g {
	case GranularityMinute:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, loc)
	case GranularityHour:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
	default:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	}
}

// Key identifies the bucket within its granularity.
func (b DateBucket) Key() int64 {
	return b.Start.Unix()
}

// End returns the exclusive end of the bucket.
func (b DateBucket) End() time.Time {
	switch b.Granularity {
	case GranularityMinute:
		return b.Start.Add(time.Minute)
	case GranularityHour:
		return b.Start.Add(time.Hour)
	default:
		return b.Start.AddDate(0, 0, 1)
	}
}

// Before orders buckets by their truncated instant.
func (b DateBucket) Before(other DateBucket) bool {
	return b.Start.Before(other.Start)
}

// DayKey formats a day bucket key as used by the snapshot file.
func DayKey(t time.Time, loc *time.Location) string {
	return Truncate(t, GranularityDay, loc).Format(DayKeyLayout)
}

// DayKeyLayout is the calendar-date layout of snapshot day keys.
const DayKeyLayout = "2006-01-02"

// BucketUsage pairs a bucket with its summary, for ordered read models.
type BucketUsage struct {
	Bucket  DateBucket
	Summary UsageSummary
}
