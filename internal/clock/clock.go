// Package clock provides the injectable time source and calendar used for bucketing.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant and the calendar location used for
// minute/hour/day truncation.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the wall clock in the process's local time zone.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time { return time.Now() }

// Location returns time.Local.
func (System) Location() *time.Location { return time.Local }

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewFixed returns a clock frozen at now, using loc as its calendar. A nil loc means UTC.
func NewFixed(now time.Time, loc *time.Location) *Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return &Fixed{now: now.In(loc), loc: loc}
}

// Now returns the frozen instant.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Location returns the configured calendar location.
func (f *Fixed) Location() *time.Location { return f.loc }

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.In(f.loc)
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
