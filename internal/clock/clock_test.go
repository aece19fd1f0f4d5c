package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixed(start, nil)

	if c.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", c.Location())
	}
	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", c.Now(), want)
	}

	later := start.Add(48 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), later)
	}
}

func TestFixed_Location(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	c := NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), loc)

	if got := c.Now().Location(); got != loc {
		t.Errorf("Now().Location() = %v, want %v", got, loc)
	}
	if c.Now().Hour() != 9 {
		t.Errorf("Now().Hour() = %d, want 9", c.Now().Hour())
	}
}

func TestSystem(t *testing.T) {
	var c Clock = System{}
	if c.Location() != time.Local {
		t.Error("System.Location() should be time.Local")
	}
	if d := time.Since(c.Now()); d < 0 || d > time.Minute {
		t.Errorf("System.Now() drifted by %v", d)
	}
}
