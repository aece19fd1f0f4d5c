package models

import (
	"testing"
	"time"
)

func TestStatusAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		duration time.Duration
		want     SessionStatus
	}{
		{"JustNow", 0, 5 * time.Hour, SessionActive},
		{"FourMinutes", 4 * time.Minute, 5 * time.Hour, SessionActive},
		{"FiveMinutes", 5 * time.Minute, 5 * time.Hour, SessionIdle},
		{"FourHours", 4 * time.Hour, 5 * time.Hour, SessionIdle},
		{"FiveHours", 5 * time.Hour, 5 * time.Hour, SessionDead},
		{"CustomDuration", 90 * time.Minute, time.Hour, SessionDead},
		{"DefaultDuration", 4 * time.Hour, 0, SessionIdle},
		{"FutureActivity", -time.Minute, 5 * time.Hour, SessionActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusAt(now.Add(-tt.elapsed), now, tt.duration); got != tt.want {
				t.Errorf("StatusAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionInfo_UpdateStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := SessionInfo{ID: "s", LastActivity: now.Add(-6 * time.Hour), Status: SessionActive}
	s.UpdateStatus(now, DefaultSessionDuration)
	if s.Status != SessionDead {
		t.Errorf("Status = %v, want dead", s.Status)
	}
}
