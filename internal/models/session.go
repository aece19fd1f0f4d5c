package models

import "time"

// SessionStatus is the decay state of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionIdle   SessionStatus = "idle"
	SessionDead   SessionStatus = "dead"
)

const (
	// ActiveSessionWindow is how recent the last activity must be for a session to be active.
	ActiveSessionWindow = 5 * time.Minute
	// DefaultSessionDuration is the idle threshold after which a session is dead.
	DefaultSessionDuration = 5 * time.Hour
)

// SessionInfo is the per-session rollup.
type SessionInfo struct {
	ID           string        `json:"id"`
	Status       SessionStatus `json:"status"`
	LastActivity time.Time     `json:"lastActivity"`
	ProjectPath  string        `json:"projectPath,omitempty"`
	TotalTokens  int64         `json:"totalTokens"`
	TotalCostUSD float64       `json:"totalCostUSD"`
	ModelName    string        `json:"modelName,omitempty"`
	EntryCount   int64         `json:"entryCount"`
}

// StatusAt computes the status for lastActivity as seen from now.
func StatusAt(lastActivity, now time.Time, sessionDuration time.Duration) SessionStatus {
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}
	elapsed := now.Sub(lastActivity)
	switch {
	case elapsed < ActiveSessionWindow:
		return SessionActive
	case elapsed < sessionDuration:
		return SessionIdle
	default:
		return SessionDead
	}
}

// UpdateStatus recomputes Status from LastActivity.
func (s *SessionInfo) UpdateStatus(now time.Time, sessionDuration time.Duration) {
	s.Status = StatusAt(s.LastActivity, now, sessionDuration)
}
