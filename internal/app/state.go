// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sync"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/services"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial   bool
	Dashboard bool
	History   bool
	Reset     bool
}

// State is shared between the root model and every tab. The Bubble Tea loop
// writes it, while commands running on other goroutines may read it.
type State struct {
	mu sync.RWMutex

	Dashboard   models.DashboardData
	Diagnostics services.Diagnostics
	Progress    models.ScanProgress
	LastScan    *services.ScanCompletedEvent
	LastAlert   *services.BudgetAlertEvent

	SelectedProjectIndex int

	Loading LoadingState

	LastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState returns a state that is still waiting for its first dashboard.
func NewState() *State {
	return &State{
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "dashboard":
		s.Loading.Dashboard = loading
	case "history":
		s.Loading.History = loading
	case "reset":
		s.Loading.Reset = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial ||
		s.Loading.Dashboard ||
		s.Loading.History ||
		s.Loading.Reset
}

// IsInitialLoading returns true if the first dashboard has not arrived yet.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// GetLoadingResources returns a list of currently loading resources.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	if s.Loading.Initial {
		resources = append(resources, "initial")
	}
	if s.Loading.Dashboard {
		resources = append(resources, "dashboard")
	}
	if s.Loading.History {
		resources = append(resources, "history")
	}
	if s.Loading.Reset {
		resources = append(resources, "reset")
	}
	return resources
}

// SetDashboard replaces the dashboard read model and clamps the project selection.
func (s *State) SetDashboard(data models.DashboardData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Dashboard = data
	s.Progress = data.Progress
	s.LastUpdated = time.Now()
	s.Loading.Initial = false
	s.Loading.Dashboard = false
	s.clampSelectionLocked()
}

// GetDashboard returns the latest dashboard read model.
func (s *State) GetDashboard() models.DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Dashboard
}

// GetProjects returns the project rollups of the latest dashboard.
func (s *State) GetProjects() []models.ProjectInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]models.ProjectInfo, len(s.Dashboard.Projects))
	copy(projects, s.Dashboard.Projects)
	return projects
}

// SetDiagnostics stores the pipeline counters shown on the info tab.
func (s *State) SetDiagnostics(d services.Diagnostics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Diagnostics = d
}

// GetDiagnostics returns the last stored pipeline counters.
func (s *State) GetDiagnostics() services.Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Diagnostics
}

// SetProgress records startup scan progress.
func (s *State) SetProgress(p models.ScanProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Progress = p
}

// GetProgress returns the startup scan progress.
func (s *State) GetProgress() models.ScanProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Progress
}

// SetLastScan records a completed scan and marks progress done.
func (s *State) SetLastScan(e services.ScanCompletedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastScan = &e
	s.Progress.Done = true
}

// GetLastScan returns the most recent completed scan, or nil.
func (s *State) GetLastScan() *services.ScanCompletedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastScan
}

// SetLastAlert records the most recent budget alert.
func (s *State) SetLastAlert(e services.BudgetAlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAlert = &e
}

// GetLastAlert returns the most recent budget alert, or nil.
func (s *State) GetLastAlert() *services.BudgetAlertEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastAlert
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	notification := Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	}

	s.notifications = append(s.notifications, notification)

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}

	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}

// GetSelectedProjectIndex returns the currently selected project row.
func (s *State) GetSelectedProjectIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedProjectIndex
}

// SetSelectedProjectIndex updates the selected project row, clamped to the list.
func (s *State) SetSelectedProjectIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedProjectIndex = idx
	s.clampSelectionLocked()
}

func (s *State) clampSelectionLocked() {
	n := len(s.Dashboard.Projects)
	switch {
	case n == 0 || s.SelectedProjectIndex < 0:
		s.SelectedProjectIndex = 0
	case s.SelectedProjectIndex >= n:
		s.SelectedProjectIndex = n - 1
	}
}
