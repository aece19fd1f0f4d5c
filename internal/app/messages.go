package app

import (
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/services"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// DashboardLoadedMsg carries a dashboard read model pulled from the manager.
type DashboardLoadedMsg struct {
	Data        models.DashboardData
	Diagnostics services.Diagnostics
}

// DiagnosticsLoadedMsg carries fresh pipeline counters.
type DiagnosticsLoadedMsg struct {
	Diagnostics services.Diagnostics
}

// DashboardUpdatedMsg is forwarded to tabs whenever the dashboard in State changes.
type DashboardUpdatedMsg struct {
	UpdatedAt time.Time
}

// HistoryRequestMsg asks the root model to load usage history for a range.
type HistoryRequestMsg struct {
	Range models.TimeRange
}

// HistoryLoadedMsg carries usage history for one range.
type HistoryLoadedMsg struct {
	Range   models.TimeRange
	History *models.UsageHistory
	Error   error
}

// ScanProgressMsg is forwarded to tabs while the startup scan runs.
type ScanProgressMsg struct {
	Progress models.ScanProgress
}

// ScanCompletedMsg is forwarded to tabs when a full scan finishes.
type ScanCompletedMsg struct {
	Event services.ScanCompletedEvent
}

// BudgetAlertMsg is forwarded to tabs when a budget threshold is crossed.
type BudgetAlertMsg struct {
	Event services.BudgetAlertEvent
}

// ResetRequestMsg asks the root model to clear all aggregated state.
type ResetRequestMsg struct{}

// ResetResultMsg contains the result of a reset.
type ResetResultMsg struct {
	Success bool
	Error   error
}

// SaveResultMsg contains the result of a manual save.
type SaveResultMsg struct {
	Success bool
	Error   error
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // "all", "dashboard", "history"
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// QuitMsg requests the application to quit.
type QuitMsg struct{}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// SelectedProjectChangedMsg signals that the selected project row changed.
type SelectedProjectChangedMsg struct {
	Index       int
	ProjectPath string
}
