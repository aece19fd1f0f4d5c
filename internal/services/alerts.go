package services

import (
	"fmt"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// Alert levels carried by BudgetAlertEvent.
const (
	AlertWarning  = "warning"
	AlertExceeded = "exceeded"
)

// checkBudget notifies once per period and level when spend reaches the
// warning or critical threshold.
func (m *Manager) checkBudget(status models.BudgetStatus, now time.Time) {
	if !m.cfg.BudgetAlerts {
		return
	}
	m.checkProjection(status.Daily, now.Format("2006-01-02"))
	m.checkProjection(status.Monthly, now.Format("2006-01"))
}

func (m *Manager) checkProjection(p models.BudgetProjection, period string) {
	var level string
	switch p.Status {
	case models.ProjectionCritical:
		level = AlertExceeded
	case models.ProjectionWarning:
		level = AlertWarning
	default:
		return
	}

	key := p.Period + "/" + level
	m.mu.Lock()
	if m.alerted[key] == period {
		m.mu.Unlock()
		return
	}
	m.alerted[key] = period
	if level == AlertExceeded {
		// Crossing straight past the warning threshold should not warn afterwards.
		m.alerted[p.Period+"/"+AlertWarning] = period
	}
	m.mu.Unlock()

	title, body := alertText(p, level)
	logger.Info("Budget alert", "period", p.Period, "level", level, "spent", p.Spent, "budget", p.Budget)
	if err := m.notify(title, body); err != nil {
		logger.Debug("Desktop notification failed", "error", err)
	}
	m.broadcast(BudgetAlertEvent{Projection: p, Level: level})
}

func alertText(p models.BudgetProjection, level string) (title, body string) {
	name := "Daily"
	if p.Period == "monthly" {
		name = "Monthly"
	}
	body = fmt.Sprintf("$%.2f of $%.2f spent", p.Spent, p.Budget)
	if level == AlertExceeded {
		return name + " budget exceeded", body
	}
	return fmt.Sprintf("%s budget at %.0f%%", name, p.PercentUsed), body
}
