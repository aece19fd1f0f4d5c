// Package dashboard provides the main dashboard tab: today's usage, burn
// rate, budgets, model mix and sessions.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AgentsMesh/CCMonitor/internal/app"
	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
)

const (
	animationInterval = 40 * time.Millisecond
	animationDuration = 1500 * time.Millisecond

	animDaily   = "daily"
	animMonthly = "monthly"
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(animationInterval, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

type keyMap struct {
	ToggleChart key.Binding
	Up          key.Binding
	Down        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleChart: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "minute/hourly chart"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// AnimationState eases a budget bar from its previous fill to a new target.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	budgetBar      components.BudgetBar
	periodBar      components.PeriodBar
	width          int
	height         int
	showHourly     bool
	animationFrame int
	now            func() time.Time
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		spinner:    components.NewSpinner("Discovering usage logs..."),
		budgetBar:  components.NewBudgetBar(),
		periodBar:  components.NewPeriodBar(),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
		now:        time.Now,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(time.Time(msg)))

	case app.DashboardLoadedMsg, app.DashboardUpdatedMsg, app.RefreshMsg:
		if m.syncAnimationTargets(m.now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case app.ScanProgressMsg:
		m.spinner.SetScanProgress(msg.Progress)

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(now time.Time) tea.Cmd {
	m.animationFrame++

	m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if m.animating() || m.state.IsInitialLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.ToggleChart) {
		m.showHourly = !m.showHourly
		return nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points each budget bar at the current spend and
// reports whether any bar still has to move.
func (m *Model) syncAnimationTargets(now time.Time) bool {
	budget := m.state.GetDashboard().Budget
	animating := false
	if budget.Daily.Budget > 0 && m.updateAnimationState(animDaily, budget.Daily.PercentUsed, now) {
		animating = true
	}
	if budget.Monthly.Budget > 0 && m.updateAnimationState(animMonthly, budget.Monthly.PercentUsed, now) {
		animating = true
	}
	return animating
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	target = min(target, 100)

	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime)
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := float64(elapsed) / float64(animationDuration)
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
	}
}

func (m *Model) animating() bool {
	for _, state := range m.animations {
		if state.CurrentPercent != state.TargetPercent {
			return true
		}
	}
	return false
}

// displayPercent is the animated fill for a bar, or the real value when no
// animation has started.
func (m *Model) displayPercent(animKey string, actual float64) float64 {
	if anim, ok := m.animations[animKey]; ok && actual <= 100 {
		return anim.CurrentPercent
	}
	return actual
}

func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.ToggleChart, m.keys.Up, m.keys.Down}
}

func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleChart},
		{m.keys.Up, m.keys.Down},
	}
}
