// Package history provides the history tab: persisted usage over a
// selectable time range.
package history

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AgentsMesh/CCMonitor/internal/app"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

type keyMap struct {
	ToggleRange key.Binding
	Up          key.Binding
	Down        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
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

// Model represents the history tab state.
type Model struct {
	state    *app.State
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	timeRange   models.TimeRange
	history     *models.UsageHistory
	loading     bool
	lastRefresh time.Time
	errorMsg    string
}

// New creates a new history model. The first range shown is the last 24
// hours, which the app loads at startup.
func New(state *app.State) *Model {
	return &Model{
		state:     state,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.TimeRange24Hours,
		loading:   true,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// requestCmd asks the app to load the current range.
func (m *Model) requestCmd() tea.Cmd {
	m.loading = true
	r := m.timeRange
	return func() tea.Msg {
		return app.HistoryRequestMsg{Range: r}
	}
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.HistoryLoadedMsg:
		if msg.Range != m.timeRange {
			return m, nil
		}
		m.loading = false
		if msg.Error != nil {
			m.errorMsg = msg.Error.Error()
			return m, nil
		}
		m.errorMsg = ""
		m.history = msg.History
		m.lastRefresh = time.Now()

	case app.RefreshMsg, app.DashboardLoadedMsg:
		if !m.loading {
			return m, m.requestCmd()
		}

	case app.ResetResultMsg:
		if msg.Success {
			m.history = nil
			return m, m.requestCmd()
		}

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.ToggleRange) {
		m.timeRange = m.timeRange.Next()
		m.viewport.GotoTop()
		return m.requestCmd()
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.ToggleRange, m.keys.Up, m.keys.Down}
}

func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange},
		{m.keys.Up, m.keys.Down},
	}
}
