// Package projects provides the per-project usage table.
package projects

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AgentsMesh/CCMonitor/internal/app"
	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/ui/components"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

type keyMap struct {
	Filter      key.Binding
	ClearFilter key.Binding
	Apply       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		ClearFilter: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Apply: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply filter"),
		),
	}
}

// Model represents the projects tab state.
type Model struct {
	state     *app.State
	table     table.Model
	filter    textinput.Model
	filtering bool
	keys      keyMap
	spinner   components.LoadingSpinner
	width     int
	height    int

	// visible holds the state index of each table row, in row order.
	visible  []int
	selected string
	now      func() time.Time
}

// New creates a new projects model.
func New(state *app.State) *Model {
	filter := textinput.New()
	filter.Placeholder = "project name..."
	filter.Prompt = "/ "
	filter.CharLimit = 100
	filter.Width = 40

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtle).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Primary)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.BgAccent).
		Bold(true)
	t.SetStyles(s)

	return &Model{
		state:   state,
		table:   t,
		filter:  filter,
		keys:    defaultKeyMap(),
		spinner: components.NewSpinner("Loading projects..."),
		now:     time.Now,
	}
}

func columns(width int) []table.Column {
	nameWidth := min(max(width-70, 20), 60)
	return []table.Column{
		{Title: "Project", Width: nameWidth},
		{Title: "Cost", Width: 11},
		{Title: "Tokens", Width: 9},
		{Title: "Requests", Width: 9},
		{Title: "Active", Width: 7},
		{Title: "Last activity", Width: 16},
	}
}

func (m *Model) Init() tea.Cmd {
	m.refreshRows()
	return nil
}

// Update handles messages for the projects tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			return m, m.updateFilter(msg)
		}
		return m, m.handleKeyMsg(msg)

	case app.DashboardLoadedMsg, app.DashboardUpdatedMsg, app.ResetResultMsg:
		m.refreshRows()
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.filter.Focus()
		return textinput.Blink

	case key.Matches(msg, m.keys.ClearFilter):
		if m.filter.Value() == "" {
			return nil
		}
		m.filter.SetValue("")
		m.refreshRows()
		return m.selectionChanged()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return tea.Batch(cmd, m.selectionChanged())
}

func (m *Model) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Apply):
		m.filtering = false
		m.filter.Blur()
		return m.selectionChanged()

	case key.Matches(msg, m.keys.ClearFilter):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.refreshRows()
		return m.selectionChanged()
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refreshRows()
	return cmd
}

// selectionChanged syncs the shared selection with the table cursor and
// announces a change of project.
func (m *Model) selectionChanged() tea.Cmd {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.visible) {
		return nil
	}
	idx := m.visible[cursor]
	projects := m.state.GetProjects()
	if idx >= len(projects) {
		return nil
	}
	path := projects[idx].ProjectPath
	m.state.SetSelectedProjectIndex(idx)
	if path == m.selected {
		return nil
	}
	m.selected = path
	return func() tea.Msg {
		return app.SelectedProjectChangedMsg{Index: idx, ProjectPath: path}
	}
}

// refreshRows rebuilds the table from the shared projects, keeping the
// cursor on the previously selected project when it is still visible.
func (m *Model) refreshRows() {
	projects := m.state.GetProjects()
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	now := m.now()

	m.visible = m.visible[:0]
	rows := make([]table.Row, 0, len(projects))
	cursor := 0
	for i, p := range projects {
		if query != "" && !strings.Contains(strings.ToLower(p.DisplayName), query) {
			continue
		}
		if p.ProjectPath == m.selected {
			cursor = len(rows)
		}
		m.visible = append(m.visible, i)
		rows = append(rows, projectRow(p, now, m.table.Columns()[0].Width))
	}

	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(cursor)
	}
}

func projectRow(p models.ProjectInfo, now time.Time, nameWidth int) table.Row {
	active := "-"
	if p.ActiveSessions > 0 {
		active = strconv.Itoa(p.ActiveSessions)
	}
	return table.Row{
		components.Truncate(p.DisplayName, nameWidth, true),
		components.FormatCost(p.TotalCostUSD),
		components.FormatTokens(p.TotalTokens),
		components.FormatCount(p.RequestCount),
		active,
		components.FormatAgo(p.LastActivity, now),
	}
}

// selectedProject returns the project under the cursor.
func (m *Model) selectedProject() (models.ProjectInfo, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.visible) {
		return models.ProjectInfo{}, false
	}
	projects := m.state.GetProjects()
	idx := m.visible[cursor]
	if idx >= len(projects) {
		return models.ProjectInfo{}, false
	}
	return projects[idx], true
}

// CapturingInput reports whether the filter field owns the keyboard.
func (m *Model) CapturingInput() bool {
	return m.filtering
}

// SetSize sets the available size for the projects tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetHeight(max(height-16, 3))
	m.refreshRows()
}

func (m *Model) ShortHelp() []key.Binding {
	if m.filtering {
		return []key.Binding{m.keys.Apply, m.keys.ClearFilter}
	}
	return []key.Binding{
		m.table.KeyMap.LineUp,
		m.table.KeyMap.LineDown,
		m.keys.Filter,
	}
}

func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.table.KeyMap.LineUp, m.table.KeyMap.LineDown},
		{m.table.KeyMap.GotoTop, m.table.KeyMap.GotoBottom},
		{m.keys.Filter, m.keys.ClearFilter},
	}
}
