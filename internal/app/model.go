// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/services"
	"github.com/AgentsMesh/CCMonitor/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabDashboard is the ID for the dashboard tab.
	TabDashboard TabID = iota
	// TabProjects is the ID for the projects tab.
	TabProjects
	// TabHistory is the ID for the history tab.
	TabHistory
	// TabInfo is the ID for the info tab.
	TabInfo

	tabCount = 4
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabProjects:
		return "Projects"
	case TabHistory:
		return "History"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// InputCapturer is implemented by tabs that can take over the keyboard,
// such as while a text field is focused. Global shortcuts other than
// ctrl+c are suspended while CapturingInput reports true.
type InputCapturer interface {
	CapturingInput() bool
}

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Tab1     key.Binding
	Tab2     key.Binding
	Tab3     key.Binding
	Tab4     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Refresh  key.Binding
	Save     key.Binding
	Reset    key.Binding
	Confirm  key.Binding
	Help     key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Escape   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{}
	km = setTabKeys(km)
	km = setActionKeys(km)
	km = setNavigationKeys(km)
	return km
}

func setTabKeys(k KeyMap) KeyMap {
	k.Tab1 = key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard"))
	k.Tab2 = key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "projects"))
	k.Tab3 = key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "history"))
	k.Tab4 = key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "info"))
	k.NextTab = key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab"))
	k.PrevTab = key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab"))
	return k
}

func setActionKeys(k KeyMap) KeyMap {
	k.Refresh = key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh"))
	k.Save = key.NewBinding(key.WithKeys("s", "ctrl+s"), key.WithHelp("s", "save now"))
	k.Reset = key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "reset all data"))
	k.Confirm = key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm"))
	k.Help = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help"))
	k.Quit = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
	return k
}

func setNavigationKeys(k KeyMap) KeyMap {
	k.Up = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	k.Down = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	k.Escape = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	k.PageUp = key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up"))
	k.PageDown = key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down"))
	k.Home = key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "go to top"))
	k.End = key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "go to bottom"))
	return k
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.NextTab, k.PrevTab},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Refresh, k.Save, k.Reset, k.Help, k.Quit},
	}
}

// Model is the main application model.
type Model struct {
	// Tab management
	activeTab TabID
	tabs      []Tab
	tabNames  []string

	// Shared state
	state    *State
	backend  Backend
	commands *Commands
	keymap   KeyMap
	styles   Styles

	// UI components
	spinner spinner.Model

	// Window dimensions
	width  int
	height int

	// UI state
	showHelp     bool
	confirmReset bool
	ready        bool

	// Service subscription
	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model. A nil backend renders an
// empty dashboard and issues no data commands.
func NewModel(b Backend) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultStyles().Spinner

	return &Model{
		activeTab: TabDashboard,
		tabNames:  []string{"Dashboard", "Projects", "History", "Info"},
		tabs:      make([]Tab, tabCount),
		state:     NewState(),
		backend:   b,
		commands:  NewCommands(b),
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading usage...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.backend != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.backend))
		cmds = append(cmds, loadInitialData(m.backend))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model. Key input reaches only the
// active tab; every other message reaches all tabs.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if !handled {
			if cmd := m.updateActiveTab(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)

	case spinner.TickMsg:
		if cmd := m.handleSpinnerTick(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	cmds = append(cmds, m.updateAllTabs(msg)...)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		cmds = append(cmds, m.handleTick())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEventMsg(msg)...)
	case DashboardLoadedMsg:
		cmds = append(cmds, m.handleDashboardLoaded(msg))
	case DiagnosticsLoadedMsg:
		m.state.SetDiagnostics(msg.Diagnostics)
	case HistoryRequestMsg:
		cmds = append(cmds, m.handleHistoryRequest(msg))
	case HistoryLoadedMsg:
		cmds = append(cmds, m.handleHistoryLoaded(msg))
	case ResetRequestMsg:
		cmds = append(cmds, m.startReset())
	case ResetResultMsg:
		cmds = append(cmds, m.handleResetResult(msg)...)
	case SaveResultMsg:
		cmds = append(cmds, m.handleSaveResult(msg))
	case AddNotificationMsg:
		cmds = append(cmds, m.handleAddNotification(msg))
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.handleStartLoading(msg)
	case StopLoadingMsg:
		m.handleStopLoading(msg)
	case ErrorMsg:
		cmds = append(cmds, m.handleError(msg))
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		m.switchTab(msg.Tab)
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.updateTabSizes()
}

func (m *Model) handleSpinnerTick(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return cmd
}

func (m *Model) handleTick() tea.Cmd {
	m.state.ClearExpiredNotifications()
	if m.backend != nil && m.activeTab == TabInfo {
		return tea.Batch(defaultTickCmd(), loadDiagnosticsCmd(m.backend))
	}
	return defaultTickCmd()
}

func (m *Model) handleServiceEventMsg(msg ServiceEventMsg) []tea.Cmd {
	var cmds []tea.Cmd
	if cmd := m.handleServiceEvent(msg.Event); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if m.eventChannel != nil {
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	}
	return cmds
}

func (m *Model) handleDashboardLoaded(msg DashboardLoadedMsg) tea.Cmd {
	m.state.SetDashboard(msg.Data)
	m.state.SetDiagnostics(msg.Diagnostics)
	if !m.state.AnyLoading() && m.state.GetProgress().Done {
		m.state.ClearLoadingNotification()
	}
	return dashboardUpdatedCmd(msg.Data.UpdatedAt)
}

func (m *Model) handleHistoryRequest(msg HistoryRequestMsg) tea.Cmd {
	if m.backend == nil {
		return nil
	}
	m.state.SetLoading("history", true)
	return loadHistoryCmd(m.backend, msg.Range)
}

func (m *Model) handleHistoryLoaded(msg HistoryLoadedMsg) tea.Cmd {
	m.state.SetLoading("history", false)
	if msg.Error != nil {
		return notifyErrorCmd(fmt.Sprintf("Failed to load %s history: %v", msg.Range, msg.Error))
	}
	return nil
}

func (m *Model) startReset() tea.Cmd {
	m.confirmReset = false
	if m.backend == nil {
		return nil
	}
	m.state.SetLoading("reset", true)
	m.state.SetLoadingNotification("Resetting...")
	return resetCmd(m.backend)
}

func (m *Model) handleResetResult(msg ResetResultMsg) []tea.Cmd {
	m.state.SetLoading("reset", false)
	m.state.ClearLoadingNotification()
	if !msg.Success {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Reset failed: %v", msg.Error))}
	}
	// Toasts about the old data no longer apply.
	m.state.ClearAllNotifications()
	cmds := []tea.Cmd{notifySuccessCmd("All usage data cleared")}
	if m.backend != nil {
		cmds = append(cmds, loadInitialData(m.backend))
	}
	return cmds
}

func (m *Model) handleSaveResult(msg SaveResultMsg) tea.Cmd {
	if !msg.Success {
		return notifyErrorCmd(fmt.Sprintf("Save failed: %v", msg.Error))
	}
	return notifySuccessCmd("Saved")
}

func (m *Model) handleAddNotification(msg AddNotificationMsg) tea.Cmd {
	id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
	if msg.Duration > 0 {
		return clearNotificationCmd(id, msg.Duration)
	}
	return nil
}

func (m *Model) handleStartLoading(msg StartLoadingMsg) {
	m.state.SetLoading(msg.Resource, true)
	m.state.SetLoadingNotification("Refreshing...")
}

func (m *Model) handleStopLoading(msg StopLoadingMsg) {
	m.state.SetLoading(msg.Resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleError(msg ErrorMsg) tea.Cmd {
	if msg.Error == nil {
		return nil
	}
	if msg.Context != "" {
		return notifyErrorCmd(fmt.Sprintf("%s: %v", msg.Context, msg.Error))
	}
	return notifyErrorCmd(msg.Error.Error())
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.backend == nil {
		return nil
	}

	switch msg.Resource {
	case "all", "dashboard":
		m.state.SetLoading("dashboard", true)
		return []tea.Cmd{loadDashboardCmd(m.backend)}
	}
	// the history tab reloads its own range on RefreshMsg
	return nil
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateAllTabs(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	for i, tab := range m.tabs {
		if tab == nil {
			continue
		}
		var cmd tea.Cmd
		m.tabs[i], cmd = tab.Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (m *Model) updateTabSizes() {
	contentHeight := max(m.height-5, 0)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) switchTab(id TabID) {
	if id < 0 || int(id) >= len(m.tabNames) {
		return
	}
	m.activeTab = id
	m.updateTabSizes()
}

// handleKeyMsg handles global keys. It reports whether the key was consumed.
func (m *Model) activeTabCapturesInput() bool {
	if int(m.activeTab) >= len(m.tabs) {
		return false
	}
	c, ok := m.tabs[m.activeTab].(InputCapturer)
	return ok && c.CapturingInput()
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.confirmReset {
		if key.Matches(msg, m.keymap.Confirm) {
			return func() tea.Msg { return ResetRequestMsg{} }, true
		}
		m.confirmReset = false
		return notifyInfoCmd("Reset cancelled"), true
	}

	if m.activeTabCapturesInput() && msg.Type != tea.KeyCtrlC {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil, true

	case key.Matches(msg, m.keymap.Escape):
		if m.showHelp {
			m.showHelp = false
			return nil, true
		}
		return nil, false
	}

	if m.showHelp {
		return nil, true
	}

	switch {
	case key.Matches(msg, m.keymap.Tab1):
		m.switchTab(TabDashboard)
	case key.Matches(msg, m.keymap.Tab2):
		m.switchTab(TabProjects)
	case key.Matches(msg, m.keymap.Tab3):
		m.switchTab(TabHistory)
	case key.Matches(msg, m.keymap.Tab4):
		m.switchTab(TabInfo)
	case key.Matches(msg, m.keymap.NextTab):
		m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabNames)))
	case key.Matches(msg, m.keymap.PrevTab):
		m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabNames)) % len(m.tabNames)))
	case key.Matches(msg, m.keymap.Refresh):
		if m.backend == nil {
			return nil, true
		}
		return tea.Batch(
			func() tea.Msg { return StartLoadingMsg{Resource: "dashboard"} },
			loadDashboardCmd(m.backend),
		), true
	case key.Matches(msg, m.keymap.Save):
		if m.backend == nil {
			return nil, true
		}
		return saveCmd(m.backend), true
	case key.Matches(msg, m.keymap.Reset):
		m.confirmReset = true
		return nil, true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.UsageUpdatedEvent:
		m.state.SetDashboard(e.Data)
		if e.Data.Progress.Done {
			m.state.ClearLoadingNotification()
		}
		return dashboardUpdatedCmd(e.Data.UpdatedAt)

	case services.ProgressEvent:
		m.state.SetProgress(e.Progress)
		m.state.SetLoadingNotification(progressText(e.Progress))
		return func() tea.Msg { return ScanProgressMsg{Progress: e.Progress} }

	case services.ScanCompletedEvent:
		m.state.SetLastScan(e)
		m.state.ClearLoadingNotification()
		cmds := []tea.Cmd{func() tea.Msg { return ScanCompletedMsg{Event: e} }}
		if e.Entries > 0 {
			cmds = append(cmds, notifyInfoCmd(fmt.Sprintf("Scanned %d files, %d new entries", e.Processed, e.Entries)))
		}
		return tea.Batch(cmds...)

	case services.BudgetAlertEvent:
		m.state.SetLastAlert(e)
		text := budgetAlertText(e)
		forward := func() tea.Msg { return BudgetAlertMsg{Event: e} }
		if e.Level == services.AlertExceeded {
			return tea.Batch(forward, notifyErrorCmd(text))
		}
		return tea.Batch(forward, notifyWarningCmd(text))

	case services.ErrorEvent:
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

func dashboardUpdatedCmd(at time.Time) tea.Cmd {
	return func() tea.Msg { return DashboardUpdatedMsg{UpdatedAt: at} }
}

func progressText(p models.ScanProgress) string {
	if p.FilesTotal == 0 {
		return "Scanning logs..."
	}
	return fmt.Sprintf("Scanning logs %d/%d", p.FilesProcessed, p.FilesTotal)
}

func budgetAlertText(e services.BudgetAlertEvent) string {
	p := e.Projection
	if e.Level == services.AlertExceeded {
		return fmt.Sprintf("%s budget exceeded: $%.2f of $%.2f", titleCase(p.Period), p.Spent, p.Budget)
	}
	return fmt.Sprintf("%s budget at %.0f%%: $%.2f of $%.2f", titleCase(p.Period), p.PercentUsed, p.Spent, p.Budget)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if tab := m.currentTab(); tab != nil {
		b.WriteString(tab.View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	mainView := b.String()

	var modal string
	switch {
	case m.confirmReset:
		modal = m.renderResetConfirm()
	case m.showHelp:
		modal = m.renderHelp()
	}
	if modal != "" {
		x := (m.width - lipgloss.Width(modal)) / 2
		y := (m.height - lipgloss.Height(modal)) / 2
		mainView = placeOverlay(mainView, modal, x, y)
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		stack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
		mainView = placeOverlay(mainView, stack, m.width-lipgloss.Width(stack)-2, 2)
	}

	return mainView
}

// placeOverlay paints fg over bg with its top-left corner at column x and
// row y, keeping whatever bg shows to the right of fg.
func placeOverlay(bg, fg string, x, y int) string {
	x, y = max(x, 0), max(y, 0)
	rows := strings.Split(bg, "\n")
	fgRows := strings.Split(fg, "\n")
	fgWidth := lipgloss.Width(fg)

	for len(rows) < y+len(fgRows) {
		rows = append(rows, "")
	}
	for i, line := range fgRows {
		row := rows[y+i]
		left := ansi.Truncate(row, x, "")
		if pad := x - ansi.StringWidth(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		rows[y+i] = left + line + ansi.TruncateLeft(row, x+fgWidth, "")
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderNavbar() string {
	var tabs []string

	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if status := m.renderStatus(); status != "" {
		gap := m.width - lipgloss.Width(tabBar) - lipgloss.Width(status) - 2
		if gap > 0 {
			tabBar += strings.Repeat(" ", gap) + status
		}
	}

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

func (m *Model) renderStatus() string {
	if m.state.IsInitialLoading() {
		return ""
	}
	d := m.state.GetDashboard()
	parts := []string{fmt.Sprintf("today $%.2f", d.Today.TotalCostUSD), fmt.Sprintf("%d active", d.ActiveSessions)}
	if loading := m.state.GetLoadingResources(); len(loading) > 0 {
		parts = append(parts, "refreshing "+strings.Join(loading, ", "))
	} else if age := m.state.TimeSinceUpdate(); age >= staleAfter {
		parts = append(parts, "updated "+age.Truncate(time.Second).String()+" ago")
	}
	return m.styles.StatusBar.Render(strings.Join(parts, " · "))
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		style, prefix := m.notificationStyle(n.Type)
		toasts = append(toasts, m.styles.Toast.Render(style.Render(prefix+" "+n.Message)))
	}
	return toasts
}

func (m *Model) notificationStyle(t NotificationType) (lipgloss.Style, string) {
	switch t {
	case NotificationSuccess:
		return m.styles.NotificationSuccess, "✓"
	case NotificationError:
		return m.styles.NotificationError, "✗"
	case NotificationWarning:
		return m.styles.NotificationWarning, "!"
	case NotificationLoading:
		return m.styles.NotificationInfo, m.spinner.View()
	default:
		return m.styles.NotificationInfo, "i"
	}
}

// staleAfter is how old the dashboard must be before the status bar shows its age.
const staleAfter = 10 * time.Second

type helpSection struct {
	title    string
	bindings []key.Binding
}

// renderHelp lists the global bindings from the key map in two columns,
// with the active tab's own bindings under the actions.
func (m *Model) renderHelp() string {
	groups := m.keymap.FullHelp()
	left := []helpSection{
		{"Tabs", groups[0]},
		{"Navigation", groups[1]},
		{"Scrolling", groups[2]},
	}
	right := []helpSection{{"Actions", groups[3]}}

	if tab := m.currentTab(); tab != nil {
		var own []key.Binding
		for _, g := range tab.FullHelp() {
			own = append(own, g...)
		}
		if len(own) == 0 {
			own = tab.ShortHelp()
		}
		if len(own) > 0 {
			right = append(right, helpSection{m.tabNames[m.activeTab], own})
		}
	}

	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().MarginRight(4).Render(m.renderHelpColumn(left)),
		m.renderHelpColumn(right),
	)
	return styles.HelpPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render("Keyboard Shortcuts"),
		"",
		columns,
		"",
		m.styles.Subtle.Render("Press ? or Esc to close"),
	))
}

func (m *Model) renderHelpColumn(sections []helpSection) string {
	var lines []string
	for i, sec := range sections {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, m.styles.Highlight.Render(sec.title))
		for _, b := range sec.bindings {
			h := b.Help()
			if h.Key == "" {
				continue
			}
			lines = append(lines, styles.HelpKeyStyle.Width(12).Render(h.Key)+styles.HelpSeparatorStyle.Render("· ")+h.Desc)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) currentTab() Tab {
	if int(m.activeTab) < len(m.tabs) {
		return m.tabs[m.activeTab]
	}
	return nil
}

func (m *Model) renderResetConfirm() string {
	lines := []string{
		m.styles.Warning.Render("Reset all usage data?"),
		"",
		"Aggregates, file offsets and the snapshot are cleared",
		"and every log file is read again from the start.",
		"",
		m.styles.Subtle.Render("Press y to confirm, any other key to cancel"),
	}
	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("This tab is not yet implemented."),
	)
	return m.styles.Content.Render(content)
}
