// Package overlay provides the Bubble Tea completion overlay.
package overlay

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/osutrack/internal/model"
)

type stateMsg model.OverlayState

type closedMsg struct{}

// Model implements the Bubble Tea overlay UI.
type Model struct {
	states   <-chan model.OverlayState
	state    model.OverlayState
	hasState bool
	spinner  spinner.Model
	maxRuns  int

	width  int
	height int
}

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF66AA")).Bold(true)
	countStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	percentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#7CD67C")).Padding(0, 1)
	barFilledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF66AA"))
	barEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	onlineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7CD67C"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs an overlay that renders every state received on states.
// The program quits when states is closed.
func NewModel(states <-chan model.OverlayState, maxRuns int) *Model {
	if maxRuns <= 0 {
		maxRuns = 5
	}
	return &Model{
		states:  states,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(percentStyle)),
		maxRuns: maxRuns,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states))
}

func waitForState(states <-chan model.OverlayState) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return closedMsg{}
		}
		return stateMsg(state)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		default:
			return m, nil
		}
	case stateMsg:
		m.state = model.OverlayState(msg)
		m.hasState = true
		return m, waitForState(m.states)
	case closedMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		if m.ready() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m *Model) ready() bool {
	return m.hasState && m.state.Progress.Ready
}

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderContent()
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}
