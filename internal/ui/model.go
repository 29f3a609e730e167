// Package ui draws a chat session in the terminal.
package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"twin-assistant-backend/internal/chat"
)

const (
	placeholder = "请输入您的问题…"

	defaultWidth  = 100
	defaultHeight = 30
)

// stateMsg carries a controller snapshot into the program loop.
type stateMsg struct {
	rev   uint64
	state chat.State
}

type Model struct {
	ctrl  *chat.Controller
	state chat.State
	rev   uint64

	input    textinput.Model
	spin     spinner.Model
	viewport viewport.Model

	width   int
	height  int
	docBase string
}

// New builds a model for ctrl. docBase prefixes download links.
func New(ctrl *chat.Controller, docBase string) Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	rev, state := ctrl.Snapshot()
	m := Model{
		ctrl:     ctrl,
		state:    state,
		rev:      rev,
		input:    in,
		spin:     s,
		viewport: viewport.New(defaultWidth, defaultHeight),
		docBase:  docBase,
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case stateMsg:
		m.apply(msg.rev, msg.state)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+f":
			m.ctrl.Dispatch(chat.ToggleExpanded{})
			m.sync()
			return m, nil
		case "enter":
			m.ctrl.Dispatch(chat.InputChanged{Text: m.input.Value()})
			if m.ctrl.Dispatch(chat.SendRequested{}) {
				m.input.Reset()
			}
			m.sync()
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if m.state.AwaitingReply {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.ctrl.Dispatch(chat.InputChanged{Text: m.input.Value()})
		m.sync()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sync pulls the controller state after a local dispatch.
func (m *Model) sync() {
	m.apply(m.ctrl.Snapshot())
}

func (m *Model) apply(rev uint64, s chat.State) {
	if rev < m.rev {
		return
	}
	m.rev = rev
	m.state = s
	m.resize(m.width, m.height)
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	cw := m.chatWidth()
	m.viewport.Width = cw
	// header (2 lines) + input (2 lines)
	m.viewport.Height = max(h-4, 3)
	m.input.Width = max(cw-6, 10)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages(chat.Render(m.state)))
	m.viewport.GotoBottom()
}

func (m Model) chatWidth() int {
	if m.state.Expanded {
		return m.width
	}
	return m.width - m.panelWidth()
}

func (m Model) panelWidth() int {
	return m.width * 2 / 5
}
