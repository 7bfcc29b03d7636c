// Package tui is the terminal UI shell over the application core. It renders
// exactly one foregrounded session at a time, filtering PTY events by the
// active session id; background sessions keep running underneath.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/deskmux/deskmux/internal/app"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/pty"
)

type (
	// ptyEventMsg wraps a registry event for the update loop.
	ptyEventMsg pty.Event

	// chunkMsg carries one streamed text chunk of the in-flight turn.
	chunkMsg string

	// turnDoneMsg signals the in-flight turn finished.
	turnDoneMsg struct{ err error }
)

type model struct {
	app *app.App

	viewport viewport.Model
	textarea textarea.Model

	mdRenderer *glamour.TermRenderer

	ptyEvents   chan pty.Event
	unsubscribe func()

	chunks    chan string
	turnErr   chan error
	streaming bool
	partial   string

	width  int
	height int
	ready  bool
}

// Run starts the TUI over an already-constructed application core.
func Run(a *app.App) error {
	events := make(chan pty.Event, 64)
	unsubscribe := a.Registry().Subscribe(func(ev pty.Event) {
		select {
		case events <- ev:
		default: // UI lagging; scrollback still holds the output
		}
	})

	ta := textarea.New()
	ta.Placeholder = "Send a message…"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	m := &model{
		app:         a,
		textarea:    ta,
		ptyEvents:   events,
		unsubscribe: unsubscribe,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	unsubscribe()
	return err
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForPtyEvent())
}

// waitForPtyEvent re-arms the registry event listener.
func (m *model) waitForPtyEvent() tea.Cmd {
	return func() tea.Msg {
		return ptyEventMsg(<-m.ptyEvents)
	}
}

// waitForChunk re-arms the stream chunk listener for the in-flight turn.
func (m *model) waitForChunk() tea.Cmd {
	return func() tea.Msg {
		select {
		case text, ok := <-m.chunks:
			if ok {
				return chunkMsg(text)
			}
			return turnDoneMsg{err: <-m.turnErr}
		case err := <-m.turnErr:
			return turnDoneMsg{err: err}
		}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chrome := 7 // tabs + status + input
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
		m.textarea.SetWidth(msg.Width)
		m.mdRenderer = newMarkdownRenderer(msg.Width - 2)
		if id := m.app.Sessions().ActiveID(); id != "" {
			m.app.Registry().Resize(id, uint16(msg.Width), uint16(msg.Height-chrome))
		}
		m.refresh()

	case tea.KeyMsg:
		if m.terminalFocused() {
			return m.updateTerminalKey(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			m.app.Close()
			return m, tea.Quit
		case "ctrl+n":
			n := m.app.Sessions().Len() + 1
			_, _ = m.app.AddSession(fmt.Sprintf("session %d", n), m.app.View().Dir)
			m.refresh()
		case "ctrl+w":
			m.app.DeleteSession(m.app.Sessions().ActiveID())
			m.refresh()
		case "tab":
			m.switchRelative(1)
		case "shift+tab":
			m.switchRelative(-1)
		case "enter":
			if !m.streaming {
				if cmd := m.sendTurn(); cmd != nil {
					cmds = append(cmds, cmd)
				}
			}
		default:
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}

	case ptyEventMsg:
		// Only the foregrounded session's output reaches the screen; the
		// registry keeps streaming for backgrounded sessions regardless.
		if msg.SessionID == m.app.Sessions().ActiveID() {
			switch msg.Type {
			case pty.EventOutput:
				m.refresh()
			case pty.EventExit:
				_ = m.app.Connection().Disconnect()
				m.refresh()
			}
		}
		cmds = append(cmds, m.waitForPtyEvent())

	case chunkMsg:
		m.partial += string(msg)
		m.refresh()
		cmds = append(cmds, m.waitForChunk())

	case turnDoneMsg:
		m.streaming = false
		m.partial = ""
		m.refresh()

	default:
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// terminalFocused reports whether the active session is showing its CLI
// terminal rather than the chat view.
func (m *model) terminalFocused() bool {
	conn := m.app.Connection()
	return conn.Provider().IsCLI() && conn.Connected() &&
		m.app.Registry().Exists(m.app.Sessions().ActiveID())
}

// updateTerminalKey forwards keystrokes to the active session's PTY.
func (m *model) updateTerminalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.app.Sessions().ActiveID()
	switch msg.String() {
	case "ctrl+c":
		m.app.Close()
		return m, tea.Quit
	case "tab":
		m.switchRelative(1)
		return m, nil
	case "shift+tab":
		m.switchRelative(-1)
		return m, nil
	case "enter":
		m.app.Registry().Write(id, []byte("\r"))
	default:
		m.app.Registry().Write(id, []byte(msg.String()))
	}
	return m, nil
}

// switchRelative foregrounds the neighbor session in list order, reattaching
// its terminal when its restored connection state says it was connected to a
// CLI provider.
func (m *model) switchRelative(delta int) {
	sessions := m.app.Sessions().Sessions()
	if len(sessions) < 2 {
		return
	}
	activeID := m.app.Sessions().ActiveID()
	idx := 0
	for i, s := range sessions {
		if s.ID == activeID {
			idx = i
			break
		}
	}
	target := sessions[(idx+delta+len(sessions))%len(sessions)]

	m.app.Switch(target.ID)

	conn := m.app.Connection()
	if conn.Connected() && conn.Provider().IsCLI() {
		_, _ = m.app.EnsureTerminal()
	}
	m.refresh()
}

// sendTurn starts streaming one chat turn off the input contents.
func (m *model) sendTurn() tea.Cmd {
	text := m.textarea.Value()
	if text == "" {
		return nil
	}
	m.textarea.Reset()

	m.chunks = make(chan string, 16)
	m.turnErr = make(chan error, 1)
	m.streaming = true
	m.partial = ""

	chunks, turnErr := m.chunks, m.turnErr
	userMsg := message.Message{Role: message.RoleUser, Content: text}
	go func() {
		err := m.app.SendTurn(context.Background(), userMsg, func(s string) {
			chunks <- s
		})
		close(chunks)
		turnErr <- err
	}()

	return m.waitForChunk()
}

// refresh re-renders the viewport from the live view.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	if m.terminalFocused() {
		if data, ok := m.app.Registry().Scrollback(m.app.Sessions().ActiveID()); ok {
			m.viewport.SetContent(data)
			m.viewport.GotoBottom()
			return
		}
	}
	v := m.app.View()
	m.viewport.SetContent(m.renderChat(v) + renderTasks(v.Tasks))
	m.viewport.GotoBottom()
}

func (m *model) View() string {
	if !m.ready {
		return "loading…"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.renderStatus(),
		m.viewport.View(),
		m.textarea.View(),
	)
}
