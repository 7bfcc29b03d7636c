package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/deskmux/deskmux/internal/app"
	"github.com/deskmux/deskmux/internal/message"
	"github.com/deskmux/deskmux/internal/session"
)

const maxTabWidth = 20

// newMarkdownRenderer builds the glamour renderer used for assistant turns.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	return r
}

// renderTabs renders the session strip, active session highlighted.
func (m *model) renderTabs() string {
	sessions := m.app.Sessions().Sessions()
	activeID := m.app.Sessions().ActiveID()

	tabs := make([]string, 0, len(sessions))
	for _, s := range sessions {
		name := runewidth.Truncate(s.Name, maxTabWidth, "…")
		if s.ID == activeID {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderStatus renders the provider/model/connected line.
func (m *model) renderStatus() string {
	conn := m.app.Connection()
	label := string(conn.Provider())
	if model := conn.Model(); model != "" {
		label += " · " + model
	}
	if conn.Connected() {
		return connectedStyle.Render("● " + label)
	}
	return statusStyle.Render("○ " + label)
}

// renderChat renders the live chat history, assistant turns through glamour.
func (m *model) renderChat(v app.View) string {
	var sb strings.Builder
	for _, msg := range v.Messages {
		switch msg.Role {
		case message.RoleUser:
			sb.WriteString(userStyle.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(msg.PlainText())
			sb.WriteString("\n\n")
		case message.RoleAssistant:
			rendered := msg.PlainText()
			if m.mdRenderer != nil {
				if out, err := m.mdRenderer.Render(rendered); err == nil {
					rendered = out
				}
			}
			sb.WriteString(rendered)
			sb.WriteString("\n")
		case message.RoleError:
			sb.WriteString(errorStyle.Render("Error: " + msg.PlainText()))
			sb.WriteString("\n\n")
		case message.RoleSystem:
			sb.WriteString(statusStyle.Render(msg.PlainText()))
			sb.WriteString("\n\n")
		}
	}
	if m.streaming && m.partial != "" {
		sb.WriteString(m.partial)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderTasks renders the live task list.
func renderTasks(tasks []session.Task) string {
	if len(tasks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(statusStyle.Render("Tasks"))
	sb.WriteString("\n")
	for _, t := range tasks {
		if t.Done {
			fmt.Fprintf(&sb, "  %s\n", taskDoneStyle.Render("[x] "+t.Text))
		} else {
			fmt.Fprintf(&sb, "  [ ] %s\n", t.Text)
		}
	}
	return sb.String()
}
