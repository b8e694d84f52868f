package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"forum/internal/markup"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 2)
)

func (m *app) View() string {
	sections := []string{m.header()}
	switch m.screen {
	case screenTopic:
		sections = append(sections, m.topicBody())
	case screenUsers:
		sections = append(sections, m.usersBody())
	}

	if len(m.output) > 0 {
		style := lipgloss.NewStyle()
		if m.failed {
			style = errorStyle
		}
		sections = append(sections, style.Render(strings.Join(m.output, "\n")))
	}
	if m.confirm != nil {
		sections = append(sections, dialogStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(m.confirm.Title),
			m.confirm.Content,
			"",
			fmt.Sprintf("y %s   n Cancel", m.confirm.Action),
		)))
	}
	if len(m.toasts) > 0 {
		texts := make([]string, len(m.toasts))
		for i, t := range m.toasts {
			texts[i] = t.text
		}
		sections = append(sections, toastStyle.Render(strings.Join(texts, "\n")))
	}

	line := promptStyle.Render(m.prompt()) + m.input
	if m.busy {
		line += mutedStyle.Render("  working...")
	} else {
		line += "█"
	}
	sections = append(sections, line)
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *app) header() string {
	who := "not logged in"
	if u, ok := m.svc.users.Connected.Get(); ok && u != nil {
		who = u.Username
		if u.Admin {
			who += " (admin)"
		}
	}
	return titleStyle.Render("forum") + mutedStyle.Render("  "+who+"  help for commands")
}

func (m *app) topicBody() string {
	t, ok := m.topic.Topic()
	if !ok {
		return mutedStyle.Render("Loading...")
	}
	edited, editing := m.topic.Edited()

	lines := []string{titleStyle.Render(t.Title)}
	if len(t.Messages) == 0 {
		lines = append(lines, mutedStyle.Render("No messages"))
	}
	for _, msg := range t.Messages {
		author := "?"
		if msg.Author != nil {
			author = msg.Author.Username
		}
		var marks []string
		if m.topic.CanEdit(msg) {
			marks = append(marks, "edit")
		}
		if m.topic.CanDelete(msg) {
			marks = append(marks, "delete")
		}
		meta := fmt.Sprintf("#%d %s, %s", msg.ID, author, formatDate(msg.Date))
		if len(marks) > 0 {
			meta += " [" + strings.Join(marks, ",") + "]"
		}
		if editing && msg.ID == edited {
			lines = append(lines, selectedStyle.Render(meta+" editing"))
		} else {
			lines = append(lines, mutedStyle.Render(meta))
		}
		lines = append(lines, "  "+markup.Plain(msg.Content))
	}
	return strings.Join(lines, "\n")
}

func (m *app) usersBody() string {
	edited, editing := m.users.Edited()

	lines := []string{titleStyle.Render("Users")}
	for _, u := range m.users.Filtered() {
		row := fmt.Sprintf("%4d  %-30s admin: %s", u.ID, u.Username, m.users.AdminLabel(u))
		if editing && u.ID == edited {
			row = selectedStyle.Render(row + " editing")
		}
		lines = append(lines, row)
	}
	if len(lines) == 1 {
		lines = append(lines, mutedStyle.Render("No matching users"))
	}
	return strings.Join(lines, "\n")
}
