package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/labbcat/model"
)

const (
	stateRunning   = "running"
	stateFinished  = "finished"
	stateCancelled = "cancelled"
	stateFailed    = "failed"
)

// taskState classifies a status for its badge. The server only reports
// running or not, so stopped tasks are sorted by their status text.
func taskState(t model.TaskStatus) string {
	if t.Running {
		return stateRunning
	}
	status := strings.ToLower(t.Status)
	switch {
	case strings.Contains(status, "cancel"):
		return stateCancelled
	case strings.Contains(status, "fail"), strings.Contains(status, "error"):
		return stateFailed
	}
	return stateFinished
}

// View implements tea.Model.
func (m Model) View() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(m.renderHeader(styles))
	b.WriteString("\n\n")

	if len(m.snapshot.Tasks) == 0 {
		b.WriteString(styles.MutedText.Render("  " + m.spinner.View() + " waiting for task status..."))
		b.WriteString("\n")
	}
	for i, task := range m.snapshot.Tasks {
		b.WriteString(m.renderTask(styles, task, i == m.selected))
		b.WriteString("\n")
	}

	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Render("  " + m.message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Footer.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderHeader(styles Styles) string {
	title := styles.Header.Render("LaBB-CAT tasks")
	snap := m.snapshot

	var status string
	switch {
	case snap.IsOffline():
		status = styles.DangerText.Render("offline")
	case snap.LastError != nil:
		status = styles.WarningText.Render("error: " + snap.LastError.Error())
	case snap.LastUpdated.IsZero():
		status = styles.MutedText.Render("connecting")
	default:
		status = styles.MutedText.Render("updated " + snap.LastUpdated.Format(time.TimeOnly))
	}
	if snap.Done() {
		status += styles.SuccessText.Render("  all tasks finished")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", status)
}

func (m Model) renderTask(styles Styles, task model.TaskStatus, selected bool) string {
	state := taskState(task)

	cursor := "  "
	if selected {
		cursor = styles.AccentText.Render("> ")
	}

	indicator := styles.StatusStyle(state).Render(state)
	if state == stateRunning {
		indicator = m.spinner.View() + " " + indicator
	}

	name := task.ThreadName
	if name == "" {
		name = "-"
	}
	label := fmt.Sprintf("%-6s %-24s", task.ID(), truncate(name, 24))
	if selected {
		label = styles.Selected.Render(label)
	} else {
		label = styles.Text.Render(label)
	}

	percent := styles.MutedText.Render(fmt.Sprintf("%3d%%", task.PercentComplete))
	line := cursor + label + " " + m.bar.ViewAs(task.Fraction()) + " " + percent + " " + indicator
	if task.Status != "" {
		line += " " + styles.FaintText.Render(truncate(task.Status, 60))
	}
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
