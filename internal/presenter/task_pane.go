package presenter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"

	"github.com/aristath/pipeline-orchestrator/internal/events"
)

type taskRow struct {
	id        string
	state     string
	progress  float64
	updatedAt time.Time
}

// TaskPaneModel lists every task the scheduler has reported a state change
// for, with its current state, progress bar, and how long ago it last
// changed.
type TaskPaneModel struct {
	rows    map[string]*taskRow
	order   []string
	cursor  int
	width   int
	height  int
	focused bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{rows: make(map[string]*taskRow)}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.TaskStateChangedEvent:
		row, ok := m.rows[msg.ID]
		if !ok {
			row = &taskRow{id: msg.ID}
			m.rows[msg.ID] = row
			m.order = append(m.order, msg.ID)
			sort.Strings(m.order)
		}
		row.state = msg.State
		row.progress = msg.Progress
		row.updatedAt = msg.Timestamp

	case tea.KeyMsg:
		switch msg.String() {
		case KeyUp, KeyK:
			if m.cursor > 0 {
				m.cursor--
			}
		case KeyDown, KeyJ:
			if m.cursor < len(m.order)-1 {
				m.cursor++
			}
		}
	}

	return m, nil
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n\n")

	for i, id := range m.order {
		row := m.rows[id]
		style := styleForState(row.state)
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		bar := progressBar(row.progress, 12)
		b.WriteString(fmt.Sprintf("%s%-24s %s %s %s\n",
			marker, truncate(id, 24), style.Render(fmt.Sprintf("%-9s", row.state)), bar,
			humanize.Time(row.updatedAt)))
	}

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("no tasks yet"))
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func styleForState(state string) lipgloss.Style {
	switch state {
	case "Running":
		return StyleStatusRunning
	case "Paused":
		return StyleStatusPaused
	case "Succeeded":
		return StyleStatusSucceeded
	case "Failed":
		return StyleStatusFailed
	case "Canceled":
		return StyleStatusCanceled
	default:
		return StyleStatusPending
	}
}

func progressBar(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	filled := int(p * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(".", width-filled) + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
