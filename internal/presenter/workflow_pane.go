package presenter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	humanize "github.com/dustin/go-humanize"

	"github.com/aristath/pipeline-orchestrator/internal/events"
)

// WorkflowPaneModel shows the single most recently active workflow's
// aggregate task counts and a completion bar, grounded on the teacher's
// DAGPaneModel but keyed to workflow.Engine's per-trace progress instead of
// one flat DAG-wide count.
type WorkflowPaneModel struct {
	traceID   string
	total     int
	succeeded int
	running   int
	failed    int
	canceled  int
	pending   int
	completed bool
	ok        bool
	width     int
	height    int
	focused   bool
	spin      spinner.Model
}

// NewWorkflowPaneModel creates an empty workflow pane.
func NewWorkflowPaneModel() WorkflowPaneModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleStatusRunning
	return WorkflowPaneModel{spin: s}
}

// Update handles messages for the workflow pane.
func (m WorkflowPaneModel) Update(msg tea.Msg) (WorkflowPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.WorkflowProgressEvent:
		m.traceID = msg.TraceID
		m.total = msg.Total
		m.succeeded = msg.Succeeded
		m.running = msg.Running
		m.failed = msg.Failed
		m.canceled = msg.Canceled
		m.pending = msg.Pending
		m.completed = false
		if m.running > 0 {
			return m, spinner.Tick
		}

	case events.WorkflowCompletedEvent:
		if msg.TraceID == m.traceID {
			m.completed = true
			m.ok = msg.Succeeded
		}

	case spinner.TickMsg:
		if m.running > 0 {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

// View renders the workflow pane.
func (m WorkflowPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Workflow")
	b.WriteString(title)
	b.WriteString("\n\n")

	if m.traceID == "" {
		b.WriteString(StyleStatusPending.Render("no workflow started yet"))
		b.WriteString("\n")
		return m.frame(b.String())
	}

	b.WriteString(fmt.Sprintf("trace:     %s\n", truncate(m.traceID, 36)))
	b.WriteString(fmt.Sprintf("total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("succeeded: %s\n", StyleStatusSucceeded.Render(fmt.Sprintf("%d", m.succeeded))))
	runningLabel := fmt.Sprintf("%d", m.running)
	if m.running > 0 {
		runningLabel = m.spin.View() + " " + runningLabel
	}
	b.WriteString(fmt.Sprintf("running:   %s\n", StyleStatusRunning.Render(runningLabel)))
	b.WriteString(fmt.Sprintf("failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("canceled:  %s\n", StyleStatusCanceled.Render(fmt.Sprintf("%d", m.canceled))))
	b.WriteString(fmt.Sprintf("pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))
	b.WriteString("\n")

	if m.total > 0 {
		barWidth := 40
		if m.width-4 < barWidth {
			barWidth = m.width - 4
		}
		succeededWidth := (m.succeeded * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		restWidth := barWidth - succeededWidth - failedWidth - runningWidth
		if restWidth < 0 {
			restWidth = 0
		}

		bar := StyleStatusSucceeded.Render(strings.Repeat("=", succeededWidth))
		bar += StyleStatusFailed.Render(strings.Repeat("!", failedWidth))
		bar += StyleStatusRunning.Render(strings.Repeat("-", runningWidth))
		bar += StyleStatusPending.Render(strings.Repeat(".", restWidth))

		b.WriteString(fmt.Sprintf("[%s]  %s / %d\n", bar, humanize.Comma(int64(m.succeeded)), m.total))
	}

	if m.completed {
		if m.ok {
			b.WriteString("\n" + StyleStatusSucceeded.Render("workflow complete"))
		} else {
			b.WriteString("\n" + StyleStatusFailed.Render("workflow failed"))
		}
	}

	return m.frame(b.String())
}

func (m WorkflowPaneModel) frame(content string) string {
	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(content)
}

// SetSize updates the pane dimensions.
func (m *WorkflowPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *WorkflowPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
