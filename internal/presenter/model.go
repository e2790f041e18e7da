// Package presenter implements the TUI that surfaces scheduler and
// workflow progress to an operator (spec §1's excluded "UI presenters").
// Grounded on the teacher's internal/tui package: same Bubble Tea
// Model/Update/View split, same event-bus subscription loop, repainted
// for the two-pane (tasks, workflow) shape this domain needs in place of
// the teacher's three-pane (agent list, agent output, DAG) layout.
package presenter

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/pipeline-orchestrator/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneWorkflow
)

// Model is the root Bubble Tea model for the presenter.
type Model struct {
	taskPane     TaskPaneModel
	workflowPane WorkflowPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
}

// New creates a new presenter Model subscribed to every event on bus.
func New(bus *events.EventBus) Model {
	return Model{
		taskPane:     NewTaskPaneModel(),
		workflowPane: NewWorkflowPaneModel(),
		focusedPane:  PaneTasks,
		eventSub:     bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneWorkflow
			m.updateFocusStates()

		default:
			switch m.focusedPane {
			case PaneTasks:
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneWorkflow:
				var cmd tea.Cmd
				m.workflowPane, cmd = m.workflowPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.TaskStateChangedEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.WorkflowProgressEvent, events.WorkflowCompletedEvent:
		var cmd tea.Cmd
		m.workflowPane, cmd = m.workflowPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.TaskProgressEvent:
		cmds = append(cmds, waitForEvent(m.eventSub))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.workflowPane, cmd = m.workflowPane.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the presenter.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	left := m.taskPane.View()
	right := m.workflowPane.View()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.workflowPane.SetSize(rightWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.workflowPane.SetFocused(m.focusedPane == PaneWorkflow)
}
