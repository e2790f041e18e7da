package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicWorkflow = "workflow"
)

// Event type constants
const (
	EventTypeTaskStateChanged  = "task.state_changed"
	EventTypeTaskProgress      = "task.progress"
	EventTypeWorkflowProgress  = "workflow.progress"
	EventTypeWorkflowCompleted = "workflow.completed"
)

// TaskStateChangedEvent is published whenever a task crosses a state
// transition (spec §4.4.7).
type TaskStateChangedEvent struct {
	ID        string
	State     string
	Progress  float64
	Timestamp time.Time
}

func (e TaskStateChangedEvent) EventType() string { return EventTypeTaskStateChanged }
func (e TaskStateChangedEvent) TaskID() string    { return e.ID }

// TaskProgressEvent carries a task's progress without a state. Nothing in
// this repository publishes it: progress reaches the bus as a
// TaskStateChangedEvent in the Running state (see wireEvents in
// cmd/pipeline-orchestrator).
type TaskProgressEvent struct {
	ID        string
	Progress  float64
	Timestamp time.Time
}

func (e TaskProgressEvent) EventType() string { return EventTypeTaskProgress }
func (e TaskProgressEvent) TaskID() string    { return e.ID }

// WorkflowProgressEvent summarizes a workflow's graph-wide task counts
// (spec §4.5, "overall workflow progress").
type WorkflowProgressEvent struct {
	TraceID   string
	Total     int
	Succeeded int
	Running   int
	Failed    int
	Canceled  int
	Pending   int
	Timestamp time.Time
}

func (e WorkflowProgressEvent) EventType() string { return EventTypeWorkflowProgress }
func (e WorkflowProgressEvent) TaskID() string    { return "" }

// WorkflowCompletedEvent is published exactly once, the moment every task in
// a workflow's graph reaches a terminal state.
type WorkflowCompletedEvent struct {
	TraceID   string
	Succeeded bool
	Timestamp time.Time
}

func (e WorkflowCompletedEvent) EventType() string { return EventTypeWorkflowCompleted }
func (e WorkflowCompletedEvent) TaskID() string    { return "" }
