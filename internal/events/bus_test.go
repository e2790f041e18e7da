package events

import (
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 10)

	event := TaskStateChangedEvent{
		ID:        "task-1",
		State:     "Running",
		Timestamp: time.Now(),
	}

	bus.Publish(TopicTask, event)

	select {
	case received := <-ch:
		if received.TaskID() != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID())
		}
		if received.EventType() != EventTypeTaskStateChanged {
			t.Errorf("expected event type '%s', got '%s'", EventTypeTaskStateChanged, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicTask, 10)
	ch2 := bus.Subscribe(TopicTask, 10)

	event := TaskStateChangedEvent{
		ID:        "task-2",
		State:     "Succeeded",
		Progress:  1.0,
		Timestamp: time.Now(),
	}

	bus.Publish(TopicTask, event)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID() != "task-2" {
				t.Errorf("subscriber %d: expected task ID 'task-2', got '%s'", i+1, received.TaskID())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			event := TaskStateChangedEvent{
				ID:        "task-n",
				State:     "Running",
				Timestamp: time.Now(),
			}
			bus.Publish(TopicTask, event)
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	select {
	case received := <-ch:
		if received == nil {
			t.Error("received nil event")
		}
	default:
		t.Error("expected at least one event in buffer")
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()

	ch := bus.Subscribe(TopicTask, 10)

	bus.Close()

	received := 0
	for range ch {
		received++
	}

	if received != 0 {
		t.Errorf("expected 0 events after close, got %d", received)
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicTask, 10)

	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	event := TaskStateChangedEvent{ID: "task-1", State: "Running", Timestamp: time.Now()}
	bus.Publish(TopicTask, event)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received event after bus was closed")
		}
	default:
	}
}

// TestMultipleTopics verifies topic isolation.
func TestMultipleTopics(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	taskCh := bus.Subscribe(TopicTask, 10)
	workflowCh := bus.Subscribe(TopicWorkflow, 10)

	taskEvent := TaskStateChangedEvent{ID: "task-1", State: "Running", Timestamp: time.Now()}
	workflowEvent := WorkflowProgressEvent{
		TraceID:   "trace-1",
		Total:     10,
		Succeeded: 5,
		Running:   2,
		Failed:    0,
		Pending:   3,
		Timestamp: time.Now(),
	}

	bus.Publish(TopicTask, taskEvent)
	bus.Publish(TopicWorkflow, workflowEvent)

	select {
	case received := <-taskCh:
		if received.EventType() != EventTypeTaskStateChanged {
			t.Errorf("task channel: expected task event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("task channel: timeout waiting for event")
	}

	select {
	case received := <-workflowCh:
		if received.EventType() != EventTypeWorkflowProgress {
			t.Errorf("workflow channel: expected workflow event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("workflow channel: timeout waiting for event")
	}

	select {
	case <-taskCh:
		t.Error("task channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
	}

	select {
	case <-workflowCh:
		t.Error("workflow channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
	}
}

// TestSubscribeAll verifies that SubscribeAll receives events from all topics.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	taskEvent := TaskStateChangedEvent{ID: "task-1", State: "Running", Timestamp: time.Now()}
	bus.Publish(TopicTask, taskEvent)

	workflowEvent := WorkflowProgressEvent{
		TraceID:   "trace-1",
		Total:     10,
		Succeeded: 5,
		Running:   2,
		Failed:    0,
		Pending:   3,
		Timestamp: time.Now(),
	}
	bus.Publish(TopicWorkflow, workflowEvent)

	receivedTypes := make(map[string]bool)

	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedTypes[received.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	if !receivedTypes[EventTypeTaskStateChanged] {
		t.Error("SubscribeAll did not receive task event")
	}
	if !receivedTypes[EventTypeWorkflowProgress] {
		t.Error("SubscribeAll did not receive workflow event")
	}

	select {
	case <-allCh:
		t.Error("received unexpected third event")
	case <-time.After(10 * time.Millisecond):
	}
}
