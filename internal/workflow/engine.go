// Package workflow builds the creative pipeline's fixed Storyboard -> N
// ImageGen -> Compose task graph on top of the scheduler, aggregates
// per-task state changes into workflow-level progress/completion, and
// rolls a partially-submitted graph back on a submit failure (spec §4.5).
package workflow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/scheduler"
	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/taskerr"
)

// instance tracks one in-flight workflow's bookkeeping.
type instance struct {
	traceID       string
	taskIDs       map[string]bool
	taskStates    map[string]task.State
	total         int
	completed     int
	terminalCount int
	failed        bool
	done          bool
}

// counts tallies inst's tasks by state, classifying any task not yet
// observed (Queued/Ready, absent from taskStates) as pending.
func (inst *instance) counts() (succeeded, running, failed, canceled, pending int) {
	for id := range inst.taskIDs {
		switch inst.taskStates[id] {
		case task.Succeeded:
			succeeded++
		case task.Running, task.Paused:
			running++
		case task.Failed:
			failed++
		case task.Canceled:
			canceled++
		default:
			pending++
		}
	}
	return
}

// Engine builds and tracks creative-pipeline workflows (spec §4.5, §6.1).
type Engine struct {
	sched   *scheduler.Scheduler
	factory stage.Factory

	mu        sync.Mutex
	instances map[string]*instance

	progressMu sync.Mutex
	onProgress []func(traceID, taskID string, progress float64)

	completionMu sync.Mutex
	onCompletion []func(traceID string, succeeded bool)

	aggMu  sync.Mutex
	onAgg  []func(traceID string, total, succeeded, running, failed, canceled, pending int)
}

// New creates a workflow Engine bound to sched, and subscribes to its
// state-change sink exactly once (spec §4.5: "the engine subscribes to
// scheduler state changes once").
func New(sched *scheduler.Scheduler, factory stage.Factory) *Engine {
	e := &Engine{
		sched:     sched,
		factory:   factory,
		instances: make(map[string]*instance),
	}
	sched.OnStateChange(e.handleStateChange)
	return e
}

// SetStageFactory swaps the stage factory used for subsequently-started
// workflows.
func (e *Engine) SetStageFactory(factory stage.Factory) {
	e.mu.Lock()
	e.factory = factory
	e.mu.Unlock()
}

// OnProgress registers cb to receive every per-task progress forward.
func (e *Engine) OnProgress(cb func(traceID, taskID string, progress float64)) {
	e.progressMu.Lock()
	e.onProgress = append(e.onProgress, cb)
	e.progressMu.Unlock()
}

// OnCompletion registers cb to receive a workflow's terminal outcome,
// exactly once per workflow.
func (e *Engine) OnCompletion(cb func(traceID string, succeeded bool)) {
	e.completionMu.Lock()
	e.onCompletion = append(e.onCompletion, cb)
	e.completionMu.Unlock()
}

// OnAggregateProgress registers cb to receive the per-state task tally for
// a workflow every time any of its tasks changes state, the shape a
// presenter's workflow summary pane needs (spec §6.2).
func (e *Engine) OnAggregateProgress(cb func(traceID string, total, succeeded, running, failed, canceled, pending int)) {
	e.aggMu.Lock()
	e.onAgg = append(e.onAgg, cb)
	e.aggMu.Unlock()
}

// StartWorkflow constructs and submits the N+2 task graph for one story
// (spec §4.5): a Storyboard task, N ImageGen tasks depending on it, and a
// Compose task depending on every ImageGen task. Returns the fresh
// trace_id on success.
func (e *Engine) StartWorkflow(story, style string, sceneCount int) taskerr.Result[string] {
	if sceneCount < 1 {
		return taskerr.Err[string](taskerr.InternalErrf("scene_count must be >= 1, got %d", sceneCount))
	}

	e.mu.Lock()
	factory := e.factory
	e.mu.Unlock()
	if factory == nil {
		return taskerr.Err[string](taskerr.InternalErr("workflow engine has no stage factory configured"))
	}

	traceID := uuid.New().String()
	tok := cancel.New()

	inst := &instance{
		traceID:    traceID,
		taskIDs:    make(map[string]bool),
		taskStates: make(map[string]task.State),
		total:      sceneCount + 2,
	}

	e.mu.Lock()
	e.instances[traceID] = inst
	e.mu.Unlock()

	submitted := make([]string, 0, sceneCount+2)
	rollback := func(cause *taskerr.TaskError) taskerr.Result[string] {
		var g errgroup.Group
		for _, id := range submitted {
			id := id
			g.Go(func() error {
				e.sched.Cancel(id)
				return nil
			})
		}
		g.Wait()

		e.mu.Lock()
		delete(e.instances, traceID)
		e.mu.Unlock()
		return taskerr.Err[string](cause)
	}

	storyboardID := traceID + "-storyboard"
	storyboardDemand := task.ResourceDemand{CPUSlots: 1}
	storyboardDesc := task.New(storyboardID, traceID, task.Storyboard, 100, storyboardDemand, nil, tok)
	storyboardInputs := stage.Bag{
		"story_text":  story,
		"style":       style,
		"scene_count": sceneCount,
	}
	e.mu.Lock()
	inst.taskIDs[storyboardID] = true
	e.mu.Unlock()
	if r := e.sched.Submit(storyboardDesc, factory(task.Storyboard), storyboardInputs); !r.IsOk() {
		return rollback(r.Error())
	}
	submitted = append(submitted, storyboardID)

	imageGenIDs := make([]string, sceneCount)
	for i := 0; i < sceneCount; i++ {
		id := fmt.Sprintf("%s-image-%d", traceID, i)
		imageGenIDs[i] = id

		demand := task.ResourceDemand{CPUSlots: 1}
		desc := task.New(id, traceID, task.ImageGen, 50, demand, []string{storyboardID}, tok)
		inputs := stage.Bag{"scene_index": i}

		e.mu.Lock()
		inst.taskIDs[id] = true
		e.mu.Unlock()
		if r := e.sched.Submit(desc, factory(task.ImageGen), inputs); !r.IsOk() {
			return rollback(r.Error())
		}
		submitted = append(submitted, id)
	}

	composeID := traceID + "-compose"
	composeDemand := task.ResourceDemand{CPUSlots: 1}
	composeDesc := task.New(composeID, traceID, task.Compose, 10, composeDemand, imageGenIDs, tok)
	e.mu.Lock()
	inst.taskIDs[composeID] = true
	e.mu.Unlock()
	if r := e.sched.Submit(composeDesc, factory(task.Compose), nil); !r.IsOk() {
		return rollback(r.Error())
	}
	submitted = append(submitted, composeID)

	return taskerr.Ok(traceID)
}

// CancelWorkflow cancels every task belonging to traceID.
func (e *Engine) CancelWorkflow(traceID string) taskerr.Result[taskerr.Unit] {
	e.mu.Lock()
	inst, ok := e.instances[traceID]
	e.mu.Unlock()
	if !ok {
		return taskerr.ErrUnit(taskerr.InternalErrf("unknown workflow trace_id %q", traceID))
	}

	for id := range inst.taskIDs {
		e.sched.Cancel(id)
	}
	return taskerr.OkUnit()
}

func (e *Engine) publishProgress(traceID, taskID string, progress float64) {
	e.progressMu.Lock()
	cbs := make([]func(string, string, float64), len(e.onProgress))
	copy(cbs, e.onProgress)
	e.progressMu.Unlock()

	for _, cb := range cbs {
		cb(traceID, taskID, progress)
	}
}

func (e *Engine) publishCompletion(traceID string, succeeded bool) {
	e.completionMu.Lock()
	cbs := make([]func(string, bool), len(e.onCompletion))
	copy(cbs, e.onCompletion)
	e.completionMu.Unlock()

	for _, cb := range cbs {
		cb(traceID, succeeded)
	}
}

func (e *Engine) publishAggregate(traceID string, total, succeeded, running, failed, canceled, pending int) {
	e.aggMu.Lock()
	cbs := make([]func(string, int, int, int, int, int, int), len(e.onAgg))
	copy(cbs, e.onAgg)
	e.aggMu.Unlock()

	for _, cb := range cbs {
		cb(traceID, total, succeeded, running, failed, canceled, pending)
	}
}

// handleStateChange is the scheduler's single state-change subscriber
// (spec §4.5). It locates the owning workflow by task_id membership,
// forwards progress, and aggregates completion.
func (e *Engine) handleStateChange(taskID string, st task.State, progress float64) {
	e.mu.Lock()
	var inst *instance
	for _, candidate := range e.instances {
		if candidate.taskIDs[taskID] {
			inst = candidate
			break
		}
	}
	if inst == nil || inst.done {
		e.mu.Unlock()
		return
	}

	e.publishProgress(inst.traceID, taskID, progress)

	inst.taskStates[taskID] = st
	switch st {
	case task.Succeeded:
		inst.completed++
		inst.terminalCount++
	case task.Failed, task.Canceled:
		inst.failed = true
		inst.terminalCount++
	}

	succeededCount, running, failed, canceled, pending := inst.counts()
	e.publishAggregate(inst.traceID, inst.total, succeededCount, running, failed, canceled, pending)

	succeeded := inst.completed == inst.total
	allTerminal := inst.terminalCount >= inst.total
	finished := succeeded || (allTerminal && inst.failed)

	if !finished {
		e.mu.Unlock()
		return
	}

	inst.done = true
	delete(e.instances, inst.traceID)
	e.mu.Unlock()

	e.publishCompletion(inst.traceID, succeeded)
}
