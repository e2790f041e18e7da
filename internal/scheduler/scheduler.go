// Package scheduler implements the DAG-aware thread-pool scheduler: the
// ready-set, priority+aging dispatch under CPU-hard/RAM-VRAM-soft resource
// budgets, cooperative pause/resume, cancellation cascade, and progress
// plumbing (spec §4.4).
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/reslock"
	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/taskerr"
)

// StateEvent is delivered to every OnStateChange subscriber.
type StateEvent struct {
	TaskID   string
	State    task.State
	Progress float64
}

// node is the scheduler's bookkeeping record for one task (spec §3,
// "Scheduler graph").
type node struct {
	descriptor   *task.Descriptor
	stg          stage.Stage
	initialInputs stage.Bag
	lastOutputs  stage.Bag

	unmetDeps  int
	readySince time.Time

	pauseRequested bool
	pauseDeadline  time.Time
}

// Scheduler is the DAG-aware thread-pool scheduler (spec §4.4, §6.1).
type Scheduler struct {
	cfg  Config
	cond *sync.Cond
	mu   sync.Mutex

	nodes      map[string]*node
	successors map[string][]string
	readySet   map[string]bool
	runningSet map[string]bool

	budget *resourceBudget
	locks  *reslock.Manager

	shuttingDown bool
	pendingEvents []StateEvent

	subsMu sync.Mutex
	subs   []func(taskID string, st task.State, progress float64)

	group *errgroup.Group
}

// New creates a Scheduler and starts its worker pool. Call Shutdown to stop
// it.
func New(cfg Config) *Scheduler {
	cfg = cfg.Normalize()

	s := &Scheduler{
		cfg:        cfg,
		nodes:      make(map[string]*node),
		successors: make(map[string][]string),
		readySet:   make(map[string]bool),
		runningSet: make(map[string]bool),
		budget: newResourceBudget(
			cfg.ResourceBudget.CPUSlotsHard,
			cfg.ResourceBudget.RAMSoftMB,
			cfg.ResourceBudget.VRAMSoftMB,
		),
		locks: reslock.New(),
	}
	s.cond = sync.NewCond(&s.mu)

	g := new(errgroup.Group)
	s.group = g
	for i := 0; i < cfg.WorkerCount; i++ {
		g.Go(func() error {
			s.workerLoop()
			return nil
		})
	}

	return s
}

// Shutdown stops accepting dispatch and waits for every worker goroutine to
// return (in-flight stages still run to completion; they simply won't be
// handed further work).
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
	s.cond.Broadcast()
	_ = s.group.Wait()
}

// OnStateChange registers cb to receive every (task_id, state, progress)
// notification. Delivery happens outside the scheduler lock, in the order
// state changes were observed per task (spec §4.4.7).
func (s *Scheduler) OnStateChange(cb func(taskID string, st task.State, progress float64)) {
	s.subsMu.Lock()
	s.subs = append(s.subs, cb)
	s.subsMu.Unlock()
}

// HasPendingTasks reports whether any task is non-terminal.
func (s *Scheduler) HasPendingTasks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if !n.descriptor.State.Terminal() {
			return true
		}
	}
	return false
}

// Submit admits a task descriptor + stage handle into the graph (spec
// §4.4.2). initialInputs seeds the stage's input bag with values that
// don't come from a predecessor's outputs (e.g. a root task's story_text,
// or a fan-out task's per-instance scene_index); it may be nil.
func (s *Scheduler) Submit(d *task.Descriptor, st stage.Stage, initialInputs stage.Bag) taskerr.Result[taskerr.Unit] {
	if d == nil || d.ID == "" {
		return taskerr.ErrUnit(taskerr.InternalErr("task descriptor must have a non-empty id"))
	}
	if st == nil {
		return taskerr.ErrUnit(taskerr.InternalErrf("task %q submitted with a nil stage", d.ID))
	}

	s.mu.Lock()

	if _, exists := s.nodes[d.ID]; exists {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("duplicate task id %q", d.ID))
	}

	d.Demand = d.Demand.Normalize()
	if d.Demand.CPUSlots > s.cfg.ResourceBudget.CPUSlotsHard {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.ResourceErr(fmt.Sprintf(
			"task %q demands %d cpu slots, exceeding the hard budget of %d",
			d.ID, d.Demand.CPUSlots, s.cfg.ResourceBudget.CPUSlotsHard)))
	}

	for _, dep := range d.Deps {
		if dep == d.ID {
			s.mu.Unlock()
			return taskerr.ErrUnit(taskerr.InternalErrf("task %q depends on itself", d.ID))
		}
		if _, ok := s.nodes[dep]; !ok {
			s.mu.Unlock()
			return taskerr.ErrUnit(taskerr.InternalErrf("task %q depends on unknown task %q", d.ID, dep))
		}
	}

	if err := detectCycle(s.successors, d.ID, d.Deps); err != nil {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("%v", err))
	}

	if d.CancelToken == nil {
		d.CancelToken = cancel.New()
	}

	n := &node{descriptor: d, stg: st, initialInputs: initialInputs}
	s.nodes[d.ID] = n

	for _, dep := range d.Deps {
		s.successors[dep] = append(s.successors[dep], d.ID)
	}

	// If a predecessor is already terminal-non-succeeded, the new task is
	// stillborn: synthesize Canceled, it never becomes Ready.
	var deadDep string
	for _, dep := range d.Deps {
		if dn, ok := s.nodes[dep]; ok && dn.descriptor.State.Terminal() && dn.descriptor.State != task.Succeeded {
			deadDep = dep
			break
		}
	}

	if deadDep != "" {
		d.Err = taskerr.CanceledErr("dependency already failed or was canceled before submission").
			WithDetail("dependency_task_id", deadDep)
		_ = d.Transition(task.Canceled)
		s.appendEventLocked(d.ID, task.Canceled, d.Progress)
	} else {
		unmet := 0
		for _, dep := range d.Deps {
			if dn, ok := s.nodes[dep]; ok && dn.descriptor.State != task.Succeeded {
				unmet++
			}
		}
		n.unmetDeps = unmet
		if unmet == 0 {
			_ = d.Transition(task.Ready)
			n.readySince = time.Now()
			s.readySet[d.ID] = true
			s.appendEventLocked(d.ID, task.Ready, d.Progress)
		}
	}

	events := s.drainEventsLocked()
	s.mu.Unlock()

	s.publish(events)
	s.cond.Broadcast()

	return taskerr.OkUnit()
}

// Cancel flips id's token, removes it from the ready set, transitions it to
// Canceled if non-terminal, and cascades (spec §4.4.6). Idempotent.
func (s *Scheduler) Cancel(id string) taskerr.Result[taskerr.Unit] {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("unknown task %q", id))
	}

	s.cancelLocked(n, id)

	events := s.drainEventsLocked()
	s.mu.Unlock()
	s.publish(events)
	s.cond.Broadcast()

	return taskerr.OkUnit()
}

// cancelLocked performs the direct-cancel side effects; caller holds s.mu.
func (s *Scheduler) cancelLocked(n *node, id string) {
	if n.descriptor.CancelToken != nil {
		n.descriptor.CancelToken.Request()
	}
	if n.descriptor.State.Terminal() {
		return
	}

	delete(s.readySet, id)
	_ = n.descriptor.Transition(task.Canceled)
	s.appendEventLocked(id, task.Canceled, n.descriptor.Progress)
	s.cascadeCancelLocked(id, id)
}

// cascadeCancelLocked transitively cancels every descendant of rootID,
// recording dependency_task_id = ancestorID on each. Terminal descendants
// are skipped for mutation but still traversed, so deeper descendants are
// reached (spec §4.4.5).
func (s *Scheduler) cascadeCancelLocked(rootID, ancestorID string) {
	visited := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		for _, succID := range s.successors[id] {
			if visited[succID] {
				continue
			}
			visited[succID] = true

			sn, ok := s.nodes[succID]
			if !ok {
				continue
			}

			if !sn.descriptor.State.Terminal() {
				delete(s.readySet, succID)
				if sn.descriptor.CancelToken != nil {
					sn.descriptor.CancelToken.Request()
				}
				sn.descriptor.Err = taskerr.CanceledErr("ancestor task failed or was canceled").
					WithDetail("dependency_task_id", ancestorID)
				_ = sn.descriptor.Transition(task.Canceled)
				s.appendEventLocked(succID, task.Canceled, sn.descriptor.Progress)
			}

			visit(succID)
		}
	}
	visit(rootID)
}

// Pause requests id to pause (spec §4.4.6). For Queued/Ready it is
// immediate. For Running it blocks until the task reaches Paused/terminal
// or checkpoint_timeout_ms elapses, at which point it auto-cancels the task
// and returns a Timeout error.
func (s *Scheduler) Pause(id string) taskerr.Result[taskerr.Unit] {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("unknown task %q", id))
	}

	switch n.descriptor.State {
	case task.Queued, task.Ready:
		delete(s.readySet, id)
		_ = n.descriptor.Transition(task.Paused)
		s.appendEventLocked(id, task.Paused, n.descriptor.Progress)
		events := s.drainEventsLocked()
		s.mu.Unlock()
		s.publish(events)
		return taskerr.OkUnit()

	case task.Running:
		return s.pauseRunningLocked(n, id)

	default:
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("cannot pause task %q in state %s", id, n.descriptor.State))
	}
}

// pauseRunningLocked implements the in-flight pause wait + timeout.
// Called with s.mu held; unlocks before returning.
func (s *Scheduler) pauseRunningLocked(n *node, id string) taskerr.Result[taskerr.Unit] {
	deadline := time.Now().Add(s.cfg.Pause.CheckpointTimeout)
	n.pauseRequested = true
	n.pauseDeadline = deadline
	s.mu.Unlock()

	timer := time.AfterFunc(s.cfg.Pause.CheckpointTimeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.mu.Lock()
	for n.descriptor.State == task.Running && time.Now().Before(deadline) {
		s.cond.Wait()
	}

	if n.descriptor.State == task.Paused || n.descriptor.State.Terminal() {
		events := s.drainEventsLocked()
		s.mu.Unlock()
		s.publish(events)
		return taskerr.OkUnit()
	}

	// Timed out still Running: auto-cancel.
	n.pauseRequested = false
	s.cancelLocked(n, id)
	events := s.drainEventsLocked()
	s.mu.Unlock()
	s.publish(events)
	s.cond.Broadcast()

	return taskerr.ErrUnit(taskerr.TimeoutErr(fmt.Sprintf(
		"pause checkpoint timeout for task %q", id)))
}

// Resume transitions a Paused task back to paused_from (spec §4.4.6).
func (s *Scheduler) Resume(id string) taskerr.Result[taskerr.Unit] {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("unknown task %q", id))
	}
	if n.descriptor.State != task.Paused {
		s.mu.Unlock()
		return taskerr.ErrUnit(taskerr.InternalErrf("cannot resume task %q not in Paused state", id))
	}

	target := *n.descriptor.PausedFrom
	if err := n.descriptor.Transition(target); err != nil {
		s.mu.Unlock()
		return taskerr.ErrUnit(err)
	}

	if target == task.Ready {
		n.readySince = time.Now()
		s.readySet[id] = true
	}

	s.appendEventLocked(id, target, n.descriptor.Progress)
	events := s.drainEventsLocked()
	s.mu.Unlock()

	s.publish(events)
	s.cond.Broadcast()

	return taskerr.OkUnit()
}

// Tick scans for Running tasks whose pause deadline has elapsed and
// auto-cancels them (spec §4.4.6). Cheap to call periodically.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	now := time.Now()
	var toCancel []string
	for id, n := range s.nodes {
		if n.descriptor.State == task.Running && n.pauseRequested && now.After(n.pauseDeadline) {
			toCancel = append(toCancel, id)
		}
	}
	for _, id := range toCancel {
		n := s.nodes[id]
		n.pauseRequested = false
		s.cancelLocked(n, id)
	}
	events := s.drainEventsLocked()
	s.mu.Unlock()

	if len(toCancel) > 0 {
		s.publish(events)
		s.cond.Broadcast()
	}
}

// --- worker loop / dispatch (spec §4.4.3) ---

func (s *Scheduler) workerLoop() {
	for {
		n, inputs, ok := s.waitForRunnable()
		if !ok {
			return
		}
		s.execute(n, inputs)
	}
}

func (s *Scheduler) waitForRunnable() (*node, stage.Bag, bool) {
	s.mu.Lock()
	for {
		if s.shuttingDown {
			s.mu.Unlock()
			return nil, nil, false
		}
		if n := s.pickCandidateLocked(); n != nil {
			s.dispatchLocked(n)
			inputs := s.gatherInputsLocked(n)
			events := s.drainEventsLocked()
			s.mu.Unlock()
			s.publish(events)
			return n, inputs, true
		}
		s.cond.Wait()
	}
}

// pickCandidateLocked implements spec §4.4.3 steps 1-5.
func (s *Scheduler) pickCandidateLocked() *node {
	now := time.Now()

	var softFit, softOver []*node
	for id := range s.readySet {
		n := s.nodes[id]
		if !s.budget.fitsHard(n.descriptor.Demand) {
			continue
		}
		if s.budget.fitsSoft(n.descriptor.Demand) {
			softFit = append(softFit, n)
		} else {
			softOver = append(softOver, n)
		}
	}

	effPriority := func(n *node) float64 {
		waitMS := float64(now.Sub(n.readySince).Milliseconds())
		return float64(n.descriptor.Priority) + (waitMS/float64(s.cfg.Aging.IntervalMS))*s.cfg.Aging.BoostPerInterval
	}

	better := func(a, b *node) bool {
		pa, pb := effPriority(a), effPriority(b)
		if pa != pb {
			return pa > pb
		}
		if !a.readySince.Equal(b.readySince) {
			return a.readySince.Before(b.readySince)
		}
		return a.descriptor.ID < b.descriptor.ID
	}

	pickBest := func(cands []*node) *node {
		if len(cands) == 0 {
			return nil
		}
		sort.Slice(cands, func(i, j int) bool { return better(cands[i], cands[j]) })
		return cands[0]
	}

	if best := pickBest(softFit); best != nil {
		return best
	}

	if s.budget.runningEmpty() {
		return pickBest(softOver)
	}

	return nil
}

// dispatchLocked reserves resources, marks n running, and transitions
// Ready -> Running.
func (s *Scheduler) dispatchLocked(n *node) {
	s.budget.reserve(n.descriptor.Demand)
	s.runningSet[n.descriptor.ID] = true
	delete(s.readySet, n.descriptor.ID)
	_ = n.descriptor.Transition(task.Running)
	s.appendEventLocked(n.descriptor.ID, task.Running, n.descriptor.Progress)
}

// gatherInputsLocked copies every direct predecessor's last output bag into
// a fresh input bag. A key written by exactly one predecessor keeps its
// original value; a key written by more than one predecessor (e.g.
// Compose's image_path, produced by every ImageGen task) is collected into
// an []any in dependency order instead of the last writer silently
// clobbering the rest (spec §4.5, §6.2).
func (s *Scheduler) gatherInputsLocked(n *node) stage.Bag {
	inputs := make(stage.Bag)
	for k, v := range n.initialInputs {
		inputs[k] = v
	}

	collected := make(map[string][]any)
	for _, dep := range n.descriptor.Deps {
		dn, ok := s.nodes[dep]
		if !ok || dn.lastOutputs == nil {
			continue
		}
		for k, v := range dn.lastOutputs {
			collected[k] = append(collected[k], v)
		}
	}
	for k, vs := range collected {
		if len(vs) == 1 {
			inputs[k] = vs[0]
		} else {
			inputs[k] = vs
		}
	}

	return inputs
}

// execute runs n's stage without the scheduler lock held, then processes
// completion.
func (s *Scheduler) execute(n *node, inputs stage.Bag) {
	sctx := stage.NewContext(n.descriptor.TraceID, n.descriptor.CancelToken, inputs, func(p float64) {
		s.onProgress(n, p)
	})
	sctx.Locks = s.locks

	res := n.stg.Execute(context.Background(), sctx)

	s.completeTask(n, sctx, res)
}

// onProgress is the progress sink handed to the stage (spec §4.4.4). It
// re-acquires the lock, updates progress, re-emits a Running event, and
// honours an in-flight pause request.
func (s *Scheduler) onProgress(n *node, p float64) {
	s.mu.Lock()
	n.descriptor.SetProgress(p)
	s.appendEventLocked(n.descriptor.ID, task.Running, n.descriptor.Progress)

	if n.pauseRequested {
		n.pauseRequested = false
		_ = n.descriptor.Transition(task.Paused)
		s.appendEventLocked(n.descriptor.ID, task.Paused, n.descriptor.Progress)
		s.cond.Broadcast()
	}

	events := s.drainEventsLocked()
	s.mu.Unlock()
	s.publish(events)

	s.mu.Lock()
	for n.descriptor.State == task.Paused && !s.shuttingDown {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// completeTask processes a stage's return (spec §4.4.5).
func (s *Scheduler) completeTask(n *node, sctx *stage.Context, res taskerr.Result[taskerr.Unit]) {
	s.mu.Lock()
	id := n.descriptor.ID

	s.budget.release(n.descriptor.Demand)
	delete(s.runningSet, id)

	if n.descriptor.State == task.Canceled {
		// Set concurrently (Cancel/cascade/pause-timeout); never
		// overwrite with Succeeded.
		s.cascadeCancelLocked(id, id)
		events := s.drainEventsLocked()
		s.mu.Unlock()
		s.publish(events)
		s.cond.Broadcast()
		return
	}

	if res.IsOk() {
		_ = n.descriptor.Transition(task.Succeeded)
		n.descriptor.SetProgress(1.0)
		n.lastOutputs = sctx.Outputs.Clone()
		s.appendEventLocked(id, task.Succeeded, n.descriptor.Progress)
		s.wakeSuccessorsLocked(id)
	} else {
		taskErr := res.Error()
		n.descriptor.Err = taskErr
		isCanceled := taskErr.Category == taskerr.Canceled ||
			(n.descriptor.CancelToken != nil && n.descriptor.CancelToken.IsCanceled())
		if isCanceled {
			_ = n.descriptor.Transition(task.Canceled)
			s.appendEventLocked(id, task.Canceled, n.descriptor.Progress)
		} else {
			_ = n.descriptor.Transition(task.Failed)
			s.appendEventLocked(id, task.Failed, n.descriptor.Progress)
		}
		s.cascadeCancelLocked(id, id)
	}

	events := s.drainEventsLocked()
	s.mu.Unlock()
	s.publish(events)
	s.cond.Broadcast()
}

// wakeSuccessorsLocked decrements unmet_deps on every direct successor of a
// just-succeeded task, transitioning any that reach zero to Ready.
func (s *Scheduler) wakeSuccessorsLocked(id string) {
	for _, succID := range s.successors[id] {
		sn, ok := s.nodes[succID]
		if !ok || sn.descriptor.State != task.Queued {
			continue
		}
		sn.unmetDeps--
		if sn.unmetDeps <= 0 {
			_ = sn.descriptor.Transition(task.Ready)
			sn.readySince = time.Now()
			s.readySet[succID] = true
			s.appendEventLocked(succID, task.Ready, sn.descriptor.Progress)
		}
	}
}

// --- event plumbing (spec §4.4.7) ---

func (s *Scheduler) appendEventLocked(id string, st task.State, progress float64) {
	s.pendingEvents = append(s.pendingEvents, StateEvent{TaskID: id, State: st, Progress: progress})
}

func (s *Scheduler) drainEventsLocked() []StateEvent {
	events := s.pendingEvents
	s.pendingEvents = nil
	return events
}

func (s *Scheduler) publish(events []StateEvent) {
	if len(events) == 0 {
		return
	}
	s.subsMu.Lock()
	subs := make([]func(string, task.State, float64), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, ev := range events {
		for _, cb := range subs {
			cb(ev.TaskID, ev.State, ev.Progress)
		}
	}
}
