// Package task defines the task descriptor, its resource demand, and the
// validated state machine every task in the scheduler moves through.
//
// Descriptor is not internally synchronized: the scheduler serializes all
// mutation through its own lock (spec §5), so a Descriptor must only be
// mutated while that lock is held.
package task

import (
	"time"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/taskerr"
)

// Type identifies which stage a task runs.
type Type int

const (
	Storyboard Type = iota
	ImageGen
	VideoClip
	TTS
	Compose
)

func (t Type) String() string {
	switch t {
	case Storyboard:
		return "Storyboard"
	case ImageGen:
		return "ImageGen"
	case VideoClip:
		return "VideoClip"
	case TTS:
		return "TTS"
	case Compose:
		return "Compose"
	default:
		return "Unknown"
	}
}

// ResourceDemand is the resource footprint a task reserves while running.
type ResourceDemand struct {
	CPUSlots int
	RAMMB    int
	VRAMMB   int
}

// Normalize clamps demand to the invariants in spec §4.4.2: cpu_slots >= 1,
// ram/vram >= 0.
func (d ResourceDemand) Normalize() ResourceDemand {
	if d.CPUSlots < 1 {
		d.CPUSlots = 1
	}
	if d.RAMMB < 0 {
		d.RAMMB = 0
	}
	if d.VRAMMB < 0 {
		d.VRAMMB = 0
	}
	return d
}

// Descriptor is a node in the task DAG.
type Descriptor struct {
	ID       string
	TraceID  string
	Type     Type
	State    State
	Priority int
	Demand   ResourceDemand
	Deps     []string
	Progress float64

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	Err *taskerr.TaskError

	CancelToken *cancel.Token

	// PausedFrom remembers the state Paused was entered from, for
	// faithful resume. Present iff State == Paused.
	PausedFrom *State
}

// New builds a Queued descriptor with CreatedAt set to now.
func New(id, traceID string, typ Type, priority int, demand ResourceDemand, deps []string, tok *cancel.Token) *Descriptor {
	return &Descriptor{
		ID:          id,
		TraceID:     traceID,
		Type:        typ,
		State:       Queued,
		Priority:    priority,
		Demand:      demand.Normalize(),
		Deps:        deps,
		CreatedAt:   time.Now(),
		CancelToken: tok,
	}
}

// Transition moves the descriptor to `to`, applying every side effect
// spec §4.2 requires, or returns an Internal TaskError and leaves state
// unchanged if the edge is illegal.
func (d *Descriptor) Transition(to State) *taskerr.TaskError {
	if !CanTransition(d.State, to) {
		return taskerr.InternalErrf("illegal transition %s -> %s for task %q", d.State, to, d.ID)
	}

	from := d.State
	now := time.Now()

	if to == Running && d.StartedAt == nil {
		d.StartedAt = &now
	}

	if to.Terminal() && d.FinishedAt == nil {
		d.FinishedAt = &now
	}

	if to == Paused {
		f := from
		d.PausedFrom = &f
	} else if from == Paused {
		d.PausedFrom = nil
	}

	if from == Failed && to == Queued {
		d.Progress = 0
		d.Err = nil
		d.StartedAt = nil
		d.FinishedAt = nil
	}

	d.State = to
	return nil
}

// SetProgress clamps p to [0,1] and is idempotent.
func (d *Descriptor) SetProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	d.Progress = p
}

// Clone returns a deep-enough copy safe to hand to callers outside the
// scheduler lock (mirrors the teacher's cloneTask helper).
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Deps != nil {
		cp.Deps = append([]string(nil), d.Deps...)
	}
	if d.StartedAt != nil {
		t := *d.StartedAt
		cp.StartedAt = &t
	}
	if d.FinishedAt != nil {
		t := *d.FinishedAt
		cp.FinishedAt = &t
	}
	if d.PausedFrom != nil {
		s := *d.PausedFrom
		cp.PausedFrom = &s
	}
	return &cp
}
