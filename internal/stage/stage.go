// Package stage defines the contract a unit of suspendable pipeline work
// implements: typed input/output bags, a progress sink, and a cancel token.
// Stage implementations (HTTP-backed, mock, ...) live outside this package;
// it only fixes the shape the scheduler dispatches against.
package stage

import (
	"context"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/reslock"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/taskerr"
)

// Bag is the type-erased input/output map stages read from and write to.
// Keys are the stable string contract documented on the workflow engine
// (spec §6.2); values are caller-interpreted (string, []string, int, ...).
type Bag map[string]any

// Clone returns a shallow copy of b, safe for a callee to mutate without
// affecting the caller's map.
func (b Bag) Clone() Bag {
	cp := make(Bag, len(b))
	for k, v := range b {
		cp[k] = v
	}
	return cp
}

// String returns b[key] as a string, or "" if absent or not a string.
func (b Bag) String(key string) string {
	v, _ := b[key].(string)
	return v
}

// Int returns b[key] as an int, or 0 if absent or not an int.
func (b Bag) Int(key string) int {
	v, _ := b[key].(int)
	return v
}

// Strings returns b[key] as a []string. It accepts both a directly-stored
// []string and the []any the scheduler produces when more than one
// predecessor writes the same output key (spec §4.5's Compose task, which
// consumes every ImageGen task's image_path); non-string elements of an
// []any are skipped. Returns nil if key is absent or of neither shape.
func (b Bag) Strings(key string) []string {
	v := b[key]
	if ss, ok := v.([]string); ok {
		return ss
	}
	as, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(as))
	for _, item := range as {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Context is handed to Stage.Execute by the scheduler. Inputs are populated
// from every direct predecessor's last output bag before dispatch; Outputs
// accumulates what the stage produces and becomes the input of successors.
type Context struct {
	TraceID     string
	CancelToken *cancel.Token
	Inputs      Bag
	Outputs     Bag

	// Locks guards output paths a stage is about to write, so two tasks
	// misconfigured to produce the same path serialize instead of racing.
	// nil in contexts built outside the scheduler (most unit tests); the
	// Lock/Unlock helpers below no-op in that case.
	Locks *reslock.Manager

	// onProgress is invoked by the stage with no scheduler lock held. Values
	// must be monotonically non-decreasing; the scheduler clamps and may
	// pause the worker here (spec §4.4.4).
	onProgress func(p float64)
}

// LockPath acquires the output-path lock for key if Locks is set. Safe to
// call on a Context built without a lock manager.
func (c *Context) LockPath(key string) {
	if c.Locks != nil {
		c.Locks.Lock(key)
	}
}

// UnlockPath releases the output-path lock for key if Locks is set.
func (c *Context) UnlockPath(key string) {
	if c.Locks != nil {
		c.Locks.Unlock(key)
	}
}

// NewContext builds a Context around the given inputs, ready for a stage to
// populate Outputs and report progress.
func NewContext(traceID string, tok *cancel.Token, inputs Bag, onProgress func(p float64)) *Context {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	return &Context{
		TraceID:     traceID,
		CancelToken: tok,
		Inputs:      inputs,
		Outputs:     make(Bag),
		onProgress:  onProgress,
	}
}

// ReportProgress forwards p to the scheduler's progress sink.
func (c *Context) ReportProgress(p float64) {
	c.onProgress(p)
}

// Stage is a named unit of work that consumes Context.Inputs, populates
// Context.Outputs, reports progress via Context.ReportProgress, and honours
// Context.CancelToken.
//
// Implementations MUST check the cancel token at every natural checkpoint
// and return a Canceled TaskError promptly when it is set; MUST emit
// monotonically non-decreasing progress; MUST populate outputs under stable
// string keys. Implementations MUST NOT mutate the task descriptor
// directly, block indefinitely without cancel checks, or assume a fixed
// goroutine identity across calls.
type Stage interface {
	Name() string
	Execute(ctx context.Context, sc *Context) taskerr.Result[taskerr.Unit]
}

// Factory creates a Stage for a given task type. Pluggable; the scheduler
// and workflow engine hold no knowledge of what a stage actually does.
type Factory func(typ task.Type) Stage
