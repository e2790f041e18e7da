// Package cancel provides a one-shot cancellation token shared by every task
// in a workflow.
package cancel

import (
	"sync"
	"sync/atomic"
)

// Token is a one-shot cancellation flag observed cooperatively by stages and
// the scheduler. It starts uncancelled; Request flips it to cancelled exactly
// once and synchronously invokes every registered callback. Registering a
// callback after cancellation invokes it immediately. Safe for concurrent use
// by any number of readers and writers.
type Token struct {
	canceled int32 // atomic; 0 = live, 1 = canceled

	mu   sync.Mutex
	cbs  []func()
	once sync.Once
}

// New returns an uncancelled token.
func New() *Token {
	return &Token{}
}

// Request flips the token to cancelled. Subsequent calls are no-ops.
// Callback panics/errors never escape Request: cancel must never itself fail.
func (t *Token) Request() {
	t.once.Do(func() {
		atomic.StoreInt32(&t.canceled, 1)

		t.mu.Lock()
		cbs := t.cbs
		t.cbs = nil
		t.mu.Unlock()

		for _, cb := range cbs {
			runSafely(cb)
		}
	})
}

// IsCanceled reports whether Request has been called.
func (t *Token) IsCanceled() bool {
	return atomic.LoadInt32(&t.canceled) == 1
}

// ErrCanceled is returned by ThrowIfCanceled when the token has been flipped.
var ErrCanceled = &canceledError{}

type canceledError struct{}

func (*canceledError) Error() string { return "operation canceled" }

// ThrowIfCanceled returns ErrCanceled iff the token has been flipped, nil
// otherwise. Stages call this at checkpoints to honour cooperative
// cancellation.
func (t *Token) ThrowIfCanceled() error {
	if t.IsCanceled() {
		return ErrCanceled
	}
	return nil
}

// OnCancel registers cb to run when the token is flipped. If the token is
// already cancelled, cb runs immediately on the calling goroutine.
func (t *Token) OnCancel(cb func()) {
	if cb == nil {
		return
	}

	if t.IsCanceled() {
		runSafely(cb)
		return
	}

	t.mu.Lock()
	if t.IsCanceled() {
		t.mu.Unlock()
		runSafely(cb)
		return
	}
	t.cbs = append(t.cbs, cb)
	t.mu.Unlock()
}

func runSafely(cb func()) {
	defer func() { _ = recover() }()
	cb()
}
