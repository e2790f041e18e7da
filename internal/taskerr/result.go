package taskerr

// Result is a discriminated Ok/Err outcome, avoiding the (T, error) idiom
// only where the core API wants to force callers to handle both branches
// explicitly (scheduler/workflow public surface). Internal plumbing still
// uses plain (T, error) where that reads more naturally.
type Result[T any] struct {
	value T
	err   *TaskError
	ok    bool
}

// Ok builds a successful Result carrying value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Err builds a failed Result carrying err. Passing a nil err is a
// programmer error and is normalized to an Internal error.
func Err[T any](err *TaskError) Result[T] {
	if err == nil {
		err = InternalErr("Err called with nil error")
	}
	return Result[T]{err: err, ok: false}
}

// IsOk reports whether the result is the Ok variant.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports whether the result is the Err variant.
func (r Result[T]) IsErr() bool { return !r.ok }

// Value returns the Ok payload and true, or the zero value and false.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Error returns the Err payload, or nil if this is the Ok variant.
func (r Result[T]) Error() *TaskError {
	return r.err
}

// Unit is the payload type for Result[Unit], the void-success variant used
// by purely side-effecting operations (Submit, Cancel, Pause, Resume, ...).
type Unit struct{}

// OkUnit is the canonical void-success Result.
func OkUnit() Result[Unit] {
	return Ok(Unit{})
}

// ErrUnit builds a void-failure Result carrying err.
func ErrUnit(err *TaskError) Result[Unit] {
	return Err[Unit](err)
}
