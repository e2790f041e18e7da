// Package taskerr defines the structured error taxonomy every core
// operation returns instead of raising an exception.
package taskerr

import "fmt"

// Category classifies a TaskError for routing and retry decisions.
type Category int

const (
	Network Category = iota
	Timeout
	Resource
	Pipeline
	Canceled
	Internal
	Unknown
)

func (c Category) String() string {
	switch c {
	case Network:
		return "Network"
	case Timeout:
		return "Timeout"
	case Resource:
		return "Resource"
	case Pipeline:
		return "Pipeline"
	case Canceled:
		return "Canceled"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// TaskError is the structured failure every fallible core operation returns.
type TaskError struct {
	Category        Category
	Code            int
	Retryable       bool
	UserMessage     string
	InternalMessage string
	Details         map[string]string
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.InternalMessage != "" {
		return fmt.Sprintf("%s(%d): %s", e.Category, e.Code, e.InternalMessage)
	}
	return fmt.Sprintf("%s(%d): %s", e.Category, e.Code, e.UserMessage)
}

// WithDetail returns e with detail[key] = value set, creating the map if
// necessary. Mutates and returns e for chaining convenience.
func (e *TaskError) WithDetail(key, value string) *TaskError {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

// InternalErr builds an Internal-category, non-retryable TaskError.
func InternalErr(msg string) *TaskError {
	return &TaskError{Category: Internal, Retryable: false, InternalMessage: msg}
}

// InternalErrf builds an Internal-category TaskError with a formatted message.
func InternalErrf(format string, args ...any) *TaskError {
	return InternalErr(fmt.Sprintf(format, args...))
}

// ResourceErr builds a Resource-category, non-retryable TaskError.
func ResourceErr(msg string) *TaskError {
	return &TaskError{Category: Resource, Retryable: false, InternalMessage: msg}
}

// CanceledErr builds a Canceled-category TaskError.
func CanceledErr(msg string) *TaskError {
	return &TaskError{Category: Canceled, Retryable: false, InternalMessage: msg}
}

// TimeoutErr builds a Timeout-category TaskError.
func TimeoutErr(msg string) *TaskError {
	return &TaskError{Category: Timeout, Retryable: true, InternalMessage: msg}
}

// PipelineErr builds a Pipeline-category TaskError with the given retryability.
func PipelineErr(msg string, retryable bool) *TaskError {
	return &TaskError{Category: Pipeline, Retryable: retryable, InternalMessage: msg}
}

// NetworkErr builds a Network-category, retryable TaskError.
func NetworkErr(msg string) *TaskError {
	return &TaskError{Category: Network, Retryable: true, InternalMessage: msg}
}
