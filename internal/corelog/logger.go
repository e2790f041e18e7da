// Package corelog adapts the core's Logger sink (spec §6.2:
// info/warn/error(trace_id, component, event, message)) onto the standard
// library log package, following the teacher's "LEVEL: message" prefix
// convention from internal/orchestrator/runner.go and resilience.go.
package corelog

import (
	"log"
)

// Logger is the sink every core component (scheduler, workflow engine)
// writes diagnostics through. The core never imports the standard log
// package directly; it depends on this interface so callers can swap in
// their own sink (the presenter, a test spy, /dev/null).
type Logger interface {
	Info(traceID, component, event, message string)
	Warn(traceID, component, event, message string)
	Error(traceID, component, event, message string)
}

// StdLogger implements Logger over the standard library's log package,
// with a "LEVEL: " prefix exactly as the teacher's orchestrator package
// writes WARNING/ERROR lines.
type StdLogger struct{}

// NewStdLogger returns a Logger backed by the standard library logger.
func NewStdLogger() StdLogger { return StdLogger{} }

func (StdLogger) Info(traceID, component, event, message string) {
	log.Printf("INFO: [%s] %s/%s: %s", traceID, component, event, message)
}

func (StdLogger) Warn(traceID, component, event, message string) {
	log.Printf("WARNING: [%s] %s/%s: %s", traceID, component, event, message)
}

func (StdLogger) Error(traceID, component, event, message string) {
	log.Printf("ERROR: [%s] %s/%s: %s", traceID, component, event, message)
}

// Nop is a Logger that discards everything; useful in tests that don't
// care about diagnostics.
type Nop struct{}

func (Nop) Info(string, string, string, string)  {}
func (Nop) Warn(string, string, string, string)  {}
func (Nop) Error(string, string, string, string) {}
