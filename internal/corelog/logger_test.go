package corelog

import "testing"

func TestNop_NeverPanics(t *testing.T) {
	var l Logger = Nop{}
	l.Info("t", "c", "e", "m")
	l.Warn("t", "c", "e", "m")
	l.Error("t", "c", "e", "m")
}

func TestStdLogger_ImplementsLogger(t *testing.T) {
	var l Logger = NewStdLogger()
	l.Info("trace-1", "scheduler", "dispatch", "task started")
}
