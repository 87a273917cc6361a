package runner

import (
	"fmt"
	"time"
)

// ExecutionError reports an interpreter run that did not exit cleanly.
// The ExecutionResult returned alongside it still carries captured output.
type ExecutionError struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Timeout  time.Duration
	Err      error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("script timed out after %s", e.Timeout)
	case e.ExitCode > 0:
		return fmt.Sprintf("interpreter exited with status %d", e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("run interpreter: %v", e.Err)
	}
	return "interpreter failed"
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IOError reports a failed write of the script or data file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
