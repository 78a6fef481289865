package shell

import (
	"fmt"
	"time"
)

// ValidationError rejects a command before anything is sent to the shell.
type ValidationError struct {
	Reason string
	Length int
	Limit  int
}

func (e *ValidationError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("%s: %d characters, limit is %d (indentation does not count)", e.Reason, e.Length, e.Limit)
	}
	return e.Reason
}

// IncompleteInputError means the shell answered with its continuation
// prompt. Multi-line input is not supported.
type IncompleteInputError struct {
	Before string
}

func (e *IncompleteInputError) Error() string {
	return "code incomplete: enter valid and complete code (continuation prompt is not supported)"
}

// TransportError is a failed write to the shell. The session is unusable
// after one.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError is returned when no prompt appeared in time.
type TimeoutError struct {
	Timeout time.Duration
	Before  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for the shell prompt", e.Timeout)
}

// ProcessEndedError is end-of-stream from the shell.
type ProcessEndedError struct {
	Err    error
	Before string
}

func (e *ProcessEndedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shell process ended: %v", e.Err)
	}
	return "shell process ended"
}

func (e *ProcessEndedError) Unwrap() error { return e.Err }

// CancelledError wraps the context error of an interrupted wait.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("interrupted: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// DrainExhaustedError means the shell kept repainting past the redraw limit.
type DrainExhaustedError struct {
	Redraws int
}

func (e *DrainExhaustedError) Error() string {
	return fmt.Sprintf("shell output did not settle after %d redraws", e.Redraws)
}
