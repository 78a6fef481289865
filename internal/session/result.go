package session

import (
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/recovery"
)

// Status is the outcome of one Execute call.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	StatusAbort Status = "abort"
)

// Stream names where plain text belongs.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// ExecutionResult is returned for every Execute call. Faults are reported
// here rather than as Go errors.
type ExecutionResult struct {
	Status     Status        `json:"status"`
	PlainText  string        `json:"plain_text"`
	Structured any           `json:"structured,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Stream     Stream        `json:"stream"`
	Restarted  bool          `json:"restarted,omitempty"`
	SessionID  string        `json:"session_id,omitempty"`
	Redraws    int           `json:"redraws,omitempty"`
	Duration   time.Duration `json:"duration_ns"`

	// Hints are suggestions for error messages found in PlainText.
	Hints []*recovery.Suggestion `json:"hints,omitempty"`
}

// Completion lists attribute names that can replace the text between
// CursorStart and CursorEnd.
type Completion struct {
	Matches     []string `json:"matches"`
	CursorStart int      `json:"cursor_start"`
	CursorEnd   int      `json:"cursor_end"`
}

// State is the lifecycle state of the managed shell.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateFaulted    State = "faulted" // last start failed; see Info.LastError
	StateClosed     State = "closed"
)

// Info is a snapshot of the manager for status reporting.
type Info struct {
	State      State     `json:"state"`
	SessionID  string    `json:"session_id,omitempty"`
	Pid        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Executions int       `json:"executions"`
	Restarts   int       `json:"restarts"`
	LastError  string    `json:"last_error,omitempty"`
	Recording  string    `json:"recording,omitempty"`
}

func okResult(text string, structured any, stream Stream, sessionID string) ExecutionResult {
	return ExecutionResult{
		Status:     StatusOK,
		PlainText:  text,
		Structured: structured,
		Stream:     stream,
		SessionID:  sessionID,
	}
}

func errorResult(status Status, text string, sessionID string) ExecutionResult {
	return ExecutionResult{
		Status:    status,
		ErrorText: text,
		Stream:    StreamStderr,
		SessionID: sessionID,
	}
}
