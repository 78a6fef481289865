package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/session"
	"github.com/acolita/mongo-shell-mcp/internal/testing/fakes/fakesessionmgr"
)

// --- Test helpers ---

func newTestServer(sm *fakesessionmgr.Manager) *Server {
	return NewServer(sm)
}

func makeRequest(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	tc, ok := mcpgo.AsTextContent(result.Content[0])
	if !ok {
		return ""
	}
	return tc.Text
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult) map[string]any {
	t.Helper()
	text := resultText(result)
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		t.Fatalf("failed to parse result JSON: %v (text: %s)", err, text)
	}
	return m
}

// --- mongo_execute ---

func TestHandleExecute_MissingCode(t *testing.T) {
	sm := fakesessionmgr.New()
	srv := newTestServer(sm)

	result, err := srv.handleExecute(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(resultText(result), errCodeRequired) {
		t.Errorf("text = %q", resultText(result))
	}
	if len(sm.Execs()) != 0 {
		t.Error("session should not be called")
	}
}

func TestHandleExecute_Structured(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.Results["db.foo.find()"] = session.ExecutionResult{
		Status:     session.StatusOK,
		PlainText:  `{ "_id" : ObjectId("x"), "n" : 1 }`,
		Structured: []any{map[string]any{"_id": map[string]any{"$oid": "x"}, "n": 1}},
		Stream:     session.StreamStdout,
		SessionID:  "sess-1",
	}
	srv := newTestServer(sm)

	result, err := srv.handleExecute(context.Background(), makeRequest(map[string]any{
		"code": "db.foo.find()",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}

	m := resultJSON(t, result)
	if m["status"] != "ok" {
		t.Errorf("status = %v", m["status"])
	}
	if m["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", m["session_id"])
	}
	values, ok := m["structured"].([]any)
	if !ok || len(values) != 1 {
		t.Fatalf("structured = %#v", m["structured"])
	}
	doc := values[0].(map[string]any)
	if doc["_id"].(map[string]any)["$oid"] != "x" {
		t.Errorf("_id = %v", doc["_id"])
	}
}

func TestHandleExecute_ErrorStatusIsToolError(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.Results["if (true) {"] = session.ExecutionResult{
		Status:    session.StatusError,
		ErrorText: "code incomplete\nmongo shell restarted",
		Stream:    session.StreamStderr,
		Restarted: true,
	}
	srv := newTestServer(sm)

	result, err := srv.handleExecute(context.Background(), makeRequest(map[string]any{
		"code": "if (true) {",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for error status")
	}
	m := resultJSON(t, result)
	if m["restarted"] != true {
		t.Errorf("restarted = %v", m["restarted"])
	}
}

func TestHandleExecute_Timeout(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		wantTimeout time.Duration
		wantErr     bool
	}{
		{name: "default", args: map[string]any{"code": "1+1"}, wantTimeout: 0},
		{name: "override", args: map[string]any{"code": "1+1", "timeout_ms": float64(1500)}, wantTimeout: 1500 * time.Millisecond},
		{name: "negative", args: map[string]any{"code": "1+1", "timeout_ms": float64(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := fakesessionmgr.New()
			srv := newTestServer(sm)

			result, err := srv.handleExecute(context.Background(), makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr {
				if !result.IsError {
					t.Error("expected tool error")
				}
				if len(sm.Execs()) != 0 {
					t.Error("session should not be called")
				}
				return
			}
			execs := sm.Execs()
			if len(execs) != 1 {
				t.Fatalf("execs = %d", len(execs))
			}
			if execs[0].Timeout != tt.wantTimeout {
				t.Errorf("timeout = %v, want %v", execs[0].Timeout, tt.wantTimeout)
			}
		})
	}
}

// --- mongo_complete ---

func TestHandleComplete(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.Completion = session.Completion{Matches: []string{"getCollection", "getName"}, CursorStart: 3, CursorEnd: 6}
	srv := newTestServer(sm)

	result, err := srv.handleComplete(context.Background(), makeRequest(map[string]any{
		"code":       "db.get",
		"cursor_pos": float64(6),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := resultJSON(t, result)
	matches := m["matches"].([]any)
	if len(matches) != 2 || matches[0] != "getCollection" {
		t.Errorf("matches = %v", matches)
	}
	if m["cursor_start"] != float64(3) {
		t.Errorf("cursor_start = %v", m["cursor_start"])
	}
}

func TestHandleComplete_Error(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.CompleteErr = errors.New("shell unavailable")
	srv := newTestServer(sm)

	result, _ := srv.handleComplete(context.Background(), makeRequest(map[string]any{"code": "db."}))
	if !result.IsError || !strings.Contains(resultText(result), "shell unavailable") {
		t.Errorf("result = %q, IsError = %v", resultText(result), result.IsError)
	}
}

// --- mongo_status / mongo_restart ---

func TestHandleStatus(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.Info = session.Info{State: session.StateRunning, SessionID: "abc", Executions: 4}
	srv := newTestServer(sm)

	result, _ := srv.handleStatus(context.Background(), makeRequest(nil))
	m := resultJSON(t, result)
	if m["state"] != "running" || m["session_id"] != "abc" || m["executions"] != float64(4) {
		t.Errorf("status = %v", m)
	}
}

func TestHandleRestart(t *testing.T) {
	sm := fakesessionmgr.New()
	srv := newTestServer(sm)

	result, _ := srv.handleRestart(context.Background(), makeRequest(map[string]any{"reason": "stuck"}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	if got := sm.Restarts(); len(got) != 1 || got[0] != "stuck" {
		t.Errorf("restarts = %v", got)
	}
	m := resultJSON(t, result)
	if m["restarts"] != float64(1) {
		t.Errorf("restarts = %v", m["restarts"])
	}
}

func TestHandleRestart_Error(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.RestartErr = errors.New("spawn mongo shell: not found")
	srv := newTestServer(sm)

	result, _ := srv.handleRestart(context.Background(), makeRequest(nil))
	if !result.IsError {
		t.Error("expected tool error")
	}
	if got := sm.Restarts(); len(got) != 1 || got[0] != "requested" {
		t.Errorf("restarts = %v", got)
	}
}

// --- mongo_version ---

func TestHandleVersion(t *testing.T) {
	sm := fakesessionmgr.New()
	srv := newTestServer(sm)

	result, _ := srv.handleVersion(context.Background(), makeRequest(nil))
	m := resultJSON(t, result)
	if m["version"] != "3.6.3" {
		t.Errorf("version = %v", m["version"])
	}
	if m["language"] != "javascript" {
		t.Errorf("language = %v", m["language"])
	}
}

func TestHandleVersion_Error(t *testing.T) {
	sm := fakesessionmgr.New()
	sm.BannerErr = errors.New("exec: \"mongo\": executable file not found in $PATH")
	srv := newTestServer(sm)

	result, _ := srv.handleVersion(context.Background(), makeRequest(nil))
	if !result.IsError {
		t.Error("expected tool error")
	}
}

// --- server ---

func TestUpdateConfig(t *testing.T) {
	sm := fakesessionmgr.New()
	srv := newTestServer(sm)

	cfg := config.DefaultConfig()
	srv.UpdateConfig(cfg)
	srv.UpdateConfig(nil)

	if got := sm.Configs(); len(got) != 1 || got[0] != cfg {
		t.Errorf("configs = %v", got)
	}
}

func TestShutdownClosesSession(t *testing.T) {
	sm := fakesessionmgr.New()
	srv := newTestServer(sm)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !sm.Closed() {
		t.Error("session not closed")
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcpgo.Tool
		name     string
		required []string
	}{
		{mongoExecuteTool(), toolExecute, []string{"code"}},
		{mongoCompleteTool(), toolComplete, []string{"code"}},
		{mongoStatusTool(), toolStatus, nil},
		{mongoRestartTool(), toolRestart, nil},
		{mongoVersionTool(), toolVersion, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.name {
				t.Errorf("Name = %q, want %q", tt.tool.Name, tt.name)
			}
			if tt.tool.Description == "" {
				t.Error("missing description")
			}
			if len(tt.tool.InputSchema.Required) != len(tt.required) {
				t.Errorf("Required = %v, want %v", tt.tool.InputSchema.Required, tt.required)
			}
		})
	}
}
