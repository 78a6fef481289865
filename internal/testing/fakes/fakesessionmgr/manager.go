// Package fakesessionmgr provides a fake session manager for testing MCP
// handlers without a shell child.
package fakesessionmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/session"
)

// ExecCall records one Execute call.
type ExecCall struct {
	Code    string
	Timeout time.Duration // zero unless the caller overrode it
}

// Manager answers from canned results and records every call.
type Manager struct {
	mu sync.Mutex

	// Results maps code to its result; missing code echoes back as ok.
	Results     map[string]session.ExecutionResult
	Completion  session.Completion
	CompleteErr error
	Info        session.Info
	RestartErr  error
	BannerText  string
	BannerErr   error

	execs    []ExecCall
	restarts []string
	configs  []*config.Config
	closed   bool
}

// New creates a new fake Manager.
func New() *Manager {
	return &Manager{
		Results:    make(map[string]session.ExecutionResult),
		Info:       session.Info{State: session.StateNotStarted},
		BannerText: "MongoDB shell version v3.6.3",
	}
}

// Execute returns the canned result for code.
func (m *Manager) Execute(ctx context.Context, code string, opts ...session.ExecOption) session.ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.execs = append(m.execs, ExecCall{Code: code, Timeout: session.ResolveTimeout(0, opts...)})
	if m.closed {
		return session.ExecutionResult{Status: session.StatusError, ErrorText: "session closed", Stream: session.StreamStderr}
	}
	if res, ok := m.Results[code]; ok {
		return res
	}
	return session.ExecutionResult{Status: session.StatusOK, PlainText: code, Stream: session.StreamStdout}
}

// Complete returns Completion or CompleteErr.
func (m *Manager) Complete(ctx context.Context, code string, cursor int) (session.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Completion, m.CompleteErr
}

// Status returns Info.
func (m *Manager) Status() session.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Info
}

// Restart records the reason and returns RestartErr.
func (m *Manager) Restart(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.restarts = append(m.restarts, reason)
	if m.RestartErr != nil {
		return m.RestartErr
	}
	m.Info.State = session.StateRunning
	m.Info.Restarts++
	return nil
}

// Banner returns BannerText or BannerErr.
func (m *Manager) Banner(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BannerText, m.BannerErr
}

// LanguageVersion parses BannerText.
func (m *Manager) LanguageVersion(ctx context.Context) (string, error) {
	banner, err := m.Banner(ctx)
	if err != nil {
		return "", err
	}
	return session.ParseVersion(banner)
}

// UpdateConfig records cfg.
func (m *Manager) UpdateConfig(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg == nil {
		return fmt.Errorf("fakesessionmgr: nil config")
	}
	m.configs = append(m.configs, cfg)
	return nil
}

// Close marks the manager closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Execs returns every Execute call so far.
func (m *Manager) Execs() []ExecCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecCall{}, m.execs...)
}

// Restarts returns the reason of every Restart call.
func (m *Manager) Restarts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.restarts...)
}

// Configs returns every config passed to UpdateConfig.
func (m *Manager) Configs() []*config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*config.Config{}, m.configs...)
}

// Closed reports whether Close was called.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
