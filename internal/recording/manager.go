package recording

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/acolita/mongo-shell-mcp/internal/adapters/realclock"
	"github.com/acolita/mongo-shell-mcp/internal/adapters/realfs"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/ports"
)

// Manager owns the transcripts of every shell child, keyed by session ID.
// A disabled Manager, or a nil one, accepts every call and records nothing.
type Manager struct {
	mu        sync.RWMutex
	recorders map[string]*Recorder
	dir       string
	keep      int
	enabled   bool

	fs     ports.FileSystem
	clock  ports.Clock
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem sets the filesystem transcripts are written to.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithClock sets the clock used for event times and file names.
func WithClock(c ports.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithKeep limits the number of transcripts kept in dir. 0 keeps all.
func WithKeep(n int) Option {
	return func(m *Manager) { m.keep = n }
}

// NewManager creates a recording manager writing under dir.
func NewManager(dir string, enabled bool, opts ...Option) *Manager {
	m := &Manager{
		recorders: make(map[string]*Recorder),
		dir:       dir,
		enabled:   enabled,
		fs:        realfs.New(),
		clock:     realclock.New(),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a transcript for a newly spawned child, replacing any
// transcript already open under the same ID, then prunes old ones.
func (m *Manager) Start(meta Meta) error {
	if !m.IsEnabled() {
		return nil
	}

	m.mu.Lock()
	if existing, ok := m.recorders[meta.SessionID]; ok {
		existing.Close()
		delete(m.recorders, meta.SessionID)
	}

	r, err := NewRecorder(m.dir, meta, m.fs, m.clock)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.recorders[meta.SessionID] = r
	m.mu.Unlock()

	if _, err := m.Prune(); err != nil {
		m.logger.Warn("prune recordings", slog.String("error", err.Error()))
	}
	return nil
}

func (m *Manager) recorder(sessionID string) *Recorder {
	if !m.IsEnabled() {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recorders[sessionID]
}

// RecordInput records a command sent to a session's child.
func (m *Manager) RecordInput(sessionID, line string) {
	if r := m.recorder(sessionID); r != nil {
		m.logErr(sessionID, r.RecordInput(line))
	}
}

// RecordOutput records a session's output.
func (m *Manager) RecordOutput(sessionID, data string) {
	if r := m.recorder(sessionID); r != nil {
		m.logErr(sessionID, r.RecordOutput(data))
	}
}

// RecordMarker records a marker in a session's transcript.
func (m *Manager) RecordMarker(sessionID, label string) {
	if r := m.recorder(sessionID); r != nil {
		m.logErr(sessionID, r.RecordMarker(label))
	}
}

func (m *Manager) logErr(sessionID string, err error) {
	if err != nil {
		m.logger.Warn("recording write failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// Stop closes a session's transcript.
func (m *Manager) Stop(sessionID string) error {
	if !m.IsEnabled() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.recorders[sessionID]; ok {
		delete(m.recorders, sessionID)
		return r.Close()
	}
	return nil
}

// Path returns the transcript path of a session, or "" if none is open.
func (m *Manager) Path(sessionID string) string {
	if r := m.recorder(sessionID); r != nil {
		return r.Path()
	}
	return ""
}

// Prune removes the oldest closed transcripts so at most keep remain.
// Open transcripts are never removed. It returns the removed paths.
func (m *Manager) Prune() ([]string, error) {
	if !m.IsEnabled() || m.keep <= 0 {
		return nil, nil
	}

	matches, err := m.fs.Glob(filepath.Join(m.dir, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	if len(matches) <= m.keep {
		return nil, nil
	}

	open := make(map[string]bool)
	m.mu.RLock()
	for _, r := range m.recorders {
		open[r.Path()] = true
	}
	m.mu.RUnlock()

	var removed []string
	excess := len(matches) - m.keep
	for _, path := range matches {
		if excess == 0 {
			break
		}
		if open[path] {
			continue
		}
		if err := m.fs.Remove(path); err != nil {
			return removed, fmt.Errorf("remove recording: %w", err)
		}
		removed = append(removed, path)
		excess--
	}
	return removed, nil
}

// CloseAll closes every open transcript.
func (m *Manager) CloseAll() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.recorders {
		r.Close()
		delete(m.recorders, id)
	}
}

// IsEnabled reports whether recording is enabled.
func (m *Manager) IsEnabled() bool {
	return m != nil && m.enabled
}
