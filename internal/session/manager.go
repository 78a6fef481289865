// Package session runs one mongo shell child and turns code cells into
// ExecutionResults. The child is started lazily, replaced after every fault
// and never shared between concurrent commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/adapters/realclock"
	"github.com/acolita/mongo-shell-mcp/internal/adapters/realfs"
	"github.com/acolita/mongo-shell-mcp/internal/adapters/realrand"
	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/escape"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/metrics"
	"github.com/acolita/mongo-shell-mcp/internal/normalize"
	"github.com/acolita/mongo-shell-mcp/internal/ports"
	"github.com/acolita/mongo-shell-mcp/internal/recording"
	"github.com/acolita/mongo-shell-mcp/internal/recovery"
	"github.com/acolita/mongo-shell-mcp/internal/security"
	"github.com/acolita/mongo-shell-mcp/internal/shell"
)

// Manager owns the mongo shell child. All methods are safe for concurrent
// use; commands are serialized.
type Manager struct {
	mu  sync.Mutex
	cfg *config.Config

	spawn       SpawnFunc
	version     VersionFunc
	clock       ports.Clock
	random      ports.Random
	fs          ports.FileSystem
	logger      *slog.Logger
	metrics     *metrics.Metrics
	recorder    *recording.Manager
	credentials *security.Credentials
	limiter     *security.AuthRateLimiter
	filter      *security.CommandFilter
	normalizer  *normalize.Normalizer
	analyzer    *recovery.Analyzer

	child      *child
	closed     bool
	executions int
	restarts   int
	lastErr    string
	faulted    bool

	bannerMu sync.Mutex
	banner   string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSpawner replaces the PTY spawner, e.g. with a scripted fake.
func WithSpawner(fn SpawnFunc) Option {
	return func(m *Manager) { m.spawn = fn }
}

// WithVersionFunc replaces the `mongo --version` runner.
func WithVersionFunc(fn VersionFunc) Option {
	return func(m *Manager) { m.version = fn }
}

// WithClock sets the clock for timeouts and durations.
func WithClock(c ports.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRandom sets the source of prompt tokens and session IDs.
func WithRandom(r ports.Random) Option {
	return func(m *Manager) { m.random = r }
}

// WithFileSystem sets the filesystem used for password lookup.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics enables metrics collection.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithRecorder enables transcript recording.
func WithRecorder(r *recording.Manager) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithCredentials sets the password resolver.
func WithCredentials(c *security.Credentials) Option {
	return func(m *Manager) { m.credentials = c }
}

// WithRateLimiter sets the startup failure limiter.
func WithRateLimiter(r *security.AuthRateLimiter) Option {
	return func(m *Manager) { m.limiter = r }
}

// WithFilter overrides the command filter built from config.
func WithFilter(f *security.CommandFilter) Option {
	return func(m *Manager) { m.filter = f }
}

// WithNormalizer overrides the normalizer built from config.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(m *Manager) { m.normalizer = n }
}

// NewManager creates a manager. No child is started until the first
// command.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	m := &Manager{
		cfg:      cfg,
		spawn:    SpawnPTY,
		version:  ExecVersion,
		clock:    realclock.New(),
		random:   realrand.New(),
		fs:       realfs.New(),
		logger:   logging.Discard(),
		analyzer: recovery.NewAnalyzer(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.filter == nil {
		f, err := buildFilter(cfg.Security)
		if err != nil {
			return nil, err
		}
		m.filter = f
	}
	if m.normalizer == nil {
		m.normalizer = buildNormalizer(cfg.Normalize, m.logger)
	}
	if m.credentials == nil {
		var ks *security.KeyringStore
		if cfg.Shell.UseKeyring {
			ks = security.NewKeyringStore(m.logger)
		}
		m.credentials = security.NewCredentials(m.fs, ks, m.clock, cfg.Security.CredentialTTL)
	}
	if m.limiter == nil {
		m.limiter = security.NewAuthRateLimiter(cfg.Security.MaxAuthFailures, cfg.Security.AuthLockout, m.clock)
	}
	return m, nil
}

func buildFilter(sc config.SecurityConfig) (*security.CommandFilter, error) {
	block := append([]string{}, sc.CommandBlocklist...)
	if sc.UseDefaultBlocklist {
		block = append(block, security.DefaultBlocklist()...)
	}
	f, err := security.NewCommandFilter(block, sc.CommandAllowlist)
	if err != nil {
		return nil, fmt.Errorf("build command filter: %w", err)
	}
	return f, nil
}

func buildNormalizer(nc config.NormalizeConfig, logger *slog.Logger) *normalize.Normalizer {
	opts := []normalize.Option{normalize.WithLogger(logger)}
	if nc.Lenient {
		opts = append(opts, normalize.WithLenient(nc.LenientTimeout))
	}
	return normalize.New(opts...)
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	timeout    time.Duration
	hasTimeout bool
}

// WithTimeout overrides the configured prompt timeout for one call.
func WithTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// ResolveTimeout returns the prompt timeout opts select, or def.
func ResolveTimeout(def time.Duration, opts ...ExecOption) time.Duration {
	var eo execOptions
	for _, opt := range opts {
		opt(&eo)
	}
	if eo.hasTimeout {
		return eo.timeout
	}
	return def
}

// Execute runs one code cell. It never returns a Go error: validation
// failures, shell faults and cancellation are all reported in the result.
func (m *Manager) Execute(ctx context.Context, code string, opts ...ExecOption) ExecutionResult {
	start := m.clock.Now()
	res := m.execute(ctx, code, opts)
	res.Duration = m.clock.Now().Sub(start)
	m.metrics.ObserveExecution(string(res.Status), res.Duration, res.Redraws)
	return res
}

func (m *Manager) execute(ctx context.Context, code string, opts []ExecOption) ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errorResult(StatusError, errSessionClosed, "")
	}

	cmd, err := shell.NewCommand(code)
	if err != nil {
		return errorResult(StatusError, err.Error(), m.sessionID())
	}
	if cmd.Sanitized == "" {
		return okResult("", nil, StreamStdout, m.sessionID())
	}
	if allowed, reason := m.filter.IsAllowed(cmd.Sanitized); !allowed {
		verr := &shell.ValidationError{Reason: "command blocked: " + reason}
		m.logger.Warn("command blocked",
			slog.String("command", logging.Truncate(cmd.Sanitized, logCommandLimit)),
			slog.String("reason", reason),
		)
		return errorResult(StatusError, verr.Error(), m.sessionID())
	}

	if m.child == nil {
		if err := m.start(ctx); err != nil {
			return errorResult(StatusError, err.Error(), "")
		}
	}
	c := m.child
	m.executions++

	timeout := ResolveTimeout(m.cfg.Shell.Timeout, opts...)

	m.logger.Info("command", slog.String("session_id", c.id), slog.String("command", logging.Truncate(cmd.Sanitized, logCommandLimit)))
	m.recorder.RecordInput(c.id, cmd.Sanitized)

	out, err := m.drain(ctx, c, cmd.Sanitized, timeout)
	redraws := out.Redraws
	if err == nil {
		var flush shell.DrainResult
		flush, err = m.drain(ctx, c, nopCommand, timeout)
		redraws += flush.Redraws
		out.Text = joinOutput(out.Text, flush.Text)
	}
	if err != nil {
		res := m.fault(ctx, c, err)
		res.Redraws = redraws
		return res
	}
	m.recorder.RecordOutput(c.id, out.Text)

	norm := m.normalizer.Normalize(out.Text)
	m.metrics.ObserveNormalized(norm.Kind.String())

	stream := StreamStdout
	if norm.Kind == normalize.None && normalize.IsLogLine(out.Text) {
		stream = StreamStderr
	}
	res := okResult(out.Text, norm.Structured(), stream, c.id)
	res.Redraws = redraws
	res.Hints = m.analyzer.Analyze(cmd.Sanitized, out.Text)
	return res
}

func (m *Manager) drain(ctx context.Context, c *child, line string, timeout time.Duration) (shell.DrainResult, error) {
	return shell.Drain(ctx, c.driver, line, shell.DrainOptions{
		Timeout:    timeout,
		MaxRedraws: m.cfg.Shell.MaxRedraws,
		IsIdle:     c.driver.Matcher().IsIdle,
		Logger:     m.logger,
	})
}

// fault turns a drain error into a result and replaces the child. Must be
// called with m.mu held.
func (m *Manager) fault(ctx context.Context, c *child, err error) ExecutionResult {
	m.lastErr = err.Error()

	status := StatusError
	reason := faultReason(err)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = StatusAbort
		reason = "abort"
		if eofErr := c.driver.SendEOF(); eofErr != nil {
			m.logger.Debug("send eof", slog.String("error", eofErr.Error()))
		}
	}

	m.logger.Warn("command failed, restarting shell",
		slog.String("session_id", c.id),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)

	var text string
	if status == StatusAbort {
		text = "execution interrupted"
	} else {
		text = err.Error()
	}

	if rerr := m.restart(reason); rerr != nil {
		res := errorResult(status, text+"\nrestarting mongo shell failed: "+rerr.Error(), "")
		res.Restarted = true
		return res
	}
	res := errorResult(status, text+"\nmongo shell restarted", m.child.id)
	res.Restarted = true
	return res
}

func faultReason(err error) string {
	var (
		incomplete *shell.IncompleteInputError
		timeout    *shell.TimeoutError
		ended      *shell.ProcessEndedError
		transport  *shell.TransportError
		exhausted  *shell.DrainExhaustedError
	)
	switch {
	case errors.As(err, &incomplete):
		return "incomplete"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &ended):
		return "process_ended"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &exhausted):
		return "drain_exhausted"
	default:
		return "error"
	}
}

// Restart replaces the child now. Without a running child it just starts
// one.
func (m *Manager) Restart(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New(errSessionClosed)
	}
	if reason == "" {
		reason = "requested"
	}
	if m.child != nil {
		m.stop(reason)
		m.restarts++
		m.metrics.ObserveRestart(reason)
	}
	return m.start(ctx)
}

// Status returns a snapshot of the manager.
func (m *Manager) Status() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		State:      StateNotStarted,
		Executions: m.executions,
		Restarts:   m.restarts,
		LastError:  m.lastErr,
	}
	switch {
	case m.closed:
		info.State = StateClosed
	case m.faulted:
		info.State = StateFaulted
	case m.child != nil:
		info.State = StateRunning
		info.SessionID = m.child.id
		info.Pid = m.child.pid()
		info.StartedAt = m.child.startedAt
		info.Recording = m.recorder.Path(m.child.id)
	}
	return info
}

// UpdateConfig applies a reloaded configuration. Spawn settings take effect
// on the next start; the filter and normalizer change immediately.
func (m *Manager) UpdateConfig(cfg *config.Config) error {
	f, err := buildFilter(cfg.Security)
	if err != nil {
		return err
	}
	n := buildNormalizer(cfg.Normalize, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.filter = f
	m.normalizer = n
	m.logger.Info("configuration updated")
	return nil
}

// Close stops the child. Later calls fail with "session closed".
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if m.child != nil {
		// Ask the shell to exit before the PTY is torn down.
		_ = m.child.driver.SendEOF()
	}
	m.stop("close")
	m.closed = true
	m.recorder.CloseAll()
	return nil
}

func (m *Manager) sessionID() string {
	if m.child == nil {
		return ""
	}
	return m.child.id
}

// joinOutput appends the flush output to the command output.
func joinOutput(text, flush string) string {
	switch {
	case flush == "":
		return text
	case text == "":
		return flush
	default:
		return text + "\n" + flush
	}
}

// lastLines returns at most n trailing non-blank lines of s, filtered of
// terminal codes.
func lastLines(s string, n int) string {
	var lines []string
	s = escape.Strip(strings.ReplaceAll(s, "\r\n", "\n"))
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
