package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/acolita/mongo-shell-mcp/internal/prompt"
	"github.com/acolita/mongo-shell-mcp/internal/pty"
	"github.com/acolita/mongo-shell-mcp/internal/recording"
	"github.com/acolita/mongo-shell-mcp/internal/security"
	"github.com/acolita/mongo-shell-mcp/internal/shell"
)

// SpawnFunc starts a shell child and returns its terminal stream.
type SpawnFunc func(opts pty.Options) (io.ReadWriteCloser, error)

// SpawnPTY starts the real mongo binary under a PTY.
func SpawnPTY(opts pty.Options) (io.ReadWriteCloser, error) {
	p, err := pty.Spawn(opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// child is one running shell with its own prompt token and session ID.
type child struct {
	id        string
	token     string
	rwc       io.ReadWriteCloser
	driver    *shell.Driver
	startedAt time.Time
	greeting  string
}

func (c *child) pid() int {
	if p, ok := c.rwc.(interface{ Pid() int }); ok {
		return p.Pid()
	}
	return 0
}

// start spawns a child and waits for its first prompt, which consumes the
// connection banner. A failure leaves the manager faulted until the next
// successful start. Must be called with m.mu held.
func (m *Manager) start(ctx context.Context) (err error) {
	defer func() {
		m.faulted = err != nil
		if err != nil {
			m.lastErr = err.Error()
		}
	}()

	cfg := m.cfg.Shell

	if locked, remaining := m.limiter.IsLocked(cfg.Host, cfg.Username); locked {
		return fmt.Errorf("shell startup for %s@%s locked after repeated failures, retry in %s",
			cfg.Username, cfg.Host, remaining.Round(time.Second))
	}

	token, err := prompt.NewToken(m.random)
	if err != nil {
		return fmt.Errorf("generate prompt token: %w", err)
	}
	matcher, err := prompt.NewMatcher(token, cfg.ContinuationPattern, cfg.IdlePatterns)
	if err != nil {
		return fmt.Errorf("build prompt matcher: %w", err)
	}
	id, err := uuid.NewRandomFromReader(m.random)
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}

	src := security.PasswordSource{
		Host:       cfg.Host,
		User:       cfg.Username,
		Env:        cfg.PasswordEnv,
		UseKeyring: cfg.UseKeyring,
	}
	password, err := m.credentials.Password(src)
	if err != nil {
		return fmt.Errorf("resolve password: %w", err)
	}
	defer security.WipeBytes(password)

	opts := pty.Options{
		Path:         cfg.Path,
		Args:         cfg.Args,
		Host:         cfg.Host,
		Port:         cfg.Port,
		Database:     cfg.Database,
		Username:     cfg.Username,
		Password:     string(password),
		AuthDatabase: cfg.AuthDatabase,
		Token:        token,
		Term:         cfg.Term,
	}

	rwc, err := m.spawn(opts)
	if err != nil {
		m.metrics.ObserveSpawnFailure()
		return fmt.Errorf("spawn mongo shell: %w", err)
	}

	driver := shell.NewDriver(rwc, matcher.WithPasswordPrompt(),
		shell.WithClock(m.clock),
		shell.WithLogger(m.logger.With(slog.String("session_id", id.String()))),
	)

	resp, err := driver.AwaitPrompt(ctx, cfg.Timeout)
	if err == nil {
		switch resp.Kind {
		case prompt.Primary:
		case prompt.Password:
			err = &PasswordRequiredError{User: cfg.Username}
		default:
			err = errors.New("shell started in continuation mode")
		}
	}
	if err != nil {
		driver.Close()
		_ = rwc.Close()
		m.metrics.ObserveSpawnFailure()
		var ended *shell.ProcessEndedError
		if errors.As(err, &ended) {
			// Died before its first prompt: bad credentials or no server.
			m.limiter.RecordFailure(cfg.Host, cfg.Username)
			m.credentials.Forget(src)
			if out := ended.Before; out != "" {
				return fmt.Errorf("mongo shell exited during startup: %s", lastLines(out, 3))
			}
		}
		var pwErr *PasswordRequiredError
		if errors.As(err, &pwErr) {
			return err
		}
		return fmt.Errorf("wait for first prompt: %w", err)
	}
	driver.SetMatcher(matcher)
	m.limiter.RecordSuccess(cfg.Host, cfg.Username)

	c := &child{
		id:        id.String(),
		token:     token,
		rwc:       rwc,
		driver:    driver,
		startedAt: m.clock.Now(),
		greeting:  resp.Before,
	}
	m.child = c
	m.metrics.SetRunning(true)

	if err := m.recorder.Start(recording.Meta{
		SessionID: c.id,
		Shell:     cfg.Path,
		Term:      cfg.Term,
		Width:     200,
		Height:    24,
	}); err != nil {
		m.logger.Warn("start recording", slog.String("error", err.Error()))
	}
	m.recorder.RecordOutput(c.id, resp.Before)

	m.logger.Info("mongo shell started",
		slog.String("session_id", c.id),
		slog.Int("pid", c.pid()),
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)
	return nil
}

// PasswordRequiredError means the shell asked for a password on its
// terminal instead of printing its first prompt.
type PasswordRequiredError struct {
	User string
}

func (e *PasswordRequiredError) Error() string {
	if e.User == "" {
		return "mongo shell asked for a password (set shell.username with shell.password_env or the keyring)"
	}
	return fmt.Sprintf("password required for user %s (set shell.password_env or the keyring)", e.User)
}

// stop tears down the current child. Must be called with m.mu held.
func (m *Manager) stop(reason string) {
	c := m.child
	if c == nil {
		return
	}
	m.child = nil

	c.driver.Close()
	if err := c.rwc.Close(); err != nil {
		m.logger.Debug("close shell", slog.String("error", err.Error()))
	}
	m.recorder.RecordMarker(c.id, reason)
	if err := m.recorder.Stop(c.id); err != nil {
		m.logger.Warn("stop recording", slog.String("error", err.Error()))
	}
	m.metrics.SetRunning(false)

	m.logger.Info("mongo shell stopped",
		slog.String("session_id", c.id),
		slog.String("reason", reason),
	)
}

// restart replaces the child after a fault. A failed respawn leaves the
// manager faulted; the next call tries to spawn again. Must be called with
// m.mu held.
func (m *Manager) restart(reason string) error {
	m.stop(reason)
	m.restarts++
	m.metrics.ObserveRestart(reason)

	timeout := m.cfg.Shell.Timeout
	if timeout <= 0 {
		timeout = restartTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := m.start(ctx); err != nil {
		m.logger.Error("restart mongo shell", slog.String("error", err.Error()))
		return err
	}
	return nil
}
