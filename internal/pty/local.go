// Package pty starts the mongo shell under a pseudo-terminal.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// Options configures how the shell child is launched.
type Options struct {
	Path         string   // shell binary (default: mongo)
	Args         []string // extra arguments placed before the connection flags
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	AuthDatabase string
	Token        string // primary prompt installed by the preamble
	Term         string // TERM for the child (default: xterm)
	Rows         uint16 // default: 24
	Cols         uint16 // default: 200
	Env          []string
}

// Preamble is the script evaluated before the shell turns interactive. It
// installs the prompt token and two helpers: nop() for flush probes and
// dir(object) for completion.
func Preamble(token string) string {
	return strings.Join([]string{
		fmt.Sprintf("prompt = '%s'", token),
		`function dir(object) { attributes = []; for (attr in object) { attributes.push(attr); } attributes.sort(); return attributes; }`,
		`function nop() { return ""; }`,
	}, "; ")
}

// BuildArgs returns the argument vector (without the binary) for opts.
func BuildArgs(opts Options) []string {
	args := append([]string{}, opts.Args...)
	if opts.Host != "" {
		args = append(args, "--host", opts.Host)
	}
	if opts.Port != 0 {
		args = append(args, "--port", strconv.Itoa(opts.Port))
	}
	if opts.Username != "" {
		args = append(args, "-u", opts.Username)
		if opts.Password != "" {
			args = append(args, "-p", opts.Password)
		}
		if opts.AuthDatabase != "" {
			args = append(args, "--authenticationDatabase", opts.AuthDatabase)
		}
	}
	args = append(args, "--eval", Preamble(opts.Token), "--shell")
	if opts.Database != "" {
		args = append(args, opts.Database)
	}
	return args
}

// Process is a running shell child attached to a PTY.
type Process struct {
	cmd  *exec.Cmd
	pty  *os.File
	path string

	mu     sync.Mutex
	closed bool

	done    chan struct{}
	waitErr error
}

// Spawn starts the shell under a PTY with echo disabled, so the output
// stream holds only what the shell prints.
func Spawn(opts Options) (*Process, error) {
	if opts.Path == "" {
		opts.Path = "mongo"
	}
	if opts.Term == "" {
		opts.Term = "xterm"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 200
	}

	cmd := exec.Command(opts.Path, BuildArgs(opts)...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("TERM=%s", opts.Term))
	cmd.Env = append(cmd.Env, opts.Env...)

	var ptmx *os.File
	err := withDefaultInterrupt(func() error {
		var err error
		ptmx, err = pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	if err := disableEcho(ptmx); err != nil {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("disable echo: %w", err)
	}

	p := &Process{
		cmd:  cmd,
		pty:  ptmx,
		path: opts.Path,
		done: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the child's process ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Path returns the binary that was started.
func (p *Process) Path() string {
	return p.path
}

// Read reads from the PTY output.
func (p *Process) Read(b []byte) (int, error) {
	return p.pty.Read(b)
}

// Write writes to the PTY input.
func (p *Process) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

// Signal sends a signal to the shell process.
func (p *Process) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	return p.cmd.Process.Signal(sig)
}

// Interrupt sends SIGINT to the shell.
func (p *Process) Interrupt() error {
	return p.Signal(syscall.SIGINT)
}

// Exited reports whether the child has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.waitErr
}

// Close kills the shell and releases the PTY. It is safe to call twice.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if !p.Exited() {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill process: %w", err))
		}
	}
	if err := p.pty.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pty: %w", err))
	}
	return errors.Join(errs...)
}
