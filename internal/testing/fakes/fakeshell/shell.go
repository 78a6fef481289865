// Package fakeshell simulates the mongo shell's prompt protocol behind an
// io.ReadWriteCloser, for testing the driver and session without a real
// mongo binary.
package fakeshell

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/acolita/mongo-shell-mcp/internal/pty"
)

// IdleRedraw is what the fake prints after its prompt when it has nothing
// more to say.
const IdleRedraw = "\x1b[47G\x1b[J\x1b[47G"

// Reply scripts the shell's answer to one input line.
//
// Chunks[0] is printed before the prompt. Each further chunk is left pending
// after a prompt and released by the next blank line, which is how the real
// shell behaves while it is still repainting.
type Reply struct {
	Chunks       []string
	Continuation bool // answer with the "... " prompt
	Hang         bool // print nothing
	Exit         bool // end the output stream
}

// Output is a Reply that prints text followed by CRLF.
func Output(text string) Reply {
	if text == "" {
		return Reply{Chunks: []string{"\r\n"}}
	}
	return Reply{Chunks: []string{text + "\r\n"}}
}

// Script decides the replies for one shell.
type Script struct {
	Banner    string
	Responses map[string]Reply
	// Default answers lines missing from Responses; nil prints nothing.
	Default func(line string) Reply
	// AskPassword prints the login password request after the banner
	// instead of the first prompt, as the shell does for -u without -p.
	AskPassword bool
}

// PasswordRequest is what the shell prints when it wants a password.
const PasswordRequest = "Enter password: "

// Shell is one fake shell child.
type Shell struct {
	token  string
	opts   pty.Options
	script Script

	mu       sync.Mutex
	cond     *sync.Cond
	out      bytes.Buffer
	in       bytes.Buffer
	lines    []string
	pending  []string
	eof      bool
	closed   bool
	gotEOF   bool
	writeErr error
}

var errClosed = errors.New("fakeshell: closed")

// New starts a fake shell for opts and prints its banner and first prompt.
func New(opts pty.Options, script Script) *Shell {
	s := &Shell{token: opts.Token, opts: opts, script: script}
	s.cond = sync.NewCond(&s.mu)

	banner := script.Banner
	if banner == "" {
		banner = "MongoDB shell version v3.6.3\r\nconnecting to: mongodb://127.0.0.1:27017\r\n"
	}
	if script.AskPassword {
		s.out.WriteString(banner + PasswordRequest)
		return s
	}
	s.out.WriteString(banner + s.token + IdleRedraw)
	return s
}

// Token returns the prompt the shell was started with.
func (s *Shell) Token() string { return s.token }

// Options returns the spawn options.
func (s *Shell) Options() pty.Options { return s.opts }

// Read returns printed output, blocking until some is available.
func (s *Shell) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.out.Len() == 0 {
		if s.closed {
			return 0, errClosed
		}
		if s.eof {
			return 0, io.EOF
		}
		s.cond.Wait()
	}
	return s.out.Read(b)
}

// Write feeds input; each complete line is answered.
func (s *Shell) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}
	if s.writeErr != nil {
		return 0, s.writeErr
	}

	for _, c := range b {
		switch c {
		case '\x04':
			s.gotEOF = true
			s.out.WriteString("bye\r\n")
			s.eof = true
		case '\n':
			line := s.in.String()
			s.in.Reset()
			s.lines = append(s.lines, line)
			s.answerLocked(line)
		default:
			s.in.WriteByte(c)
		}
	}
	s.cond.Broadcast()
	return len(b), nil
}

func (s *Shell) answerLocked(line string) {
	if s.eof {
		return
	}

	if line == "" && len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.out.WriteString(s.token + next)
		return
	}
	if line == "" {
		s.out.WriteString(s.token + IdleRedraw)
		return
	}

	reply, ok := s.script.Responses[line]
	if !ok && s.script.Default != nil {
		reply = s.script.Default(line)
	}

	switch {
	case reply.Hang:
		return
	case reply.Exit:
		for _, c := range reply.Chunks {
			s.out.WriteString(c)
		}
		s.eof = true
		return
	case reply.Continuation:
		s.out.WriteString("... ")
		return
	}

	chunks := reply.Chunks
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	s.out.WriteString(chunks[0] + s.token)
	if len(chunks) == 1 {
		s.out.WriteString(IdleRedraw)
		return
	}
	s.out.WriteString(chunks[1])
	s.pending = append(append([]string{}, chunks[2:]...), IdleRedraw)
}

// Close ends the fake process. Blocked reads return an error.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

// Lines returns every input line received, in order.
func (s *Shell) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lines...)
}

// Closed reports whether Close was called.
func (s *Shell) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GotEOF reports whether Ctrl-D was written.
func (s *Shell) GotEOF() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotEOF
}

// FailWrites makes every further Write return err.
func (s *Shell) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Exit ends the output stream as if the process died.
func (s *Shell) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eof = true
	s.cond.Broadcast()
}

// Commands returns the non-blank input lines.
func (s *Shell) Commands() []string {
	var cmds []string
	for _, l := range s.Lines() {
		if strings.TrimSpace(l) != "" {
			cmds = append(cmds, l)
		}
	}
	return cmds
}

// Spawner hands out fake shells and records every spawn.
type Spawner struct {
	Script Script
	Err    error

	mu     sync.Mutex
	shells []*Shell
}

// NewSpawner returns a Spawner using script for every shell.
func NewSpawner(script Script) *Spawner {
	return &Spawner{Script: script}
}

// Spawn matches session.SpawnFunc.
func (sp *Spawner) Spawn(opts pty.Options) (io.ReadWriteCloser, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.Err != nil {
		return nil, sp.Err
	}
	s := New(opts, sp.Script)
	sp.shells = append(sp.shells, s)
	return s, nil
}

// Count returns how many shells were spawned.
func (sp *Spawner) Count() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.shells)
}

// Last returns the most recent shell, or nil.
func (sp *Spawner) Last() *Shell {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.shells) == 0 {
		return nil
	}
	return sp.shells[len(sp.shells)-1]
}

// Shells returns every shell spawned so far.
func (sp *Spawner) Shells() []*Shell {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return append([]*Shell{}, sp.shells...)
}
