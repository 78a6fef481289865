// Package repl is a line-oriented terminal front end for the session
// manager, used to try the shell protocol without an MCP client.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"

	"github.com/acolita/mongo-shell-mcp/internal/session"
)

// Executor runs one code cell.
type Executor interface {
	Execute(ctx context.Context, code string, opts ...session.ExecOption) session.ExecutionResult
}

// Styles colours the REPL's own output. Shell output is never styled.
type Styles struct {
	Prompt     lipgloss.Style
	Error      lipgloss.Style
	Abort      lipgloss.Style
	Notice     lipgloss.Style
	Structured lipgloss.Style
}

// DefaultStyles returns the terminal colour scheme.
func DefaultStyles() Styles {
	return Styles{
		Prompt:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("70")),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Abort:      lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true),
		Notice:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		Structured: lipgloss.NewStyle().Foreground(lipgloss.Color("110")),
	}
}

// PlainStyles renders everything unstyled.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{Prompt: s, Error: s, Abort: s, Notice: s, Structured: s}
}

// InterruptFunc derives the context of one command. The default cancels it
// on SIGINT, so Ctrl-C aborts the command instead of the REPL.
type InterruptFunc func(parent context.Context) (context.Context, context.CancelFunc)

// REPL reads code lines and prints their results.
type REPL struct {
	exec      Executor
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	styles    Styles
	prompt    string
	interrupt InterruptFunc
	showJSON  bool
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(r *REPL) {
		r.in = in
		r.out = out
		r.errOut = errOut
	}
}

// WithStyles sets the colour scheme.
func WithStyles(s Styles) Option {
	return func(r *REPL) { r.styles = s }
}

// WithPrompt sets the input prompt.
func WithPrompt(p string) Option {
	return func(r *REPL) { r.prompt = p }
}

// WithInterrupt replaces the per-command cancellation source.
func WithInterrupt(fn InterruptFunc) Option {
	return func(r *REPL) { r.interrupt = fn }
}

// WithStructured prints the decoded value after the plain text.
func WithStructured(show bool) Option {
	return func(r *REPL) { r.showJSON = show }
}

// New creates a REPL reading stdin.
func New(exec Executor, opts ...Option) *REPL {
	r := &REPL{
		exec:   exec,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		styles: DefaultStyles(),
		prompt: "> ",
		interrupt: func(parent context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(parent, os.Interrupt)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until EOF, "exit" or "quit", or until ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.out, r.styles.Prompt.Render(r.prompt))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "exit", "quit":
			return nil
		}

		cmdCtx, cancel := r.interrupt(ctx)
		res := r.exec.Execute(cmdCtx, line)
		cancel()
		r.render(res)
	}
}

func (r *REPL) render(res session.ExecutionResult) {
	switch res.Status {
	case session.StatusOK:
		w := r.out
		if res.Stream == session.StreamStderr {
			w = r.errOut
		}
		if res.PlainText != "" {
			fmt.Fprintln(w, res.PlainText)
		}
		if r.showJSON && res.Structured != nil {
			data, err := sonic.ConfigStd.Marshal(res.Structured)
			if err == nil {
				fmt.Fprintln(r.out, r.styles.Structured.Render("=> "+string(data)))
			}
		}
		for _, h := range res.Hints {
			fmt.Fprintln(r.errOut, r.styles.Notice.Render("hint: "+h.Explanation))
			for _, c := range h.Commands {
				fmt.Fprintln(r.errOut, r.styles.Notice.Render("  try: "+c))
			}
		}

	case session.StatusAbort:
		fmt.Fprintln(r.errOut, r.styles.Abort.Render(" aborted "))
		r.renderLines(r.errOut, res.ErrorText)

	default:
		r.renderLines(r.errOut, res.ErrorText)
	}
}

// renderLines styles each line on its own; lipgloss pads multi-line blocks
// to a common width.
func (r *REPL) renderLines(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		style := r.styles.Error
		if strings.HasPrefix(line, "mongo shell restarted") || strings.HasPrefix(line, "restarting") {
			style = r.styles.Notice
		}
		fmt.Fprintln(w, style.Render(line))
	}
}
