package shell

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/adapters/realclock"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/ports"
	"github.com/acolita/mongo-shell-mcp/internal/prompt"
)

// Response is what one prompt wait captured.
type Response struct {
	Kind   prompt.Kind
	Before string // output preceding the prompt
}

// Conn is the capability the drain loop needs from a driver.
type Conn interface {
	Send(line string) error
	AwaitPrompt(ctx context.Context, timeout time.Duration) (Response, error)
	Pending() string
}

// Driver owns the I/O with one shell child. A background pump reads the
// child's output so a prompt wait can also select on cancellation and the
// timeout. Driver methods must not be called concurrently.
type Driver struct {
	rw      io.ReadWriter
	matcher *prompt.Matcher
	clock   ports.Clock
	logger  *slog.Logger

	chunks  chan []byte
	done    chan struct{}
	readErr error
	once    sync.Once

	buf string
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithClock sets the clock used for prompt timeouts.
func WithClock(c ports.Clock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithLogger sets the driver's logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// NewDriver starts reading rw and matches its output against m.
func NewDriver(rw io.ReadWriter, m *prompt.Matcher, opts ...DriverOption) *Driver {
	d := &Driver{
		rw:      rw,
		matcher: m,
		clock:   realclock.New(),
		logger:  logging.Discard(),
		chunks:  make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.pump()
	return d
}

func (d *Driver) pump() {
	defer close(d.chunks)

	buf := make([]byte, 4096)
	for {
		n, err := d.rw.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case d.chunks <- data:
			case <-d.done:
				return
			}
		}
		if err != nil {
			d.readErr = err
			return
		}
	}
}

// Matcher returns the prompt matcher.
func (d *Driver) Matcher() *prompt.Matcher {
	return d.matcher
}

// SetMatcher replaces the prompt matcher for later waits.
func (d *Driver) SetMatcher(m *prompt.Matcher) {
	d.matcher = m
}

// Send writes line and a newline to the shell.
func (d *Driver) Send(line string) error {
	if _, err := io.WriteString(d.rw, line+"\n"); err != nil {
		return &TransportError{Op: "send line", Err: err}
	}
	return nil
}

// SendEOF delivers end-of-input (Ctrl-D).
func (d *Driver) SendEOF() error {
	if _, err := io.WriteString(d.rw, "\x04"); err != nil {
		return &TransportError{Op: "send eof", Err: err}
	}
	return nil
}

// Pending returns output received after the last matched prompt.
func (d *Driver) Pending() string {
	return d.buf
}

// AwaitPrompt blocks until the primary or continuation prompt appears in
// unconsumed output. The text before the prompt is returned and the text
// after it stays pending. A zero timeout waits indefinitely.
func (d *Driver) AwaitPrompt(ctx context.Context, timeout time.Duration) (Response, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		expired = d.clock.After(timeout)
	}

	for {
		if m := d.matcher.Match(d.buf); m.Kind != prompt.NoMatch {
			resp := Response{Kind: m.Kind, Before: d.buf[:m.Start]}
			d.buf = d.buf[m.End:]
			return resp, nil
		}

		select {
		case data, ok := <-d.chunks:
			if !ok {
				// readErr is written before chunks is closed.
				return Response{}, &ProcessEndedError{Err: normalizeReadErr(d.readErr), Before: d.buf}
			}
			if d.logger.Enabled(ctx, slog.LevelDebug) {
				d.logger.Debug("shell output", slog.Int("bytes", len(data)), slog.String("hex", logging.HexDump(data, 64)))
			}
			d.buf += string(data)

		case <-ctx.Done():
			return Response{}, &CancelledError{Err: ctx.Err()}

		case <-expired:
			return Response{}, &TimeoutError{Timeout: timeout, Before: d.buf}
		}
	}
}

// Collect takes everything pending plus whatever arrives until the stream
// has been quiet for quiet, without looking for prompts. The collected text
// is no longer pending afterwards.
func (d *Driver) Collect(ctx context.Context, quiet time.Duration) (string, error) {
	defer func() { d.buf = "" }()

	for {
		select {
		case data, ok := <-d.chunks:
			if !ok {
				return d.buf, &ProcessEndedError{Err: normalizeReadErr(d.readErr), Before: d.buf}
			}
			d.buf += string(data)

		case <-ctx.Done():
			return d.buf, &CancelledError{Err: ctx.Err()}

		case <-d.clock.After(quiet):
			return d.buf, nil
		}
	}
}

// Close stops the pump. It does not close the underlying stream; the pump
// exits once the owner closes it.
func (d *Driver) Close() {
	d.once.Do(func() { close(d.done) })
}

// normalizeReadErr hides the EOF/EIO a PTY master returns when the child
// exits; anything else is reported.
func normalizeReadErr(err error) error {
	if err == nil || err == io.EOF || isEIO(err) {
		return nil
	}
	return err
}
