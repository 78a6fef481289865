package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acolita/mongo-shell-mcp/internal/prompt"
	"github.com/acolita/mongo-shell-mcp/internal/testing/fakes/fakeclock"
)

const (
	testToken  = "mongo5f0c2c8e-1111-4222-8333-944455556666mongo"
	idleRedraw = "\x1b[47G\x1b[J\x1b[47G"
)

// pipeTTY stands in for a PTY master: the test emits shell output into it
// and inspects what the driver wrote.
type pipeTTY struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
}

func newPipeTTY() *pipeTTY {
	r, w := io.Pipe()
	return &pipeTTY{r: r, w: w}
}

func (p *pipeTTY) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipeTTY) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *pipeTTY) emit(s string) {
	go func() { _, _ = p.w.Write([]byte(s)) }()
}

func (p *pipeTTY) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func newTestMatcher(t *testing.T) *prompt.Matcher {
	t.Helper()
	m, err := prompt.NewMatcher(testToken, "", []string{idleRedraw})
	require.NoError(t, err)
	return m
}

func newTestDriver(t *testing.T, opts ...DriverOption) (*Driver, *pipeTTY) {
	t.Helper()
	tty := newPipeTTY()
	d := NewDriver(tty, newTestMatcher(t), opts...)
	t.Cleanup(func() {
		d.Close()
		_ = tty.w.Close()
	})
	return d, tty
}

func TestDriverAwaitPrimary(t *testing.T) {
	d, tty := newTestDriver(t)
	tty.emit("2\r\n" + testToken + idleRedraw)

	resp, err := d.AwaitPrompt(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, prompt.Primary, resp.Kind)
	assert.Equal(t, "2\r\n", resp.Before)
	assert.Equal(t, idleRedraw, d.Pending())
}

func TestDriverAwaitAcrossChunks(t *testing.T) {
	d, tty := newTestDriver(t)
	go func() {
		_, _ = tty.w.Write([]byte("{ \"n\" : 1 }\r\nmongo5f0c"))
		_, _ = tty.w.Write([]byte(testToken[9:]))
	}()

	resp, err := d.AwaitPrompt(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, prompt.Primary, resp.Kind)
	assert.Equal(t, "{ \"n\" : 1 }\r\n", resp.Before)
	assert.Empty(t, d.Pending())
}

func TestDriverMatchesPendingFirst(t *testing.T) {
	d, tty := newTestDriver(t)
	tty.emit("a" + testToken + "b" + testToken)

	first, err := d.AwaitPrompt(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Before)

	// The second prompt is already buffered; no new output is needed.
	second, err := d.AwaitPrompt(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", second.Before)
}

func TestDriverAwaitContinuation(t *testing.T) {
	d, tty := newTestDriver(t)
	tty.emit("... ")

	resp, err := d.AwaitPrompt(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, prompt.Continuation, resp.Kind)
}

func TestDriverTimeout(t *testing.T) {
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d, _ := newTestDriver(t, WithClock(clock))

	errCh := make(chan error, 1)
	go func() {
		_, err := d.AwaitPrompt(context.Background(), 5*time.Second)
		errCh <- err
	}()

	require.True(t, clock.WaitForTimer(2*time.Second), "AwaitPrompt never armed its timer")
	clock.Advance(5 * time.Second)

	select {
	case err := <-errCh:
		var terr *TimeoutError
		require.True(t, errors.As(err, &terr), "want TimeoutError, got %v", err)
		assert.Equal(t, 5*time.Second, terr.Timeout)
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitPrompt did not time out")
	}
}

func TestDriverZeroTimeoutArmsNoTimer(t *testing.T) {
	clock := fakeclock.New(time.Now())
	d, tty := newTestDriver(t, WithClock(clock))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.AwaitPrompt(context.Background(), 0)
	}()

	assert.False(t, clock.WaitForTimer(100*time.Millisecond))
	tty.emit(testToken)
	<-done
}

func TestDriverProcessEnded(t *testing.T) {
	d, tty := newTestDriver(t)
	go func() {
		_, _ = tty.w.Write([]byte("partial"))
		_ = tty.w.Close()
	}()

	_, err := d.AwaitPrompt(context.Background(), time.Second)
	var perr *ProcessEndedError
	require.True(t, errors.As(err, &perr), "want ProcessEndedError, got %v", err)
	assert.NoError(t, perr.Err, "EOF is a normal end of stream")
	assert.Equal(t, "partial", perr.Before)
}

func TestDriverProcessEndedWithError(t *testing.T) {
	d, tty := newTestDriver(t)
	boom := errors.New("device gone")
	_ = tty.w.CloseWithError(boom)

	_, err := d.AwaitPrompt(context.Background(), time.Second)
	var perr *ProcessEndedError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, boom)
}

func TestDriverCancelled(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := d.AwaitPrompt(ctx, 0)
		errCh <- err
	}()
	cancel()

	err := <-errCh
	var cerr *CancelledError
	require.True(t, errors.As(err, &cerr), "want CancelledError, got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriverCollectKeepsRedrawnPrompt(t *testing.T) {
	d, tty := newTestDriver(t)
	tty.emit("2\r\n" + testToken)

	_, err := d.AwaitPrompt(context.Background(), time.Second)
	require.NoError(t, err)

	tty.emit(idleRedraw + testToken + idleRedraw)
	got, err := d.Collect(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, idleRedraw+testToken+idleRedraw, got)
	assert.Empty(t, d.Pending())
}

func TestDriverCollectProcessEnded(t *testing.T) {
	d, tty := newTestDriver(t)
	go func() {
		_, _ = tty.w.Write([]byte("bye\r\n"))
		_ = tty.w.Close()
	}()

	got, err := d.Collect(context.Background(), time.Second)
	var perr *ProcessEndedError
	require.True(t, errors.As(err, &perr), "want ProcessEndedError, got %v", err)
	assert.Equal(t, "bye\r\n", got)
}

func TestDriverSend(t *testing.T) {
	d, tty := newTestDriver(t)

	require.NoError(t, d.Send("db.foo.count()"))
	require.NoError(t, d.Send(""))
	require.NoError(t, d.SendEOF())
	assert.Equal(t, "db.foo.count()\n\n\x04", tty.Written())
}

func TestDriverSendFailure(t *testing.T) {
	d, tty := newTestDriver(t)
	tty.writeErr = errors.New("input/output error")

	err := d.Send("1+1")
	var terr *TransportError
	require.True(t, errors.As(err, &terr), "want TransportError, got %v", err)
	assert.Equal(t, "send line", terr.Op)

	err = d.SendEOF()
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "send eof", terr.Op)
}
