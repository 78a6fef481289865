package shell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acolita/mongo-shell-mcp/internal/prompt"
)

type step struct {
	resp    Response
	pending string
	err     error
}

// scriptedConn replays one step per AwaitPrompt call.
type scriptedConn struct {
	steps   []step
	idx     int
	pending string
	sent    []string
	sendErr error
	// repeat reuses the last step forever.
	repeat bool
}

func (c *scriptedConn) Send(line string) error {
	if c.sendErr != nil {
		return &TransportError{Op: "send line", Err: c.sendErr}
	}
	c.sent = append(c.sent, line)
	return nil
}

func (c *scriptedConn) AwaitPrompt(ctx context.Context, timeout time.Duration) (Response, error) {
	if c.idx >= len(c.steps) {
		if !c.repeat {
			return Response{}, &ProcessEndedError{}
		}
		c.idx = len(c.steps) - 1
	}
	s := c.steps[c.idx]
	c.idx++
	c.pending = s.pending
	return s.resp, s.err
}

func (c *scriptedConn) Pending() string { return c.pending }

func primary(before, pending string) step {
	return step{resp: Response{Kind: prompt.Primary, Before: before}, pending: pending}
}

func idle(pending string) bool {
	p := strings.TrimSpace(pending)
	return p == "" || p == idleRedraw
}

func TestDrainImmediateIdle(t *testing.T) {
	c := &scriptedConn{steps: []step{primary("2\r\n", idleRedraw)}}

	res, err := Drain(context.Background(), c, "1+1", DrainOptions{IsIdle: idle})
	require.NoError(t, err)
	assert.Equal(t, "2", res.Text)
	assert.Equal(t, 0, res.Redraws)
	assert.Equal(t, []string{"1+1"}, c.sent)
}

func TestDrainRedrawsUntilIdle(t *testing.T) {
	c := &scriptedConn{steps: []step{
		primary("{ \"a\" : 1 }\r\n", "{ \"a\" : 2 }"),
		primary("{ \"a\" : 2 }\r\n", "\x1b[47G"),
		primary("", idleRedraw),
	}}

	res, err := Drain(context.Background(), c, "db.foo.find()", DrainOptions{IsIdle: idle})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Redraws)
	assert.Equal(t, []string{"db.foo.find()", "", ""}, c.sent)
	assert.Equal(t, "{ \"a\" : 1 }\r\n{ \"a\" : 2 }\r\n", res.Raw)
	assert.Equal(t, "{ \"a\" : 1 }\n{ \"a\" : 2 }", res.Text)
}

func TestDrainFiltersOnceOverConcatenation(t *testing.T) {
	c := &scriptedConn{steps: []step{
		primary("\x1b[1Gd", "more"),
		primary("\x1b[2Gdb", "more"),
		primary("\x1b[3Gdb.f", ""),
	}}

	res, err := Drain(context.Background(), c, "x", DrainOptions{})
	require.NoError(t, err)
	assert.Equal(t, "db.f", res.Text)
}

func TestDrainContinuation(t *testing.T) {
	c := &scriptedConn{steps: []step{
		{resp: Response{Kind: prompt.Continuation, Before: ""}},
	}}

	_, err := Drain(context.Background(), c, "if (true) {", DrainOptions{IsIdle: idle})
	var ierr *IncompleteInputError
	require.True(t, errors.As(err, &ierr), "want IncompleteInputError, got %v", err)
}

func TestDrainContinuationAfterRedraw(t *testing.T) {
	c := &scriptedConn{steps: []step{
		primary("x", "busy"),
		{resp: Response{Kind: prompt.Continuation}},
	}}

	_, err := Drain(context.Background(), c, "x", DrainOptions{IsIdle: idle})
	var ierr *IncompleteInputError
	assert.True(t, errors.As(err, &ierr))
}

func TestDrainExhausted(t *testing.T) {
	c := &scriptedConn{steps: []step{primary("x", "never idle")}, repeat: true}

	res, err := Drain(context.Background(), c, "x", DrainOptions{MaxRedraws: 3, IsIdle: idle})
	var eerr *DrainExhaustedError
	require.True(t, errors.As(err, &eerr), "want DrainExhaustedError, got %v", err)
	assert.Equal(t, 3, eerr.Redraws)
	assert.Equal(t, 3, res.Redraws)
	assert.Len(t, c.sent, 4, "the command plus three blank lines")
}

func TestDrainTerminatesWithinBound(t *testing.T) {
	for n := 0; n <= 10; n++ {
		steps := make([]step, 0, n+1)
		for i := 0; i < n; i++ {
			steps = append(steps, primary("line\r\n", "pending"))
		}
		steps = append(steps, primary("", idleRedraw))
		c := &scriptedConn{steps: steps}

		res, err := Drain(context.Background(), c, "x", DrainOptions{MaxRedraws: 10, IsIdle: idle})
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, n, res.Redraws)
	}
}

func TestDrainDefaultIdleIsBlank(t *testing.T) {
	c := &scriptedConn{steps: []step{primary("1", idleRedraw), primary("", "  \r\n")}}

	res, err := Drain(context.Background(), c, "x", DrainOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Redraws, "without configured idle redraws the escape sequence is not idle")
}

func TestDrainPropagatesErrors(t *testing.T) {
	timeout := &TimeoutError{Timeout: time.Second}
	c := &scriptedConn{steps: []step{{err: timeout}}}

	_, err := Drain(context.Background(), c, "x", DrainOptions{})
	assert.Same(t, timeout, err)

	c = &scriptedConn{sendErr: errors.New("closed")}
	_, err = Drain(context.Background(), c, "x", DrainOptions{})
	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
}

func TestDrainWithDriver(t *testing.T) {
	d, tty := newTestDriver(t)
	m := d.Matcher()

	// Output already queued: the result, a repaint, then the idle redraw.
	tty.emit("{ \"n\" : 1 }\r\n" + testToken + "\x1b[3G" + testToken + idleRedraw)

	res, err := Drain(context.Background(), d, "db.foo.findOne()", DrainOptions{
		Timeout: time.Second,
		IsIdle:  m.IsIdle,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Redraws)
	assert.Equal(t, "{ \"n\" : 1 }", res.Text)
	assert.Equal(t, "db.foo.findOne()\n\n", tty.Written())
}
