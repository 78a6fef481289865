package shell

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/escape"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/prompt"
)

// DefaultMaxRedraws bounds the blank lines one drain may send.
const DefaultMaxRedraws = 256

// DrainOptions configures Drain.
type DrainOptions struct {
	Timeout    time.Duration             // per prompt wait; 0 waits indefinitely
	MaxRedraws int                       // default: DefaultMaxRedraws
	IsIdle     func(pending string) bool // default: pending is blank
	Logger     *slog.Logger
}

// DrainResult is the filtered output of one command.
type DrainResult struct {
	Text    string
	Raw     string
	Redraws int
}

// Drain sends line and collects its output. The shell repaints its prompt
// while output is still flushing, so after every primary prompt the pending
// bytes are checked: anything other than an idle redraw means more is coming,
// and a blank line is sent to provoke the next prompt. The concatenated
// output is passed through the escape filter once.
func Drain(ctx context.Context, c Conn, line string, opts DrainOptions) (DrainResult, error) {
	if opts.MaxRedraws <= 0 {
		opts.MaxRedraws = DefaultMaxRedraws
	}
	if opts.IsIdle == nil {
		opts.IsIdle = func(pending string) bool { return strings.TrimSpace(pending) == "" }
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if err := c.Send(line); err != nil {
		return DrainResult{}, err
	}
	logger.Debug("command sent, waiting for prompt")

	var chunks []string
	redraws := 0
	for {
		resp, err := c.AwaitPrompt(ctx, opts.Timeout)
		if err != nil {
			return DrainResult{Redraws: redraws}, err
		}
		if resp.Kind == prompt.Continuation {
			return DrainResult{Redraws: redraws}, &IncompleteInputError{Before: resp.Before}
		}

		chunks = append(chunks, resp.Before)
		if opts.IsIdle(c.Pending()) {
			break
		}

		if redraws >= opts.MaxRedraws {
			return DrainResult{Redraws: redraws}, &DrainExhaustedError{Redraws: redraws}
		}
		redraws++
		logger.Debug("buffer not empty, sending blank line", slog.Int("redraw", redraws))
		if err := c.Send(""); err != nil {
			return DrainResult{Redraws: redraws}, err
		}
	}

	raw := strings.Join(chunks, "")
	return DrainResult{
		Text:    escape.Filter(raw),
		Raw:     raw,
		Redraws: redraws,
	}, nil
}
