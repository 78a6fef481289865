// Package normalize recovers structured values from the mongo shell's
// human-oriented output.
package normalize

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/acolita/mongo-shell-mcp/internal/logging"
)

// Kind says how much structure a Result carries.
type Kind int

const (
	// None: nothing parsed; only Text is meaningful.
	None Kind = iota
	// Single: the whole text parsed as one value.
	Single
	// Lines: one value per parsed line.
	Lines
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Lines:
		return "lines"
	default:
		return "none"
	}
}

// Result is the decoded form of one command's output. Text always holds the
// full plain output, whether or not anything parsed.
type Result struct {
	Text   string
	Kind   Kind
	Value  any
	Values []any
}

// Structured returns the single value, the line list, or nil.
func (r Result) Structured() any {
	switch r.Kind {
	case Single:
		return r.Value
	case Lines:
		return r.Values
	default:
		return nil
	}
}

// strict decodes numbers as json.Number so 64-bit integers survive.
var strict = sonic.Config{UseNumber: true}.Froze()

// Normalizer decodes shell output. It is safe for concurrent use.
type Normalizer struct {
	rules  []Rule
	logger *slog.Logger

	lenient        bool
	lenientTimeout time.Duration
	jsMu           sync.Mutex
	js             *jsDecoder
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRules replaces the rewrite table.
func WithRules(rules []Rule) Option {
	return func(n *Normalizer) { n.rules = rules }
}

// WithLenient evaluates lines that still fail strict parsing as JavaScript
// literals in a sandbox, each bounded by timeout.
func WithLenient(timeout time.Duration) Option {
	return func(n *Normalizer) {
		n.lenient = true
		n.lenientTimeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// New creates a Normalizer with the default rewrite table.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		rules:          DefaultRules(),
		logger:         logging.Discard(),
		lenientTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize never fails. The whole text is tried first as one value; failing
// that, each non-blank line is rewritten and parsed on its own and lines that
// still do not parse are dropped from the structured list.
func (n *Normalizer) Normalize(text string) Result {
	res := Result{Text: text}
	if strings.TrimSpace(text) == "" {
		return res
	}

	var whole any
	if err := strict.UnmarshalFromString(text, &whole); err == nil {
		res.Kind = Single
		res.Value = whole
		return res
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, ok := n.parseLine(line)
		if !ok {
			continue
		}
		res.Values = append(res.Values, v)
	}
	if len(res.Values) > 0 {
		res.Kind = Lines
	}
	return res
}

func (n *Normalizer) parseLine(line string) (any, bool) {
	rewritten := Rewrite(n.rules, line)

	var v any
	if err := strict.UnmarshalFromString(rewritten, &v); err == nil {
		return v, true
	}
	if !n.lenient {
		return nil, false
	}

	v, err := n.evalLenient(line)
	if err != nil {
		n.logger.Debug("line not decoded",
			slog.String("line", logging.Truncate(line, 200)),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return v, true
}

func (n *Normalizer) evalLenient(line string) (any, error) {
	n.jsMu.Lock()
	defer n.jsMu.Unlock()

	if n.js == nil {
		js, err := newJSDecoder()
		if err != nil {
			return nil, err
		}
		n.js = js
	}
	return n.js.decode(line, n.lenientTimeout)
}
