package prompt

import (
	"fmt"
	"strings"
)

// Match describes where a prompt sits in the scanned buffer.
type Match struct {
	Kind    Kind
	Pattern string
	Start   int
	End     int
}

// Matcher finds the primary or continuation prompt in unconsumed output and
// decides whether the text left behind a prompt is an idle redraw.
type Matcher struct {
	token    string
	patterns []Pattern
	idle     []string
}

// NewMatcher creates a matcher for one session's token. idle lists the byte
// sequences the shell leaves after its prompt when it has nothing left to
// print; surrounding whitespace in them is ignored.
func NewMatcher(token, continuation string, idle []string) (*Matcher, error) {
	patterns, err := Patterns(token, continuation)
	if err != nil {
		return nil, err
	}

	m := &Matcher{token: token, patterns: patterns}
	for _, p := range idle {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m.idle = append(m.idle, p)
	}
	return m, nil
}

// WithPasswordPrompt returns a copy of m that also recognizes a trailing
// password request. Use it for the startup wait only; command output that
// ends in "password:" must not be taken for a prompt.
func (m *Matcher) WithPasswordPrompt() *Matcher {
	c := *m
	c.patterns = append(append([]Pattern{}, m.patterns...), PasswordPattern)
	return &c
}

// Token returns the primary prompt token.
func (m *Matcher) Token() string {
	return m.token
}

// Match scans buffer and returns the first pattern that hits.
func (m *Matcher) Match(buffer string) Match {
	for _, p := range m.patterns {
		loc := p.Regex.FindStringIndex(buffer)
		if loc == nil {
			continue
		}
		if p.Trailing && loc[1] != len(buffer) {
			continue
		}
		return Match{Kind: p.Kind, Pattern: p.Name, Start: loc[0], End: loc[1]}
	}
	return Match{Kind: NoMatch, Start: -1, End: -1}
}

// IsIdle reports whether the text after a primary prompt means the shell has
// finished printing: it is blank or exactly one of the idle redraws.
func (m *Matcher) IsIdle(pending string) bool {
	pending = strings.TrimSpace(pending)
	if pending == "" {
		return true
	}
	for _, p := range m.idle {
		if pending == p {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer for log output.
func (m *Matcher) String() string {
	return fmt.Sprintf("prompt.Matcher{token=%s idle=%d}", m.token, len(m.idle))
}
