// Package prompt recognizes the mongo shell's prompts in its output stream.
package prompt

import (
	"fmt"
	"io"
	"regexp"

	"github.com/google/uuid"
)

// Kind indicates which prompt was seen.
type Kind int

const (
	NoMatch Kind = iota
	Primary
	Continuation
	// Password is the shell asking for a login password. Only matched
	// while waiting for the first prompt.
	Password
)

func (k Kind) String() string {
	switch k {
	case Primary:
		return "primary"
	case Continuation:
		return "continuation"
	case Password:
		return "password"
	default:
		return "none"
	}
}

// Pattern is one entry of the matcher's table. Patterns are tried in table
// order and the first hit wins.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
	Kind  Kind
	// Trailing patterns only count when the match ends the buffer, so
	// command output that merely contains the text is not a prompt.
	Trailing bool
}

// DefaultContinuation is the legacy shell's "..." prompt.
const DefaultContinuation = `\.\.\. $`

// Patterns builds the ordered table for a session: the literal primary
// token first, then the continuation expression.
func Patterns(token, continuation string) ([]Pattern, error) {
	if token == "" {
		return nil, fmt.Errorf("primary prompt token is empty")
	}
	if continuation == "" {
		continuation = DefaultContinuation
	}
	cont, err := regexp.Compile(`(?:` + continuation + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("compile continuation pattern: %w", err)
	}
	return []Pattern{
		{
			Name:  "primary",
			Regex: regexp.MustCompile(regexp.QuoteMeta(token)),
			Kind:  Primary,
		},
		{
			Name:     "continuation",
			Regex:    cont,
			Kind:     Continuation,
			Trailing: true,
		},
	}, nil
}

// PasswordPattern matches a trailing password request such as the legacy
// shell's "Enter password: " when -u is given without -p.
var PasswordPattern = Pattern{
	Name:     "password",
	Regex:    regexp.MustCompile(`(?i)(?:password|passphrase)[^\n:]*:\s*\z`),
	Kind:     Password,
	Trailing: true,
}

// NewToken returns a fresh primary prompt of the form mongo<uuid>mongo.
// The UUID makes it impossible for command output to contain it by accident.
func NewToken(r io.Reader) (string, error) {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", fmt.Errorf("generate prompt token: %w", err)
	}
	return "mongo" + id.String() + "mongo", nil
}
