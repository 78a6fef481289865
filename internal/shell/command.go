// Package shell drives the mongo shell's prompt protocol: it sends one line,
// waits for a prompt and keeps nudging the shell until its output settles.
package shell

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxCommandLength is the longest sanitized command the PTY line discipline
// reliably accepts as one line.
const MaxCommandLength = 1024

var whitespaceRunRe = regexp.MustCompile(`\s{2,}`)

// Command is a submitted code cell and the single line sent for it.
type Command struct {
	Raw       string
	Sanitized string
}

// Sanitize drops blank and // comment lines, joins the rest with spaces and
// collapses whitespace runs.
func Sanitize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(strings.Join(kept, " "), " "))
}

// NewCommand sanitizes raw and enforces MaxCommandLength.
func NewCommand(raw string) (Command, error) {
	cmd := Command{Raw: raw, Sanitized: Sanitize(raw)}
	if n := utf8.RuneCountInString(cmd.Sanitized); n > MaxCommandLength {
		return cmd, &ValidationError{
			Reason: "code too long",
			Length: n,
			Limit:  MaxCommandLength,
		}
	}
	return cmd, nil
}
