package normalize

import (
	"strings"
	"time"
)

// logTimeLayouts are the timestamp shapes mongo shells and servers put at
// the start of a log line.
var logTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// IsLogLine reports whether text starts with a timestamp token. Such output
// is the shell's own diagnostics (connection errors, assertion traces) and
// belongs on the error stream.
func IsLogLine(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	first, _, _ := strings.Cut(text, " ")
	for _, layout := range logTimeLayouts {
		if _, err := time.Parse(layout, first); err == nil {
			return true
		}
	}
	return false
}
