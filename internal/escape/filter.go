// Package escape strips terminal control sequences from shell output and
// collapses prompt redraws into the single line the user would see.
package escape

import (
	"regexp"
	"strings"
)

// ESC is the control-sequence introducer byte.
const ESC = "\x1b"

var (
	// cursorRe matches cursor positioning such as ESC[47G or ESC[2K.
	cursorRe = regexp.MustCompile(`\x1b\[\d+[A-Z]`)
	// eraseRe matches erase-to-end-of-line.
	eraseRe = regexp.MustCompile(`\x1b\[J`)
	// newlineRe matches a line ending with any number of carriage returns;
	// onlcr turns a written "\r\n" into "\r\r\n".
	newlineRe = regexp.MustCompile(`\r+\n`)
)

// Filter reduces cursor and erase sequences to bare ESC separators, splits
// on ESC and returns the most recent fragment that is not already contained
// in a later one. A shell that repaints the same line with progressively more
// content therefore yields only its final repaint.
//
// Filter is idempotent: the result never contains ESC, so filtering it again
// returns it unchanged.
func Filter(text string) string {
	if text == "" {
		return ""
	}

	// Each code collapses to a bare ESC so it still separates redraws.
	msg := cursorRe.ReplaceAllString(text, ESC)
	msg = eraseRe.ReplaceAllString(msg, ESC)
	msg = newlineRe.ReplaceAllString(msg, "\n")

	kept := Fragments(msg)
	if len(kept) == 0 {
		return ""
	}
	return kept[0]
}

// Fragments splits text on ESC, trims each piece and walks them from last to
// first, keeping a piece only when it is not a substring of the previously
// kept one. The most recent fragment comes first.
func Fragments(text string) []string {
	parts := strings.Split(text, ESC)

	var kept []string
	for i := len(parts) - 1; i >= 0; i-- {
		frag := strings.TrimSpace(parts[i])
		if frag == "" {
			continue
		}
		if len(kept) > 0 && strings.Contains(kept[len(kept)-1], frag) {
			continue
		}
		kept = append(kept, frag)
	}
	return kept
}

// Strip removes every ESC-introduced CSI sequence without collapsing
// redraws. Used for display of banners and log lines.
func Strip(text string) string {
	return csiRe.ReplaceAllString(text, "")
}

var csiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
