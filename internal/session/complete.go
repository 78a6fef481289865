package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

// Complete returns attribute names for the expression ending at cursor,
// a rune offset into code. "db.us" completes against dir(db); a bare
// identifier completes against the global object.
func (m *Manager) Complete(ctx context.Context, code string, cursor int) (Completion, error) {
	if cursor < 0 || cursor > utf8.RuneCountInString(code) {
		cursor = utf8.RuneCountInString(code)
	}
	prefix := string([]rune(code)[:cursor])

	object, partial, ok := completionTarget(prefix)
	comp := Completion{
		Matches:     []string{},
		CursorStart: cursor - utf8.RuneCountInString(partial),
		CursorEnd:   cursor,
	}
	if !ok {
		return comp, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return comp, errors.New(errSessionClosed)
	}
	if m.child == nil {
		if err := m.start(ctx); err != nil {
			m.lastErr = err.Error()
			return comp, err
		}
	}
	c := m.child

	out, err := m.drain(ctx, c, "dir("+object+")", m.cfg.Shell.Timeout)
	if err != nil {
		res := m.fault(ctx, c, err)
		return comp, fmt.Errorf("complete %q: %s", object, res.ErrorText)
	}

	norm := m.normalizer.Normalize(out.Text)
	names, ok := norm.Value.([]any)
	if !ok {
		m.logger.Debug("completion output not a list",
			slog.String("object", object),
			slog.String("output", out.Text),
		)
		return comp, nil
	}
	for _, n := range names {
		if s, ok := n.(string); ok && strings.HasPrefix(s, partial) {
			comp.Matches = append(comp.Matches, s)
		}
	}
	sort.Strings(comp.Matches)
	return comp, nil
}

// completionTarget splits the trailing dotted identifier of prefix into the
// object to list and the partial attribute name. Only identifier characters
// reach the shell.
func completionTarget(prefix string) (object, partial string, ok bool) {
	i := len(prefix)
	for i > 0 && isIdentByte(prefix[i-1]) {
		i--
	}
	expr := prefix[i:]
	if expr == "" && i > 0 && prefix[i-1] != ' ' && prefix[i-1] != '(' && prefix[i-1] != ';' {
		return "", "", false
	}

	dot := strings.LastIndexByte(expr, '.')
	if dot < 0 {
		return "this", expr, true
	}
	object, partial = expr[:dot], expr[dot+1:]
	if object == "" || strings.HasPrefix(object, ".") || strings.HasSuffix(object, ".") || strings.Contains(object, "..") {
		return "", partial, false
	}
	if c := object[0]; c >= '0' && c <= '9' {
		return "", partial, false
	}
	return object, partial, true
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
