package shell

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"single", "db.foo.find()", "db.foo.find()"},
		{"blank lines dropped", "\n\ndb.foo.count()\n\n", "db.foo.count()"},
		{"comment lines dropped", "// count docs\ndb.foo.count()\n  // indented comment", "db.foo.count()"},
		{"trailing comment kept", "db.foo.count() // n", "db.foo.count() // n"},
		{"lines joined", "db.foo.find({\n  a: 1\n})", "db.foo.find({ a: 1 })"},
		{"crlf", "var x = 1;\r\nx", "var x = 1; x"},
		{"whitespace runs collapse", "db.foo.find(   {a:\t\t1})", "db.foo.find( {a: 1})"},
		{"single tab survives", "a\tb", "a\tb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestNewCommandLengthLimit(t *testing.T) {
	cmd, err := NewCommand(strings.Repeat("a", MaxCommandLength))
	require.NoError(t, err)
	assert.Len(t, cmd.Sanitized, MaxCommandLength)

	_, err = NewCommand(strings.Repeat("a", MaxCommandLength+1))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
	assert.Equal(t, MaxCommandLength+1, verr.Length)
	assert.Equal(t, MaxCommandLength, verr.Limit)
	assert.Contains(t, verr.Error(), "too long")
}

func TestNewCommandIndentationDoesNotCount(t *testing.T) {
	body := strings.Repeat("x", 500)
	raw := "if (1) {\n" + strings.Repeat(" ", 400) + body + "\n" + strings.Repeat("\t", 400) + body + "\n}"
	cmd, err := NewCommand(raw)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(cmd.Sanitized), MaxCommandLength)
	assert.Equal(t, raw, cmd.Raw)
}

func TestNewCommandCountsCharactersNotBytes(t *testing.T) {
	_, err := NewCommand(strings.Repeat("é", MaxCommandLength))
	assert.NoError(t, err)
}
