package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Rule rewrites one mongo shell literal notation into an extended-JSON
// marker object. In Template, ${N} inserts capture N escaped for use inside a
// JSON string; the template supplies any surrounding quotes.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Template string
}

var placeholderRe = regexp.MustCompile(`\$\{(\d+)\}`)

// Apply rewrites every occurrence of the rule's notation in line.
func (r Rule) Apply(line string) string {
	return r.Pattern.ReplaceAllStringFunc(line, func(match string) string {
		groups := r.Pattern.FindStringSubmatch(match)
		return placeholderRe.ReplaceAllStringFunc(r.Template, func(ph string) string {
			n, _ := strconv.Atoi(ph[2 : len(ph)-1])
			if n >= len(groups) {
				return ""
			}
			return escapeJSON(groups[n])
		})
	})
}

// escapeJSON returns s escaped as the body of a JSON string.
func escapeJSON(s string) string {
	quoted, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return s
	}
	return strings.TrimSuffix(strings.TrimPrefix(quoted, `"`), `"`)
}

// DefaultRules is the rewrite table, applied top to bottom to each line.
// The first four rows are the shell's common notations; the rest cover the
// remaining BSON wrappers the legacy shell prints.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "write_result",
			Pattern:  regexp.MustCompile(`WriteResult\((.*?)\)`),
			Template: `{"$result": "${1}"}`,
		},
		{
			Name:     "iso_date",
			Pattern:  regexp.MustCompile(`ISODate\("(.*?)"\)`),
			Template: `{"$date": "${1}"}`,
		},
		{
			Name:     "object_id",
			Pattern:  regexp.MustCompile(`ObjectId\("(.*?)"\)`),
			Template: `{"$oid": "${1}"}`,
		},
		{
			Name:     "number_long",
			Pattern:  regexp.MustCompile(`NumberLong\("(.*?)"\)`),
			Template: `{"$numberLong": "${1}"}`,
		},
		{
			Name:     "number_long_bare",
			Pattern:  regexp.MustCompile(`NumberLong\((-?\d+)\)`),
			Template: `{"$numberLong": "${1}"}`,
		},
		{
			Name:     "number_decimal",
			Pattern:  regexp.MustCompile(`NumberDecimal\("(.*?)"\)`),
			Template: `{"$numberDecimal": "${1}"}`,
		},
		{
			Name:     "number_int",
			Pattern:  regexp.MustCompile(`NumberInt\((-?\d+)\)`),
			Template: `${1}`,
		},
		{
			Name:     "timestamp",
			Pattern:  regexp.MustCompile(`Timestamp\((\d+),\s*(\d+)\)`),
			Template: `{"$timestamp": {"t": ${1}, "i": ${2}}}`,
		},
		{
			Name:     "bin_data",
			Pattern:  regexp.MustCompile(`BinData\((\d+),\s*"(.*?)"\)`),
			Template: `{"$binary": "${2}", "$type": "${1}"}`,
		},
	}
}

// Rewrite applies rules in order to one line.
func Rewrite(rules []Rule, line string) string {
	for _, r := range rules {
		line = r.Apply(line)
	}
	return line
}
