// Package recovery recognises common mongo shell errors in command output
// and suggests what to run next.
package recovery

import (
	"regexp"
	"sort"
	"strings"
)

// Suggestion represents a recovery suggestion for an error.
type Suggestion struct {
	Error       string   `json:"error"`              // Description of the detected error
	Category    string   `json:"category"`           // Error category (syntax, auth, network, ...)
	Commands    []string `json:"commands,omitempty"` // Shell code worth running next
	Explanation string   `json:"explanation"`        // Why this might fix the issue
	Confidence  float64  `json:"confidence"`         // Confidence that this suggestion will help
	Risky       bool     `json:"risky,omitempty"`    // If true, user should review before running
}

// Analyzer detects errors and suggests recovery actions.
type Analyzer struct {
	rules []recoveryRule
}

type recoveryRule struct {
	name     string
	pattern  *regexp.Regexp
	category string
	suggest  func(command string, matches []string) *Suggestion
}

// NewAnalyzer creates a new error analyzer with default rules.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		rules: defaultRules(),
	}
}

// Analyze examines the output of command and returns suggestions, most
// confident first. Output without an error indication yields nil.
func (a *Analyzer) Analyze(command, output string) []*Suggestion {
	if a == nil || !containsErrorIndicators(output) {
		return nil
	}

	var suggestions []*Suggestion
	for _, rule := range a.rules {
		if matches := rule.pattern.FindStringSubmatch(output); matches != nil {
			if suggestion := rule.suggest(command, matches); suggestion != nil {
				suggestions = append(suggestions, suggestion)
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

func containsErrorIndicators(output string) bool {
	lowered := strings.ToLower(output)
	indicators := []string{
		"error", "e query", "errmsg", `"ok" : 0`,
		"exception", "failed", "not authorized", "couldn't",
	}
	for _, ind := range indicators {
		if strings.Contains(lowered, ind) {
			return true
		}
	}
	return false
}

func defaultRules() []recoveryRule {
	return []recoveryRule{
		// Undefined variable
		{
			name:     "reference_error",
			pattern:  regexp.MustCompile(`ReferenceError: (\S+) is not defined`),
			category: "reference",
			suggest: func(_ string, matches []string) *Suggestion {
				return &Suggestion{
					Error:       "Undefined name: " + matches[1],
					Category:    "reference",
					Commands:    []string{"typeof " + matches[1], "db.getCollectionNames()"},
					Explanation: "The name is not defined in this shell. Variables are lost when the shell restarts; collections are reached through db.",
					Confidence:  0.7,
				}
			},
		},

		// Calling something that is not a function
		{
			name:     "type_error_not_function",
			pattern:  regexp.MustCompile(`TypeError: (\S+?)(?:\.\w+)? is not a function`),
			category: "type",
			suggest: func(_ string, matches []string) *Suggestion {
				return &Suggestion{
					Error:       "Not a function: " + matches[1],
					Category:    "type",
					Commands:    []string{"dir(" + matches[1] + ")"},
					Explanation: "The method does not exist on this object. dir() lists what it has.",
					Confidence:  0.6,
				}
			},
		},

		// Syntax error, often caused by joining lines
		{
			name:     "syntax_error",
			pattern:  regexp.MustCompile(`SyntaxError: ([^\n@]+)`),
			category: "syntax",
			suggest: func(command string, matches []string) *Suggestion {
				s := &Suggestion{
					Error:       "Syntax error: " + strings.TrimSpace(matches[1]),
					Category:    "syntax",
					Explanation: "Code is sent as a single line. Check for a missing ';' between statements.",
					Confidence:  0.5,
				}
				if strings.Contains(command, "//") {
					s.Explanation = "Code is sent as a single line, so a trailing // comment hides everything after it. Use /* */ or put the comment on its own line."
					s.Confidence = 0.8
				}
				return s
			},
		},

		// Authorization
		{
			name:     "not_authorized",
			pattern:  regexp.MustCompile(`not authorized on (\S+) to execute command`),
			category: "auth",
			suggest: func(_ string, matches []string) *Suggestion {
				return &Suggestion{
					Error:       "Not authorized on database " + matches[1],
					Category:    "auth",
					Commands:    []string{"db.runCommand({connectionStatus: 1})"},
					Explanation: "The connected user lacks a role for this command. Check the authenticated user and its roles.",
					Confidence:  0.8,
				}
			},
		},

		// Authentication
		{
			name:     "auth_failed",
			pattern:  regexp.MustCompile(`(?i)authentication failed`),
			category: "auth",
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Authentication failed",
					Category:    "auth",
					Explanation: "Check shell.username, shell.auth_database and the stored password.",
					Confidence:  0.8,
				}
			},
		},

		// Server unreachable
		{
			name:     "connect_failed",
			pattern:  regexp.MustCompile(`(?i)(couldn't connect to server|connection refused|network error while attempting to run command)`),
			category: "network",
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Cannot reach the server",
					Category:    "network",
					Commands:    []string{"db.adminCommand({ping: 1})"},
					Explanation: "The server is down or unreachable. The shell reconnects on the next command once it is back.",
					Confidence:  0.7,
				}
			},
		},

		// Duplicate key
		{
			name:     "duplicate_key",
			pattern:  regexp.MustCompile(`E11000 duplicate key error (?:collection|index): (\S+)`),
			category: "write",
			suggest: func(_ string, matches []string) *Suggestion {
				return &Suggestion{
					Error:       "Duplicate key in " + matches[1],
					Category:    "write",
					Explanation: "A unique index already holds this key. Update the existing document or use an upsert.",
					Confidence:  0.7,
				}
			},
		},

		// Secondary member
		{
			name:     "not_primary",
			pattern:  regexp.MustCompile(`not master|NotMasterNoSlaveOk|NotWritablePrimary|not master and slaveOk=false`),
			category: "replication",
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Connected to a secondary",
					Category:    "replication",
					Commands:    []string{"rs.status()", "rs.slaveOk()"},
					Explanation: "Writes need the primary. For reads on a secondary, allow them with rs.slaveOk().",
					Confidence:  0.7,
				}
			},
		},

		// Missing collection for admin commands
		{
			name:     "ns_not_found",
			pattern:  regexp.MustCompile(`ns not found`),
			category: "namespace",
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Collection does not exist",
					Category:    "namespace",
					Commands:    []string{"db.getCollectionNames()", "db.getName()"},
					Explanation: "The collection is missing in the current database.",
					Confidence:  0.6,
				}
			},
		},

		// Server-side time limit
		{
			name:     "time_limit",
			pattern:  regexp.MustCompile(`(?i)operation exceeded time limit`),
			category: "timeout",
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Server time limit exceeded",
					Category:    "timeout",
					Commands:    []string{"db.currentOp({active: true})"},
					Explanation: "The query hit maxTimeMS. Add an index or raise the limit with .maxTimeMS().",
					Confidence:  0.6,
				}
			},
		},
	}
}
