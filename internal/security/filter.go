// Package security holds command filtering and credential handling.
package security

import (
	"fmt"
	"regexp"
	"sync"
)

// CommandFilter filters commands based on blocklist/allowlist patterns.
type CommandFilter struct {
	mu        sync.RWMutex
	blocklist []*regexp.Regexp
	allowlist []*regexp.Regexp
}

// NewCommandFilter creates a new command filter with the given patterns.
func NewCommandFilter(blocklist, allowlist []string) (*CommandFilter, error) {
	cf := &CommandFilter{}

	for _, pattern := range blocklist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocklist pattern %q: %w", pattern, err)
		}
		cf.blocklist = append(cf.blocklist, re)
	}

	for _, pattern := range allowlist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist pattern %q: %w", pattern, err)
		}
		cf.allowlist = append(cf.allowlist, re)
	}

	return cf, nil
}

// IsAllowed checks the sanitized command. Returns (allowed, reason).
// A nil filter allows everything.
func (cf *CommandFilter) IsAllowed(command string) (bool, string) {
	if cf == nil {
		return true, ""
	}

	cf.mu.RLock()
	defer cf.mu.RUnlock()

	for _, re := range cf.blocklist {
		if re.MatchString(command) {
			return false, fmt.Sprintf("command blocked by pattern: %s", re.String())
		}
	}

	if len(cf.allowlist) > 0 {
		for _, re := range cf.allowlist {
			if re.MatchString(command) {
				return true, ""
			}
		}
		return false, "command not in allowlist"
	}

	return true, ""
}

// HasBlocklist returns true if any blocklist patterns are configured.
func (cf *CommandFilter) HasBlocklist() bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return len(cf.blocklist) > 0
}

// HasAllowlist returns true if any allowlist patterns are configured.
func (cf *CommandFilter) HasAllowlist() bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return len(cf.allowlist) > 0
}

// DefaultBlocklist returns patterns for destructive server-wide commands.
func DefaultBlocklist() []string {
	return []string{
		`\.dropDatabase\s*\(`,                 // db.dropDatabase()
		`\.shutdownServer\s*\(`,               // db.shutdownServer()
		`\bshutdown\s*:\s*1`,                  // db.adminCommand({shutdown: 1})
		`\.dropAllUsers\s*\(`,                 // db.dropAllUsers()
		`\.dropAllRoles\s*\(`,                 // db.dropAllRoles()
		`\bfsyncLock\b|\bfsync\s*:\s*1.*lock`, // db.fsyncLock()
	}
}
