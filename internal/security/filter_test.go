package security

import (
	"testing"
)

func TestCommandFilter_Blocklist(t *testing.T) {
	tests := []struct {
		name        string
		blocklist   []string
		command     string
		wantAllowed bool
	}{
		{
			name:        "allow normal query",
			blocklist:   DefaultBlocklist(),
			command:     "db.orders.find({status: 'open'})",
			wantAllowed: true,
		},
		{
			name:        "block dropDatabase",
			blocklist:   DefaultBlocklist(),
			command:     "db.dropDatabase()",
			wantAllowed: false,
		},
		{
			name:        "block shutdown admin command",
			blocklist:   DefaultBlocklist(),
			command:     "db.adminCommand({shutdown: 1})",
			wantAllowed: false,
		},
		{
			name:        "block shutdownServer with space",
			blocklist:   DefaultBlocklist(),
			command:     "db.getSiblingDB('admin').shutdownServer ()",
			wantAllowed: false,
		},
		{
			name:        "collection drop allowed by default",
			blocklist:   DefaultBlocklist(),
			command:     "db.tmp.drop()",
			wantAllowed: true,
		},
		{
			name:        "empty blocklist allows all",
			blocklist:   []string{},
			command:     "db.dropDatabase()",
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := NewCommandFilter(tt.blocklist, nil)
			if err != nil {
				t.Fatalf("NewCommandFilter() error: %v", err)
			}
			allowed, reason := cf.IsAllowed(tt.command)
			if allowed != tt.wantAllowed {
				t.Errorf("IsAllowed(%q) = %v (%s), want %v", tt.command, allowed, reason, tt.wantAllowed)
			}
			if !allowed && reason == "" {
				t.Error("blocked command should carry a reason")
			}
		})
	}
}

func TestCommandFilter_Allowlist(t *testing.T) {
	cf, err := NewCommandFilter(nil, []string{`^db\.\w+\.(find|count|aggregate)\(`, `^show `})
	if err != nil {
		t.Fatalf("NewCommandFilter() error: %v", err)
	}

	tests := []struct {
		command string
		want    bool
	}{
		{"db.users.find()", true},
		{"db.users.count()", true},
		{"show dbs", true},
		{"db.users.remove({})", false},
		{"1+1", false},
	}
	for _, tt := range tests {
		allowed, reason := cf.IsAllowed(tt.command)
		if allowed != tt.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.command, allowed, tt.want)
		}
		if !allowed && reason != "command not in allowlist" {
			t.Errorf("reason = %q", reason)
		}
	}
	if !cf.HasAllowlist() || cf.HasBlocklist() {
		t.Error("HasAllowlist/HasBlocklist mismatch")
	}
}

func TestCommandFilter_BlocklistBeatsAllowlist(t *testing.T) {
	cf, err := NewCommandFilter([]string{`dropDatabase`}, []string{`^db\.`})
	if err != nil {
		t.Fatalf("NewCommandFilter() error: %v", err)
	}
	if allowed, _ := cf.IsAllowed("db.dropDatabase()"); allowed {
		t.Error("blocklist must win over allowlist")
	}
}

func TestCommandFilter_InvalidPattern(t *testing.T) {
	if _, err := NewCommandFilter([]string{"[invalid"}, nil); err == nil {
		t.Error("expected error for invalid blocklist pattern")
	}
	if _, err := NewCommandFilter(nil, []string{"(unclosed"}); err == nil {
		t.Error("expected error for invalid allowlist pattern")
	}
}

func TestCommandFilter_Nil(t *testing.T) {
	var cf *CommandFilter
	if allowed, _ := cf.IsAllowed("db.dropDatabase()"); !allowed {
		t.Error("nil filter must allow everything")
	}
}
