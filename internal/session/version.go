package session

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/acolita/mongo-shell-mcp/internal/escape"
)

// VersionFunc returns the output of `<path> --version`.
type VersionFunc func(ctx context.Context, path string) (string, error)

// ExecVersion runs the shell binary with --version.
func ExecVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("run %s --version: %w", path, err)
	}
	return string(out), nil
}

var versionRe = regexp.MustCompile(`version\D*(\d+(\.\d+)+)`)

// Banner returns the shell's --version output. It is read once and cached;
// a failed read is not cached.
func (m *Manager) Banner(ctx context.Context) (string, error) {
	m.bannerMu.Lock()
	defer m.bannerMu.Unlock()

	if m.banner != "" {
		return m.banner, nil
	}

	m.mu.Lock()
	path := m.cfg.Shell.Path
	m.mu.Unlock()

	out, err := m.version(ctx, path)
	if err != nil {
		return "", err
	}
	m.banner = strings.TrimSpace(escape.Strip(out))
	return m.banner, nil
}

// LanguageVersion returns the dotted version number from the banner.
func (m *Manager) LanguageVersion(ctx context.Context) (string, error) {
	banner, err := m.Banner(ctx)
	if err != nil {
		return "", err
	}
	return ParseVersion(banner)
}

// ParseVersion extracts the first "version x.y.z" number from a banner.
func ParseVersion(banner string) (string, error) {
	match := versionRe.FindStringSubmatch(banner)
	if match == nil {
		return "", fmt.Errorf("no version number in %q", firstLine(banner))
	}
	return match[1], nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
