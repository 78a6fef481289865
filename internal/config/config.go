// Package config handles configuration parsing for mongo-shell-mcp.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/acolita/mongo-shell-mcp/internal/ports"
)

// EnvPrefix prefixes every environment override, e.g.
// MONGO_SHELL_MCP_SHELL_PATH or MONGO_SHELL_MCP_SHELL_TIMEOUT.
const EnvPrefix = "MONGO_SHELL_MCP"

// DefaultIdlePattern is the redraw the legacy mongo shell leaves behind its
// prompt once it has nothing more to print (cursor to column 47, erase line,
// cursor to column 47). It was observed on one terminal emulation and is
// configurable for that reason.
const DefaultIdlePattern = "\x1b[47G\x1b[J\x1b[47G"

// DefaultContinuationPattern matches the shell's "..." prompt at the end of
// the unconsumed output.
const DefaultContinuationPattern = `\.\.\. $`

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/mongo-shell-mcp/config.yaml or ~/.config/mongo-shell-mcp/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mongo-shell-mcp", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Shell     ShellConfig     `yaml:"shell"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Recording RecordingConfig `yaml:"recording"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ShellConfig describes how the mongo shell child is spawned and drained.
type ShellConfig struct {
	Path         string   `yaml:"path"`          // shell binary (default: mongo)
	Args         []string `yaml:"args"`          // extra arguments before --eval
	Host         string   `yaml:"host"`          // --host
	Port         int      `yaml:"port"`          // --port
	Database     string   `yaml:"database"`      // database to open
	Username     string   `yaml:"username"`      // -u
	AuthDatabase string   `yaml:"auth_database"` // --authenticationDatabase
	PasswordEnv  string   `yaml:"password_env"`  // env var containing the password
	UseKeyring   bool     `yaml:"use_keyring"`   // read the password from the OS keyring
	Term         string   `yaml:"term"`          // TERM for the child (default: xterm)

	Timeout             time.Duration `yaml:"timeout"`              // per prompt wait; 0 waits forever
	MaxRedraws          int           `yaml:"max_redraws"`          // drain loop bound
	IdlePatterns        []string      `yaml:"idle_patterns"`        // trailing bytes that mean "idle"
	ContinuationPattern string        `yaml:"continuation_pattern"` // regexp, end-anchored
}

// NormalizeConfig controls structured decoding of shell output.
type NormalizeConfig struct {
	Lenient        bool          `yaml:"lenient"`         // evaluate unparseable lines as JS literals
	LenientTimeout time.Duration `yaml:"lenient_timeout"` // per-line evaluation budget
}

// SecurityConfig defines command filtering and startup failure handling.
type SecurityConfig struct {
	CommandBlocklist    []string      `yaml:"command_blocklist"`     // Regex patterns for blocked commands
	CommandAllowlist    []string      `yaml:"command_allowlist"`     // If set, only these patterns allowed
	UseDefaultBlocklist bool          `yaml:"use_default_blocklist"` // also block dropDatabase, shutdown, ...
	MaxAuthFailures     int           `yaml:"max_auth_failures"`     // failed startups before lockout
	AuthLockout         time.Duration `yaml:"auth_lockout"`          // how long spawning stays locked
	CredentialTTL       time.Duration `yaml:"credential_ttl"`        // keyring password cache lifetime
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// RecordingConfig defines transcript recording settings.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"` // enable transcript recording
	Path    string `yaml:"path"`    // directory to store recordings
	Keep    int    `yaml:"keep"`    // newest recordings to keep; 0 keeps all
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // listen address for /metrics; empty disables
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Path:                "mongo",
			Term:                "xterm",
			Timeout:             30 * time.Second,
			MaxRedraws:          256,
			IdlePatterns:        []string{DefaultIdlePattern},
			ContinuationPattern: DefaultContinuationPattern,
		},
		Normalize: NormalizeConfig{
			LenientTimeout: 100 * time.Millisecond,
		},
		Security: SecurityConfig{
			MaxAuthFailures: 3,
			AuthLockout:     time.Minute,
			CredentialTTL:   15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
		Recording: RecordingConfig{
			Path: filepath.Join(os.TempDir(), "mongo-shell-mcp", "recordings"),
			Keep: 100,
		},
	}
}

// Load loads configuration from a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
// A missing file yields the defaults.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from MONGO_SHELL_MCP_* environment variables.
// Unset variables leave the loaded values alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("apply environment overrides: %w", err)
	}
	return nil
}

// Validate validates the configuration, filling in defaults for zero values
// that have no meaning.
func (c *Config) Validate() error {
	if c.Shell.Path == "" {
		c.Shell.Path = "mongo"
	}
	if c.Shell.Timeout < 0 {
		return fmt.Errorf("shell.timeout must not be negative (use 0 to wait indefinitely)")
	}
	if c.Shell.MaxRedraws <= 0 {
		c.Shell.MaxRedraws = 256
	}
	if c.Shell.Port < 0 || c.Shell.Port > 65535 {
		return fmt.Errorf("shell.port %d out of range", c.Shell.Port)
	}
	if c.Shell.ContinuationPattern == "" {
		c.Shell.ContinuationPattern = DefaultContinuationPattern
	}
	if _, err := regexp.Compile(c.Shell.ContinuationPattern); err != nil {
		return fmt.Errorf("shell.continuation_pattern: %w", err)
	}
	if c.Normalize.LenientTimeout <= 0 {
		c.Normalize.LenientTimeout = 100 * time.Millisecond
	}
	for _, p := range append(append([]string{}, c.Security.CommandBlocklist...), c.Security.CommandAllowlist...) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid command filter pattern %q: %w", p, err)
		}
	}
	if c.Security.MaxAuthFailures <= 0 {
		c.Security.MaxAuthFailures = 3
	}
	if c.Security.AuthLockout <= 0 {
		c.Security.AuthLockout = time.Minute
	}
	if c.Security.CredentialTTL <= 0 {
		c.Security.CredentialTTL = 15 * time.Minute
	}
	if c.Recording.Keep < 0 {
		c.Recording.Keep = 0
	}
	return nil
}
