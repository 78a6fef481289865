package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/metrics"
	"github.com/acolita/mongo-shell-mcp/internal/recording"
	"github.com/acolita/mongo-shell-mcp/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "mongo-shell-mcp",
	Short: "Run code in a persistent mongo shell",
	Long: `mongo-shell-mcp drives an interactive legacy mongo shell under a
pseudo-terminal and turns each code cell into plain text plus, where the
output allows it, decoded JSON values.

Without a subcommand it serves MCP over stdio.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (default: "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging, including raw shell output")
	rootCmd.PersistentFlags().String("mongo", "", "mongo shell binary (overrides shell.path)")
	rootCmd.PersistentFlags().String("host", "", "Server host (overrides shell.host)")
	rootCmd.PersistentFlags().Int("port", 0, "Server port (overrides shell.port)")
	rootCmd.PersistentFlags().String("db", "", "Database to open (overrides shell.database)")
	rootCmd.PersistentFlags().Duration("timeout", -1, "Prompt timeout, 0 waits indefinitely (overrides shell.timeout)")
}

// overrides are the command-line settings applied over every loaded config,
// including hot reloads.
type overrides struct {
	debug   bool
	mongo   string
	host    string
	port    int
	db      string
	timeout time.Duration
}

func readOverrides(cmd *cobra.Command) overrides {
	flags := cmd.Flags()
	var o overrides
	o.debug, _ = flags.GetBool("debug")
	o.mongo, _ = flags.GetString("mongo")
	o.host, _ = flags.GetString("host")
	o.port, _ = flags.GetInt("port")
	o.db, _ = flags.GetString("db")
	o.timeout, _ = flags.GetDuration("timeout")
	return o
}

func (o overrides) apply(cfg *config.Config) {
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	if o.mongo != "" {
		cfg.Shell.Path = o.mongo
	}
	if o.host != "" {
		cfg.Shell.Host = o.host
	}
	if o.port != 0 {
		cfg.Shell.Port = o.port
	}
	if o.db != "" {
		cfg.Shell.Database = o.db
	}
	if o.timeout >= 0 {
		cfg.Shell.Timeout = o.timeout
	}
}

// configPath returns the --config flag, or the default path when a file
// exists there.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return path
	}
	def := config.DefaultConfigPath()
	if def == "" {
		return ""
	}
	if _, err := os.Stat(def); err != nil {
		return ""
	}
	return def
}

func loadConfig(path string, o overrides) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is everything a subcommand needs to run the session.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder *recording.Manager
	manager  *session.Manager
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Sanitize, logOut)

	var mt *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		mt = metrics.New()
	}

	recorder := recording.NewManager(cfg.Recording.Path, cfg.Recording.Enabled,
		recording.WithKeep(cfg.Recording.Keep),
		recording.WithLogger(logger),
	)

	manager, err := session.NewManager(cfg,
		session.WithLogger(logger),
		session.WithMetrics(mt),
		session.WithRecorder(recorder),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  mt,
		recorder: recorder,
		manager:  manager,
	}, nil
}
