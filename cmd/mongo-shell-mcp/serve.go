package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdio (default)",
	Long: `Serves the mongo_execute, mongo_complete, mongo_status, mongo_restart
and mongo_version tools over stdio. The mongo shell is started on the first
command, so the server answers even when the binary is missing.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	o := readOverrides(cmd)
	path := configPath(cmd)

	cfg, err := loadConfig(path, o)
	if err != nil {
		return err
	}

	// stdout carries JSON-RPC; logs go to stderr.
	a, err := newApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)

	a.logger.Info("starting mongo-shell-mcp",
		slog.String("version", Version),
		slog.String("shell", cfg.Shell.Path),
		slog.String("config", path),
	)

	server := mcp.NewServer(a.manager, mcp.WithLogger(a.logger))

	var configWatcher *config.Watcher
	if path != "" {
		configWatcher, err = config.NewWatcher(path, a.logger, func(newCfg *config.Config) {
			o.apply(newCfg)
			if err := newCfg.Validate(); err != nil {
				a.logger.Warn("config reload rejected", slog.String("error", err.Error()))
				return
			}
			server.UpdateConfig(newCfg)
		})
		if err != nil {
			a.logger.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		} else {
			a.logger.Info("config hot-reload enabled", slog.String("path", path))
			defer configWatcher.Close()
		}
	}

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(a, cfg.Metrics.Addr)
		defer stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		if configWatcher != nil {
			configWatcher.Close()
		}
		os.Exit(0)
	}()

	if err := server.Run(); err != nil {
		a.logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// serveMetrics exposes /metrics on addr and returns a function stopping it.
func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
