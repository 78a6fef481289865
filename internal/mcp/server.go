// Package mcp exposes the mongo shell session as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/logging"
)

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer *server.MCPServer
	session   Session
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used by tool handlers.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates an MCP server whose tools drive sess.
func NewServer(sess Session, opts ...ServerOption) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		session:   sess,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s
}

// MCPServer returns the underlying server, e.g. for an in-process client.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves on stdio until stdin closes, then stops the shell.
func (s *Server) Run() error {
	s.logger.Info("starting MCP server on stdio transport")
	defer s.session.Close()
	return server.ServeStdio(s.mcpServer)
}

// UpdateConfig applies a reloaded configuration to the session.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if err := s.session.UpdateConfig(cfg); err != nil {
		s.logger.Warn("config update rejected, keeping previous",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("config update applied")
}

// Shutdown stops the shell child.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.session.Close()
}
