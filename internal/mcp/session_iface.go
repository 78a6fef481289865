package mcp

import (
	"context"

	"github.com/acolita/mongo-shell-mcp/internal/config"
	"github.com/acolita/mongo-shell-mcp/internal/session"
)

// Session is the mongo shell session the tools drive.
type Session interface {
	Execute(ctx context.Context, code string, opts ...session.ExecOption) session.ExecutionResult
	Complete(ctx context.Context, code string, cursor int) (session.Completion, error)
	Status() session.Info
	Restart(ctx context.Context, reason string) error
	Banner(ctx context.Context) (string, error)
	LanguageVersion(ctx context.Context) (string, error)
	UpdateConfig(cfg *config.Config) error
	Close() error
}

// Verify the concrete manager satisfies the interface at compile time.
var _ Session = (*session.Manager)(nil)
