package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/mongo-shell-mcp/internal/logging"
	"github.com/acolita/mongo-shell-mcp/internal/session"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mongoExecuteTool(), s.handleExecute)
	s.mcpServer.AddTool(mongoCompleteTool(), s.handleComplete)
	s.mcpServer.AddTool(mongoStatusTool(), s.handleStatus)
	s.mcpServer.AddTool(mongoRestartTool(), s.handleRestart)
	s.mcpServer.AddTool(mongoVersionTool(), s.handleVersion)
}

// Tool definitions

func mongoExecuteTool() mcp.Tool {
	return mcp.NewTool(toolExecute,
		mcp.WithDescription("Run JavaScript in a persistent legacy mongo shell and return its output. "+
			"Output that parses as JSON (after rewriting ObjectId, ISODate, NumberLong, ...) is returned in 'structured'. "+
			"Multi-line code is joined into one line; // comment lines are dropped; the joined line may not exceed 1024 characters."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("The code to execute, e.g. db.users.find({active: true})"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("How long to wait for each shell prompt in milliseconds (default: configured shell.timeout; 0 waits indefinitely)"),
		),
	)
}

func mongoCompleteTool() mcp.Tool {
	return mcp.NewTool(toolComplete,
		mcp.WithDescription("List attribute names completing the expression before the cursor, e.g. 'db.get' -> getCollection, getName"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("The code being edited"),
		),
		mcp.WithNumber("cursor_pos",
			mcp.Description("Cursor position in characters (default: end of code)"),
		),
	)
}

func mongoStatusTool() mcp.Tool {
	return mcp.NewTool(toolStatus,
		mcp.WithDescription("Report whether the mongo shell is running, its session ID, and execution/restart counts"),
	)
}

func mongoRestartTool() mcp.Tool {
	return mcp.NewTool(toolRestart,
		mcp.WithDescription("Kill the mongo shell and start a fresh one. Shell variables are lost."),
		mcp.WithString("reason",
			mcp.Description("Why the restart was requested (logged)"),
		),
	)
}

func mongoVersionTool() mcp.Tool {
	return mcp.NewTool(toolVersion,
		mcp.WithDescription("Return the mongo shell's --version banner and version number"),
	)
}

// Tool handlers

func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := mcp.ParseString(req, "code", "")
	if code == "" {
		return mcp.NewToolResultError(errCodeRequired), nil
	}

	var opts []session.ExecOption
	if args := req.GetArguments(); args != nil {
		if _, ok := args["timeout_ms"]; ok {
			ms := mcp.ParseInt(req, "timeout_ms", 0)
			if ms < 0 {
				return mcp.NewToolResultError("timeout_ms must not be negative"), nil
			}
			opts = append(opts, session.WithTimeout(time.Duration(ms)*time.Millisecond))
		}
	}

	s.logger.Debug("mongo_execute", slog.String("code", logging.Truncate(code, 200)))

	res := s.session.Execute(ctx, code, opts...)
	result, err := jsonResult(res)
	if err != nil {
		return result, err
	}
	result.IsError = res.Status != session.StatusOK
	return result, nil
}

func (s *Server) handleComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := mcp.ParseString(req, "code", "")
	if code == "" {
		return mcp.NewToolResultError(errCodeRequired), nil
	}
	cursor := mcp.ParseInt(req, "cursor_pos", -1)

	comp, err := s.session.Complete(ctx, code, cursor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(comp)
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.session.Status())
}

func (s *Server) handleRestart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reason := mcp.ParseString(req, "reason", "requested")

	s.logger.Info("restarting mongo shell", slog.String("reason", reason))

	if err := s.session.Restart(ctx, reason); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.session.Status())
}

func (s *Server) handleVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	banner, err := s.session.Banner(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	version, err := s.session.LanguageVersion(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{
		"banner":   banner,
		"version":  version,
		"language": "javascript",
	})
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
