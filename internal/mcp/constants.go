package mcp

const (
	serverName    = "mongo-shell-mcp"
	serverVersion = "0.3.0"

	toolExecute  = "mongo_execute"
	toolComplete = "mongo_complete"
	toolStatus   = "mongo_status"
	toolRestart  = "mongo_restart"
	toolVersion  = "mongo_version"

	errCodeRequired = "code is required"
)
