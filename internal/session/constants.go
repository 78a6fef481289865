package session

import "time"

const (
	// logCommandLimit truncates logged commands.
	logCommandLimit = 200

	// nopCommand flushes whatever the previous command left behind.
	nopCommand = "nop()"

	// restartTimeout bounds the respawn after a fault when the configured
	// timeout is 0 (wait indefinitely).
	restartTimeout = 30 * time.Second

	errSessionClosed = "session closed"
)
