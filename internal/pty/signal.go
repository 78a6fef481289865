package pty

import (
	"os"
	"os/signal"
)

// withDefaultInterrupt runs start with SIGINT not ignored, so a child forked
// inside start inherits the default disposition and can be interrupted. A
// handled signal is reset to default across exec; an ignored one is not, so
// an ignored SIGINT is swapped for a temporary handler and ignored again on
// every exit path.
func withDefaultInterrupt(start func() error) error {
	if !signal.Ignored(os.Interrupt) {
		return start()
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	defer func() {
		signal.Stop(ch)
		signal.Ignore(os.Interrupt)
	}()

	return start()
}
