//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pty

import (
	"os"

	"golang.org/x/sys/unix"
)

// disableEcho clears ECHO on the terminal behind f. On a PTY master the
// attributes are those of the pair, so the shell stops echoing our input.
// SyscallConn keeps the descriptor non-blocking, unlike Fd.
func disableEcho(f *os.File) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}

	var opErr error
	err = rc.Control(func(fd uintptr) {
		termios, err := unix.IoctlGetTermios(int(fd), ioctlGetTermios)
		if err != nil {
			opErr = err
			return
		}
		termios.Lflag &^= unix.ECHO
		opErr = unix.IoctlSetTermios(int(fd), ioctlSetTermios, termios)
	})
	if err != nil {
		return err
	}
	return opErr
}

// echoEnabled reports whether ECHO is set on the terminal behind f.
func echoEnabled(f *os.File) (bool, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return false, err
	}

	var on bool
	var opErr error
	err = rc.Control(func(fd uintptr) {
		termios, err := unix.IoctlGetTermios(int(fd), ioctlGetTermios)
		if err != nil {
			opErr = err
			return
		}
		on = termios.Lflag&unix.ECHO != 0
	})
	if err != nil {
		return false, err
	}
	return on, opErr
}
