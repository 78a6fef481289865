//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package pty

import "os"

func disableEcho(f *os.File) error { return nil }

func echoEnabled(f *os.File) (bool, error) { return false, nil }
