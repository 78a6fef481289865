//go:build unix

package shell

import (
	"errors"
	"syscall"
)

func isEIO(err error) bool {
	return errors.Is(err, syscall.EIO)
}
