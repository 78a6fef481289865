//go:build !unix

package shell

func isEIO(err error) bool { return false }
