//go:build !windows

package torch

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile blocks until the exclusive lock is held, so concurrent processes
// bootstrapping the same shim version serialize instead of failing.
func lockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_EX)
}

func unlockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}
