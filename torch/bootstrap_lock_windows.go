//go:build windows

package torch

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockFile blocks until the exclusive lock is held, so concurrent processes
// bootstrapping the same shim version serialize instead of failing.
func lockFile(file *os.File) error {
	handle := windows.Handle(file.Fd())
	var overlapped windows.Overlapped
	return windows.LockFileEx(handle, windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, &overlapped)
}

func unlockFile(file *os.File) error {
	handle := windows.Handle(file.Fd())
	var overlapped windows.Overlapped
	return windows.UnlockFileEx(handle, 0, 1, 0, &overlapped)
}
