package torch

import "errors"

// ErrNotInitialized is returned by any binding call made before Initialize.
var ErrNotInitialized = errors.New("torch: runtime not initialized")

// ErrClosed is returned when a wrapper is used after Close.
var ErrClosed = errors.New("torch: use after Close")

// Error carries a native-side failure: the entry point that failed and the
// message drained from the native last-error state.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return "torch: " + e.Op + ": " + e.Message
}

// lastError drains the native last-error state after a zero-handle sentinel
// and converts it to an *Error. The message is guaranteed non-empty.
func lastError(n *nativeAPI, op string) error {
	msg := CstringToGo(n.getAndResetLastErr())
	if msg == "" {
		msg = "native call failed without an error message"
	}
	return &Error{Op: op, Message: msg}
}

// checkErr polls the native last-error state after a void entry point.
// Returns nil when no error is pending.
func checkErr(n *nativeAPI, op string) error {
	ptr := n.getAndResetLastErr()
	if ptr == 0 {
		return nil
	}
	msg := CstringToGo(ptr)
	if msg == "" {
		msg = "native call failed without an error message"
	}
	return &Error{Op: op, Message: msg}
}
