package torch

import "unsafe"

// CstringToGo copies a null-terminated native string into a Go string.
// A zero pointer yields the empty string.
func CstringToGo(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}

	// Scan for the terminator through a bounded view of the native
	// memory. The shim only hands back short strings (version, error
	// messages, parameter names), so anything past 1MB is treated as
	// unterminated and truncated rather than scanned forever.
	const maxStringLen = 1 << 20
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), maxStringLen)

	var length int
	for i := 0; i < maxStringLen; i++ {
		if bytes[i] == 0 {
			length = i
			break
		}
	}

	return string(bytes[:length])
}

// GoToCstring builds a null-terminated copy of s for the native boundary.
// It returns the backing slice and a pointer to its first byte; the
// caller keeps the slice alive (runtime.KeepAlive after the call) for as
// long as the native side may read it.
func GoToCstring(s string) ([]byte, uintptr) {
	b := append([]byte(s), 0)
	return b, uintptr(unsafe.Pointer(&b[0]))
}
