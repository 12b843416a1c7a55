//go:build linux

package app

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setProcessTitle renames the process so the configured title shows up
// in ps and top. The kernel truncates names to 15 bytes.
func setProcessTitle(title string) {
	if title == "" {
		return
	}
	b := make([]byte, 16)
	copy(b, title)
	b[15] = 0
	unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}
