//go:build windows

package logger

import "golang.org/x/sys/windows"

// isTerminal reports whether fd is a console handle, via
// golang.org/x/sys/windows rather than a hand-rolled kernel32 lazy-DLL
// shim (the same module cansock/terminal_linux.go draw their syscall
// access from, just the Windows-specific subpackage).
func isTerminal(fd uintptr) bool {
	var mode uint32
	err := windows.GetConsoleMode(windows.Handle(fd), &mode)
	return err == nil
}
