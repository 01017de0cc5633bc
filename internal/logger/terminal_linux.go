//go:build linux

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether fd is a terminal, via the same
// golang.org/x/sys/unix package internal/cansock uses for its
// SocketCAN binding (TCGETS is Linux's "get termios" ioctl).
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}
