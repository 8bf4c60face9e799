//go:build !linux

package dhcpd

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureSocket sets SO_BROADCAST and SO_REUSEADDR. iface is ignored:
// SO_BINDTODEVICE is Linux-only, so on other platforms interface
// restriction falls back to whatever address the caller bound to, per
// spec.md §6 ("on Linux it may bind to a specific interface").
func configureSocket(c syscall.RawConn, _ string) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		if sockErr != nil {
			return
		}

		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return fmt.Errorf("controlling socket: %w", err)
	}

	return sockErr
}
