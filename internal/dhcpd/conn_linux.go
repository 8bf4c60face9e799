//go:build linux

package dhcpd

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureSocket sets SO_BROADCAST and SO_REUSEADDR on every platform, and
// additionally SO_BINDTODEVICE when iface is non-empty, restricting the
// socket to that interface the way a relay-free LAN deployment needs.
// Grounded on the teacher's conn_unix.go/conn_linux.go Control-function
// pattern, generalized from its raw-packet-specific setup to plain UDP.
func configureSocket(c syscall.RawConn, iface string) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		if sockErr != nil {
			return
		}

		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}

		if iface != "" {
			sockErr = unix.BindToDevice(int(fd), iface)
		}
	})
	if err != nil {
		return fmt.Errorf("controlling socket: %w", err)
	}

	return sockErr
}
