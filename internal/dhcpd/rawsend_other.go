//go:build !linux

package dhcpd

import (
	"errors"
	"net"
)

// RawUnicastSender is unavailable outside Linux; AF_PACKET sockets are a
// Linux-specific facility. Callers fall back to broadcast, per spec.md §9's
// documented deviation.
type RawUnicastSender struct{}

// NewRawUnicastSender always fails on this platform.
func NewRawUnicastSender(_ net.Interface) (*RawUnicastSender, error) {
	return nil, errors.New("rawsend: raw unicast send is only supported on linux")
}

// Send is unreachable; NewRawUnicastSender never succeeds on this platform.
func (*RawUnicastSender) Send([]byte, net.IP, net.IP, net.HardwareAddr) error {
	return errors.New("rawsend: raw unicast send is only supported on linux")
}

// Close is a no-op.
func (*RawUnicastSender) Close() error { return nil }
