package dhcpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// UdpTransport is the socket abstraction the server is built against, per
// spec.md §6. Implementations must set SO_BROADCAST and tolerate rebinding
// to an address already in use; on Linux a transport may additionally bind
// to a single interface via SO_BINDTODEVICE (see conn_linux.go).
type UdpTransport interface {
	// Receive reads the next datagram. Errors are classified via
	// errors.Is(err, ErrTransportTransient) / ErrTransportFatal.
	Receive() (peer *net.UDPAddr, data []byte, err error)

	// Send writes data to peer.
	Send(peer *net.UDPAddr, data []byte) error

	// LocalEndpoint returns the address the transport is bound to.
	LocalEndpoint() *net.UDPAddr

	// Close releases the underlying socket, causing a pending Receive to
	// return ErrTransportFatal.
	Close() error
}

// udpTransport is the default UdpTransport, built on net.UDPConn. Grounded
// on the teacher's conn_unix.go (SO_BROADCAST/SO_REUSEADDR setup via
// net.ListenConfig.Control) with the raw-packet half of that file split out
// to rawsend_linux.go's RawUnicastSender instead of being fused into one
// connection type.
type udpTransport struct {
	conn       *net.UDPConn
	bufferSize int
}

// newUDPTransport binds a UDP socket at addr, optionally restricted to
// iface on platforms that support SO_BINDTODEVICE (see configureSocket in
// conn_linux.go).
func newUDPTransport(addr *net.UDPAddr, iface string, bufferSize int) (*udpTransport, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return configureSocket(c, iface)
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("binding udp transport: %w", err)
	}

	return &udpTransport{conn: pc.(*net.UDPConn), bufferSize: bufferSize}, nil
}

func (t *udpTransport) Receive() (*net.UDPAddr, []byte, error) {
	buf := make([]byte, t.bufferSize)

	n, peer, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if isTransientNetError(err) {
			return nil, nil, fmt.Errorf("%w: %w", ErrTransportTransient, err)
		}

		return nil, nil, fmt.Errorf("%w: %w", ErrTransportFatal, err)
	}

	return peer, buf[:n], nil
}

func (t *udpTransport) Send(peer *net.UDPAddr, data []byte) error {
	_, err := t.conn.WriteToUDP(data, peer)
	if err != nil {
		if isTransientNetError(err) {
			return fmt.Errorf("%w: %w", ErrTransportTransient, err)
		}

		return fmt.Errorf("%w: %w", ErrTransportFatal, err)
	}

	return nil
}

func (t *udpTransport) LocalEndpoint() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

func (t *udpTransport) Close() error {
	return t.conn.Close()
}

// isTransientNetError reports whether err is the kind of UDP error spec.md
// §6 says to tolerate: oversize datagrams and connection resets. Timeouts
// (such as an expired read deadline) are treated as transient too.
func isTransientNetError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EMSGSIZE) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return false
}

// deadlineAwareReceive is a small helper some tests use to bound how long
// Receive may block.
func deadlineAwareReceive(t *udpTransport, d time.Duration) (*net.UDPAddr, []byte, error) {
	_ = t.conn.SetReadDeadline(timeNow().Add(d))

	return t.Receive()
}

// timeNow is indirected so tests can't accidentally rely on wall-clock
// behavior beyond what they explicitly control.
var timeNow = time.Now
