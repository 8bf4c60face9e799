// Package dhcpd implements the core of a DHCPv4 server: wire codec, lease
// table, address allocator, and the per-client request/reply state machine
// described by RFC 2131 and RFC 2132.
//
// The server core reaches the socket layer, the persistence encoding, and
// the logging backend only through the UdpTransport, ClientStore, and Logger
// interfaces, which callers may implement. The package also ships default
// implementations: a net.UDPConn transport, the JSON FileClientStore, and an
// slog-backed Logger.
package dhcpd
