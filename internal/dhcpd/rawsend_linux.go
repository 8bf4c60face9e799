//go:build linux

package dhcpd

import (
	"fmt"
	"net"
	"syscall"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// RawUnicastSender delivers a reply directly to a client's MAC address over
// a raw AF_PACKET socket, for the "unicast to yiaddr without ARP" case in
// spec.md §4.6/§9. It is adapted from sendEthernet.go: the Ethernet/IPv4/UDP
// framing and AF_PACKET send are kept, but the payload is this package's own
// EncodeMessageMinSize output rather than insomniacslk/dhcp's DHCPv4.ToBytes,
// and the socket is opened once at construction instead of per send.
type RawUnicastSender struct {
	iface net.Interface
	fd    int
}

// NewRawUnicastSender opens an AF_PACKET/SOCK_RAW socket for iface. The
// socket is not bound; each Send addresses its frame to iface's index.
func NewRawUnicastSender(iface net.Interface) (*RawUnicastSender, error) {
	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, 0)
	if err != nil {
		return nil, fmt.Errorf("rawsend: opening socket: %w", err)
	}

	if err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		_ = syscall.Close(fd)

		return nil, fmt.Errorf("rawsend: setting SO_REUSEADDR: %w", err)
	}

	return &RawUnicastSender{iface: iface, fd: fd}, nil
}

// Send wraps payload in Ethernet/IPv4/UDP frames addressed to dstMAC/dstIP
// and writes it directly to the link layer, bypassing ARP resolution.
func (s *RawUnicastSender) Send(payload []byte, srcIP, dstIP net.IP, dstMAC net.HardwareAddr) error {
	eth := layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv4,
		SrcMAC:       s.iface.HardwareAddr,
		DstMAC:       dstMAC,
	}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    srcIP,
		DstIP:    dstIP,
		Protocol: layers.IPProtocolUDP,
		Flags:    layers.IPv4DontFragment,
	}
	udp := layers.UDP{
		SrcPort: serverPort,
		DstPort: clientPort,
	}

	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return fmt.Errorf("rawsend: setting network layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}

	err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload))
	if err != nil {
		return fmt.Errorf("rawsend: serializing layers: %w", err)
	}

	var hwAddr [8]byte
	copy(hwAddr[:6], dstMAC)

	addr := syscall.SockaddrLinklayer{
		Protocol: 0,
		Ifindex:  s.iface.Index,
		Halen:    6,
		Addr:     hwAddr,
	}

	if err = syscall.Sendto(s.fd, buf.Bytes(), 0, &addr); err != nil {
		return fmt.Errorf("rawsend: sending frame: %w", err)
	}

	return nil
}

// Close releases the underlying socket.
func (s *RawUnicastSender) Close() error {
	return syscall.Close(s.fd)
}
