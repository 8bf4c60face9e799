package dhcpd

import "net"

const (
	clientPort = 68
	serverPort = 67
)

// broadcastAddr is the limited broadcast address, 255.255.255.255.
var broadcastAddr = net.IPv4(255, 255, 255, 255)

// replyDestination computes where to send resp in reply to req, per the
// table in spec.md §4.6 / RFC 2131 §4.1. unicastYiaddrOK reports whether
// the caller's transport can unicast to a yiaddr that hasn't completed ARP
// yet (true when a RawUnicastSender is available); when false the
// yiaddr-unicast case falls back to broadcast, per spec.md §9's documented
// deviation.
func replyDestination(req, resp *DhcpMessage, unicastYiaddrOK bool) *net.UDPAddr {
	if !req.GIAddr.IsUnspecified() && req.GIAddr != nil {
		return &net.UDPAddr{IP: req.GIAddr, Port: serverPort}
	}

	if resp.MessageType() == MessageTypeNak {
		return &net.UDPAddr{IP: broadcastAddr, Port: clientPort}
	}

	if resp.MessageType() == MessageTypeAck && isInformReply(resp) {
		return &net.UDPAddr{IP: req.CIAddr, Port: clientPort}
	}

	if !req.CIAddr.IsUnspecified() && req.CIAddr != nil {
		return &net.UDPAddr{IP: req.CIAddr, Port: clientPort}
	}

	if req.Broadcast() {
		return &net.UDPAddr{IP: broadcastAddr, Port: clientPort}
	}

	if unicastYiaddrOK {
		return &net.UDPAddr{IP: resp.YIAddr, Port: clientPort}
	}

	return &net.UDPAddr{IP: broadcastAddr, Port: clientPort}
}

// isInformReply distinguishes an INFORM's ACK (destined to ciaddr, no
// giaddr/ciaddr branching needed beyond that) from an ordinary ACK. It's
// detected by yiaddr being unset, which INFORM replies always leave zero
// per spec.md §4.5.
func isInformReply(resp *DhcpMessage) bool {
	return resp.YIAddr == nil || resp.YIAddr.IsUnspecified()
}
