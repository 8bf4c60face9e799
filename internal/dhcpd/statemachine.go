package dhcpd

import (
	"fmt"
	"net"
	"time"
)

// requestHandler implements the per-message dispatch of spec.md §4.5. It
// holds everything the state machine needs but owns no I/O: Handle takes a
// decoded request and returns a reply to send, or ok=false when spec.md
// says to log and not reply.
//
// Grounded on the teacher's handler4.go dispatch
// (handleDiscover/handleSelecting/handleInitReboot/handleRenew/
// handleDecline/handleRelease) and v4_unix.go's handleByRequestType/handle,
// adapted from insomniacslk/dhcp's DHCPv4 type to this package's
// DhcpMessage/Option types.
type requestHandler struct {
	cfg           *Configuration
	table         *leaseTable
	alloc         *allocator
	logger        Logger
	interceptors  []MessageInterceptor
	unicastYiaddr bool
}

// Handle dispatches req by its message type and returns the reply to send,
// the destination to send it to, and whether a reply should be sent at all.
func (h *requestHandler) Handle(req *DhcpMessage, now time.Time) (resp *DhcpMessage, dst *net.UDPAddr, ok bool) {
	if req.Op != OpBootRequest {
		return nil, nil, false
	}

	switch req.MessageType() {
	case MessageTypeDiscover:
		resp, ok = h.handleDiscover(req, now)
	case MessageTypeRequest:
		resp, ok = h.handleRequest(req, now)
	case MessageTypeDecline:
		resp, ok = h.handleDecline(req, now)
	case MessageTypeRelease:
		resp, ok = h.handleRelease(req, now)
	case MessageTypeInform:
		resp, ok = h.handleInform(req)
	default:
		h.logger.Debug("ignoring message", "type", req.MessageType())

		return nil, nil, false
	}

	if !ok {
		return nil, nil, false
	}

	applyConfiguredOptions(h.cfg, req, resp)
	applyInterceptors(h.interceptors, req, resp)

	dst = replyDestination(req, resp, h.unicastYiaddr)

	return resp, dst, true
}

func (h *requestHandler) handleDiscover(req *DhcpMessage, now time.Time) (*DhcpMessage, bool) {
	key := DeriveClientKey(req)
	rec := h.table.Get(key)

	var ip net.IP
	switch {
	case rec != nil && (rec.State == LeaseOffered || rec.State == LeaseAssigned):
		ip = rec.IP
	case rec == nil || rec.State == LeaseReleased:
		ip = h.alloc.Allocate(req, now)
		if !ip.Equal(net.IPv4zero) {
			h.table.InsertOrReplace(&ClientRecord{
				Key:       key,
				HWAddr:    req.CHAddr,
				IP:        ip,
				Hostname:  hostnameOf(req),
				State:     LeaseOffered,
				OfferedAt: now,
			})
		}
	}

	if ip == nil || ip.Equal(net.IPv4zero) {
		h.logger.Error("discover failed", "client_key", key, "error", ErrAllocationExhausted)

		return nil, false
	}

	resp := h.buildReplySkeleton(req, OpBootReply)
	resp.YIAddr = ip
	resp.SetOption(MessageTypeOption{Type: MessageTypeOffer})
	resp.SetOption(IPAddressLeaseTime{Duration: h.cfg.LeaseTime})
	resp.SetOption(ServerIdentifier{IP: h.cfg.Endpoint.IP})
	h.maybeAddSubnetMask(req, resp)

	return resp, true
}

func (h *requestHandler) handleRequest(req *DhcpMessage, now time.Time) (*DhcpMessage, bool) {
	hasSrvID := false
	var srvID net.IP
	if o, ok := req.Option(OptServerIdentifier); ok {
		if sid, ok := o.(ServerIdentifier); ok {
			hasSrvID = true
			srvID = sid.IP
		}
	}

	switch {
	case hasSrvID:
		return h.handleSelecting(req, now, srvID)
	case req.CIAddr.IsUnspecified() || req.CIAddr == nil:
		return h.handleInitReboot(req, now)
	default:
		return h.handleRenew(req, now)
	}
}

func (h *requestHandler) handleSelecting(req *DhcpMessage, now time.Time, srvID net.IP) (*DhcpMessage, bool) {
	key := DeriveClientKey(req)

	if !srvID.Equal(h.cfg.Endpoint.IP) {
		if rec := h.table.Get(key); rec != nil && rec.State == LeaseOffered {
			h.table.Remove(key)
		}

		return nil, false
	}

	reqIPOpt, hasReqIP := req.Option(OptRequestedIPAddress)
	if !hasReqIP {
		h.logger.Debug("selecting nak", "client_key", key, "error", fmt.Errorf("%w: no requested address", ErrPolicyReject))

		return h.nak(req), true
	}

	reqIP := reqIPOpt.(RequestedIPAddress).IP

	rec := h.table.Get(key)
	if rec == nil || rec.State != LeaseOffered {
		h.logger.Debug("selecting nak", "client_key", key, "error", fmt.Errorf("%w: no outstanding offer", ErrPolicyReject))

		return h.nak(req), true
	}

	if !rec.IP.Equal(reqIP) {
		h.table.Remove(key)

		h.logger.Debug("selecting nak", "client_key", key, "error", fmt.Errorf("%w: requested address does not match offer", ErrPolicyReject))

		return h.nak(req), true
	}

	rec.State = LeaseAssigned
	rec.AssignedAt = now
	rec.LeaseLength = h.cfg.LeaseTime
	h.table.InsertOrReplace(rec)

	return h.ack(req, rec.IP), true
}

func (h *requestHandler) handleInitReboot(req *DhcpMessage, now time.Time) (*DhcpMessage, bool) {
	key := DeriveClientKey(req)

	reqIPOpt, hasReqIP := req.Option(OptRequestedIPAddress)
	if !hasReqIP {
		return h.nak(req), true
	}
	reqIP := reqIPOpt.(RequestedIPAddress).IP

	rec := h.table.Get(key)
	if rec == nil || rec.State != LeaseAssigned || !rec.IP.Equal(reqIP) {
		if rec != nil {
			h.table.Remove(key)
		}

		return h.nak(req), true
	}

	rec.AssignedAt = now
	h.table.InsertOrReplace(rec)

	return h.ack(req, rec.IP), true
}

func (h *requestHandler) handleRenew(req *DhcpMessage, now time.Time) (*DhcpMessage, bool) {
	key := DeriveClientKey(req)
	ciaddr := req.CIAddr

	rec := h.table.Get(key)
	if rec != nil && rec.State == LeaseAssigned && rec.IP.Equal(ciaddr) {
		rec.AssignedAt = now
		h.table.InsertOrReplace(rec)

		return h.ack(req, rec.IP), true
	}

	if rec != nil {
		h.table.Remove(key)
	}

	if h.alloc.isFree(ciaddr, now) {
		h.table.InsertOrReplace(&ClientRecord{
			Key:         key,
			HWAddr:      req.CHAddr,
			IP:          ciaddr,
			Hostname:    hostnameOf(req),
			State:       LeaseAssigned,
			AssignedAt:  now,
			LeaseLength: h.cfg.LeaseTime,
		})

		return h.ack(req, ciaddr), true
	}

	h.logger.Warn("renew: address collision", "client_key", key, "ciaddr", ciaddr)

	return nil, false
}

func (h *requestHandler) handleDecline(req *DhcpMessage, now time.Time) (*DhcpMessage, bool) {
	o, ok := req.Option(OptServerIdentifier)
	if !ok || !o.(ServerIdentifier).IP.Equal(h.cfg.Endpoint.IP) {
		return nil, false
	}

	key := DeriveClientKey(req)
	if rec := h.table.Get(key); rec != nil {
		h.table.Remove(key)
		if rec.IP != nil {
			h.table.Block(rec.IP, now, h.cfg.DeclineBlacklist)
		}
	}

	return nil, false
}

func (h *requestHandler) handleRelease(req *DhcpMessage, _ time.Time) (*DhcpMessage, bool) {
	o, ok := req.Option(OptServerIdentifier)
	if !ok || !o.(ServerIdentifier).IP.Equal(h.cfg.Endpoint.IP) {
		return nil, false
	}

	key := DeriveClientKey(req)
	rec := h.table.Get(key)
	if rec == nil {
		return nil, false
	}

	if !rec.IP.Equal(req.CIAddr) {
		rec.IP = nil
	}
	rec.State = LeaseReleased
	h.table.InsertOrReplace(rec)

	return nil, false
}

func (h *requestHandler) handleInform(req *DhcpMessage) (*DhcpMessage, bool) {
	resp := h.buildReplySkeleton(req, OpBootReply)
	resp.YIAddr = net.IPv4zero
	resp.SetOption(MessageTypeOption{Type: MessageTypeAck})
	resp.SetOption(ServerIdentifier{IP: h.cfg.Endpoint.IP})
	h.maybeAddSubnetMask(req, resp)

	return resp, true
}

// nak builds a NAK reply per spec.md §4.5's NAK construction rule.
func (h *requestHandler) nak(req *DhcpMessage) *DhcpMessage {
	resp := h.buildReplySkeleton(req, OpBootReply)
	resp.SIAddr = net.IPv4zero
	resp.CIAddr = net.IPv4zero
	resp.YIAddr = net.IPv4zero
	resp.SetOption(MessageTypeOption{Type: MessageTypeNak})
	resp.SetOption(ServerIdentifier{IP: h.cfg.Endpoint.IP})
	h.maybeAddSubnetMask(req, resp)

	return resp
}

// ack builds an ACK reply carrying yiaddr.
func (h *requestHandler) ack(req *DhcpMessage, yiaddr net.IP) *DhcpMessage {
	resp := h.buildReplySkeleton(req, OpBootReply)
	resp.YIAddr = yiaddr
	resp.SetOption(MessageTypeOption{Type: MessageTypeAck})
	resp.SetOption(IPAddressLeaseTime{Duration: h.cfg.LeaseTime})
	resp.SetOption(ServerIdentifier{IP: h.cfg.Endpoint.IP})
	h.maybeAddSubnetMask(req, resp)

	return resp
}

// buildReplySkeleton mirrors the xid, zeroes secs, mirrors broadcast/giaddr/
// chaddr/htype, per spec.md §4.5's OFFER construction rule (applied to
// every reply type for consistency).
func (h *requestHandler) buildReplySkeleton(req *DhcpMessage, op uint8) *DhcpMessage {
	return &DhcpMessage{
		Op:     op,
		HType:  req.HType,
		HLen:   req.HLen,
		Xid:    req.Xid,
		Secs:   0,
		Flags:  req.Flags,
		CIAddr: net.IPv4zero,
		YIAddr: net.IPv4zero,
		SIAddr: h.cfg.Endpoint.IP,
		GIAddr: req.GIAddr,
		CHAddr: req.CHAddr,
	}
}

// maybeAddSubnetMask appends option 1 only if the client requested it via
// option 55, per spec.md §4.5.
func (h *requestHandler) maybeAddSubnetMask(req *DhcpMessage, resp *DhcpMessage) {
	o, ok := req.Option(OptParameterRequestList)
	if !ok {
		return
	}

	prl, ok := o.(ParameterRequestList)
	if !ok || !prl.Contains(OptSubnetMask) {
		return
	}

	resp.SetOption(SubnetMask{IP: net.IP(h.cfg.SubnetMask)})
}

// hostnameOf returns the client's requested hostname (option 12), or "".
func hostnameOf(m *DhcpMessage) string {
	if o, ok := m.Option(OptHostName); ok {
		if hn, ok := o.(HostName); ok {
			return hn.Name
		}
	}

	return ""
}
