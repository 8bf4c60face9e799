package dhcpd

import (
	"net"
	"time"
)

// allocator picks an address for a client per spec.md §4.4: reservation
// path first, then the client's requested address if free, then a two-pass
// scan of the pool that prefers addresses with no history over reused
// Released ones. It is grounded on the teacher's nextIP/findExpiredLease/
// reserveLease sequence in v4_unix.go and the sanitize-then-scan shape of
// iprange.go, adapted to this module's lease table and reservation rules.
type allocator struct {
	pool         *ipRange
	subnet       net.IPNet
	serverIP     net.IP
	reservations []Reservation
	table        *leaseTable
}

// newAllocator builds an allocator over [poolStart, poolEnd] within subnet.
func newAllocator(
	poolStart, poolEnd net.IP,
	subnet net.IPNet,
	serverIP net.IP,
	reservations []Reservation,
	table *leaseTable,
) (*allocator, error) {
	a := &allocator{
		subnet:       subnet,
		serverIP:     serverIP,
		reservations: reservations,
		table:        table,
	}

	r, err := newIPRange(a.sanitize(poolStart), a.sanitize(poolEnd))
	if err != nil {
		return nil, err
	}
	a.pool = r

	return a, nil
}

// sanitize forces addr into the server's subnet per spec.md §4.4 step 1:
// (server & mask) | (addr & ~mask).
func (a *allocator) sanitize(addr net.IP) net.IP {
	addr4 := addr.To4()
	server4 := a.serverIP.To4()
	mask := net.IP(a.subnet.Mask).To4()
	if addr4 == nil || server4 == nil || mask == nil {
		return addr
	}

	out := make(net.IP, net.IPv4len)
	for i := range out {
		out[i] = (server4[i] & mask[i]) | (addr4[i] &^ mask[i])
	}

	return out
}

// Allocate returns an address for the client that sent m, or net.IPv4zero
// on exhaustion.
func (a *allocator) Allocate(m *DhcpMessage, now time.Time) net.IP {
	if res := matchReservation(a.reservations, m); res != nil {
		if ip := a.allocateReservation(res, now); ip != nil {
			return ip
		}
	}

	if o, ok := m.Option(OptRequestedIPAddress); ok {
		if req, ok := o.(RequestedIPAddress); ok && req.IP != nil {
			ip := a.sanitize(req.IP)
			if a.isFree(ip, now) {
				return ip
			}
		}
	}

	if ip := a.scanRange(a.pool, now, false); ip != nil {
		return ip
	}

	if ip := a.scanRange(a.pool, now, true); ip != nil {
		return ip
	}

	return net.IPv4zero
}

// allocateReservation implements spec.md §4.4 step 2.
func (a *allocator) allocateReservation(res *Reservation, now time.Time) net.IP {
	resRange, err := newIPRange(a.sanitize(res.PoolStart), a.sanitize(res.PoolEnd))
	if err != nil {
		return nil
	}

	if ip := a.scanRange(resRange, now, true); ip != nil {
		return ip
	}

	if res.Preempt {
		return a.sanitize(res.PoolStart)
	}

	return nil
}

// scanRange walks r in address order and returns the first address
// satisfying freeness, per spec.md §4.4 steps 4-5. allowReleaseReuse
// selects between the strict first pass and the permissive second pass;
// when it reuses a Released record's address, the prior owner's address
// field is cleared.
func (a *allocator) scanRange(r *ipRange, now time.Time, allowReleaseReuse bool) net.IP {
	return r.find(func(ip net.IP) bool {
		ip4 := ip.To4()
		if ip4 == nil || !a.inSubnet(ip4) || ip4.Equal(a.serverIP.To4()) {
			return false
		}

		if a.table.IsBlocked(ip4, now) {
			return false
		}

		rec := a.table.GetByAddr(ip4)
		if rec == nil {
			return true
		}

		if rec.State != LeaseReleased {
			return false
		}

		if !allowReleaseReuse {
			return false
		}

		a.table.ClearAddress(rec.Key)

		return true
	})
}

// isFree implements the "free" predicate from spec.md §4.4's closing
// paragraph: in-subnet, not the server's own address, not blocked, and no
// non-Released record owns it.
func (a *allocator) isFree(ip net.IP, now time.Time) bool {
	ip4 := ip.To4()
	if ip4 == nil || !a.inSubnet(ip4) || ip4.Equal(a.serverIP.To4()) {
		return false
	}

	if a.table.IsBlocked(ip4, now) {
		return false
	}

	rec := a.table.GetByAddr(ip4)
	if rec == nil {
		return true
	}

	if rec.State != LeaseReleased {
		return false
	}

	a.table.ClearAddress(rec.Key)

	return true
}

func (a *allocator) inSubnet(ip4 net.IP) bool {
	return a.subnet.Contains(ip4)
}
