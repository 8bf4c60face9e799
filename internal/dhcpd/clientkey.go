package dhcpd

import (
	"encoding/hex"
	"net"
	"time"
)

// ClientKey identifies a client across messages. Per spec.md §3, it is
// derived from option 61 (Client Identifier) when present, and falls back
// to the hardware address (chaddr) otherwise, mirroring the matching rule a
// server must apply when looking up an existing lease for a REQUEST.
type ClientKey string

// DeriveClientKey computes the ClientKey for m.
func DeriveClientKey(m *DhcpMessage) ClientKey {
	if o, ok := m.Option(OptClientIdentifier); ok {
		if ci, ok := o.(ClientIdentifier); ok && len(ci.Data) > 0 {
			return ClientKey("cid:" + hex.EncodeToString(ci.Data))
		}
	}

	return ClientKey("hw:" + hex.EncodeToString(m.CHAddr))
}

// LeaseState is the lifecycle state of a ClientRecord.
type LeaseState uint8

// Lease states named in spec.md §3.
const (
	LeaseReleased LeaseState = iota
	LeaseOffered
	LeaseAssigned
)

// String implements fmt.Stringer for LeaseState.
func (s LeaseState) String() string {
	switch s {
	case LeaseOffered:
		return "OFFERED"
	case LeaseAssigned:
		return "ASSIGNED"
	default:
		return "RELEASED"
	}
}

// ClientRecord is the lease table's per-client entry.
type ClientRecord struct {
	Key         ClientKey
	HWAddr      net.HardwareAddr
	IP          net.IP
	Hostname    string
	State       LeaseState
	OfferedAt   time.Time
	AssignedAt  time.Time
	LeaseLength time.Duration
}

// LeaseEnd returns the moment the lease expires. It is only meaningful for
// a record in LeaseAssigned; callers must check State first.
func (r *ClientRecord) LeaseEnd() time.Time {
	return r.AssignedAt.Add(r.LeaseLength)
}

// Expired reports whether the record's lease has ended as of now.
// offerExpiration is the configured grace window for an un-renewed OFFER
// (Configuration.OfferExpiration, spec.md §3); it is meaningless for any
// other state.
func (r *ClientRecord) Expired(now time.Time, offerExpiration time.Duration) bool {
	switch r.State {
	case LeaseAssigned:
		return !now.Before(r.LeaseEnd())
	case LeaseOffered:
		return now.Sub(r.OfferedAt) > offerExpiration
	default:
		return true
	}
}

// Clone returns a deep copy of r suitable for returning from a snapshot
// without aliasing the table's internal state.
func (r *ClientRecord) Clone() *ClientRecord {
	if r == nil {
		return nil
	}

	c := *r
	c.HWAddr = append(net.HardwareAddr(nil), r.HWAddr...)
	c.IP = append(net.IP(nil), r.IP...)

	return &c
}
