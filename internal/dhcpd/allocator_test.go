package dhcpd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, reservations []Reservation) (*allocator, *leaseTable) {
	t.Helper()

	table := newLeaseTable(noopLogger{}, 0, nil)
	subnet := net.IPNet{IP: net.IPv4(192, 168, 1, 0).To4(), Mask: net.CIDRMask(24, 32)}
	server := net.IPv4(192, 168, 1, 1).To4()

	alloc, err := newAllocator(
		net.IPv4(192, 168, 1, 10).To4(),
		net.IPv4(192, 168, 1, 12).To4(),
		subnet,
		server,
		reservations,
		table,
	)
	require.NoError(t, err)

	return alloc, table
}

func discoverFrom(mac net.HardwareAddr) *DhcpMessage {
	return &DhcpMessage{
		CHAddr: mac,
		CIAddr: net.IPv4zero,
		YIAddr: net.IPv4zero,
		SIAddr: net.IPv4zero,
		GIAddr: net.IPv4zero,
		Options: []Option{
			MessageTypeOption{Type: MessageTypeDiscover},
		},
	}
}

func TestAllocator_fairnessAndExhaustion(t *testing.T) {
	alloc, table := newTestAllocator(t, nil)
	now := time.Now()

	got := []string{}
	for i := 0; i < 3; i++ {
		mac := net.HardwareAddr{0, 0, 0, 0, 0, byte(i)}
		ip := alloc.Allocate(discoverFrom(mac), now)
		require.False(t, ip.Equal(net.IPv4zero), "allocation %d should succeed", i)
		got = append(got, ip.String())

		table.InsertOrReplace(&ClientRecord{
			Key:   ClientKey(mac.String()),
			IP:    ip,
			State: LeaseAssigned,
		})
	}

	assert.Equal(t, []string{"192.168.1.10", "192.168.1.11", "192.168.1.12"}, got)

	exhausted := alloc.Allocate(discoverFrom(net.HardwareAddr{9, 9, 9, 9, 9, 9}), now)
	assert.True(t, exhausted.Equal(net.IPv4zero))
}

func TestAllocator_releasedReuse(t *testing.T) {
	alloc, table := newTestAllocator(t, nil)
	now := time.Now()

	var last net.IP
	for i := 0; i < 3; i++ {
		mac := net.HardwareAddr{0, 0, 0, 0, 0, byte(i)}
		ip := alloc.Allocate(discoverFrom(mac), now)
		last = ip
		table.InsertOrReplace(&ClientRecord{Key: ClientKey(mac.String()), IP: ip, State: LeaseAssigned})
	}

	lastKey := ClientKey(net.HardwareAddr{0, 0, 0, 0, 0, 2}.String())
	rec := table.Get(lastKey)
	rec.State = LeaseReleased
	table.InsertOrReplace(rec)

	reused := alloc.Allocate(discoverFrom(net.HardwareAddr{1, 1, 1, 1, 1, 1}), now)
	assert.True(t, reused.Equal(last))

	prevOwner := table.Get(lastKey)
	assert.Nil(t, prevOwner.IP)
}

func TestAllocator_reservationPreempt(t *testing.T) {
	preemptIP := net.IPv4(192, 168, 1, 11).To4()
	res := []Reservation{
		{
			MACPrefix:     net.HardwareAddr{0xAA},
			MACPrefixBits: 8,
			PoolStart:     preemptIP,
			PoolEnd:       preemptIP,
			Preempt:       true,
		},
	}

	alloc, table := newTestAllocator(t, res)
	now := time.Now()

	table.InsertOrReplace(&ClientRecord{
		Key:   "someone-else",
		IP:    preemptIP,
		State: LeaseAssigned,
	})

	ip := alloc.Allocate(discoverFrom(net.HardwareAddr{0xAA, 1, 2, 3, 4, 5}), now)
	assert.True(t, ip.Equal(preemptIP))
}

func TestAllocator_requestedAddressHonored(t *testing.T) {
	alloc, _ := newTestAllocator(t, nil)
	now := time.Now()

	req := discoverFrom(net.HardwareAddr{1, 2, 3, 4, 5, 6})
	req.Options = append(req.Options, RequestedIPAddress{IP: net.IPv4(192, 168, 1, 12).To4()})

	ip := alloc.Allocate(req, now)
	assert.Equal(t, "192.168.1.12", ip.String())
}

func TestAllocator_sanitizeForcesSubnet(t *testing.T) {
	alloc, _ := newTestAllocator(t, nil)

	out := alloc.sanitize(net.IPv4(10, 0, 0, 55).To4())
	assert.Equal(t, "192.168.1.55", out.String())
}
