package dhcpd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseTable_insertGetRemove(t *testing.T) {
	var dirtyCount int
	table := newLeaseTable(noopLogger{}, 0, func() { dirtyCount++ })

	rec := &ClientRecord{Key: "k1", IP: net.IPv4(10, 0, 0, 5).To4(), State: LeaseAssigned}
	table.InsertOrReplace(rec)

	got := table.Get("k1")
	require.NotNil(t, got)
	assert.Equal(t, "10.0.0.5", got.IP.String())

	byAddr := table.GetByAddr(net.IPv4(10, 0, 0, 5).To4())
	require.NotNil(t, byAddr)
	assert.Equal(t, ClientKey("k1"), byAddr.Key)

	table.Remove("k1")
	assert.Nil(t, table.Get("k1"))
	assert.Nil(t, table.GetByAddr(net.IPv4(10, 0, 0, 5).To4()))

	assert.Greater(t, dirtyCount, 0)
}

func TestLeaseTable_tickEvictsExpiredAssigned(t *testing.T) {
	table := newLeaseTable(noopLogger{}, 0, nil)
	now := time.Now()

	table.InsertOrReplace(&ClientRecord{
		Key:         "k1",
		IP:          net.IPv4(10, 0, 0, 5).To4(),
		State:       LeaseAssigned,
		AssignedAt:  now.Add(-2 * time.Hour),
		LeaseLength: time.Hour,
	})

	table.Tick(now)

	assert.Nil(t, table.Get("k1"))
}

func TestLeaseTable_tickEvictsStaleOffer(t *testing.T) {
	table := newLeaseTable(noopLogger{}, time.Minute, nil)
	now := time.Now()
	ip := net.IPv4(10, 0, 0, 5).To4()

	table.InsertOrReplace(&ClientRecord{
		Key:       "k1",
		IP:        ip,
		State:     LeaseOffered,
		OfferedAt: now.Add(-10 * time.Minute),
	})

	table.Tick(now)

	assert.Nil(t, table.Get("k1"))
	assert.Nil(t, table.GetByAddr(ip))
}

func TestLeaseTable_offerExpirationIsConfigurable(t *testing.T) {
	now := time.Now()
	ip := net.IPv4(10, 0, 0, 6).To4()
	offeredAt := now.Add(-time.Minute)

	longWindow := newLeaseTable(noopLogger{}, time.Hour, nil)
	longWindow.InsertOrReplace(&ClientRecord{Key: "k1", IP: ip, State: LeaseOffered, OfferedAt: offeredAt})
	longWindow.Tick(now)
	assert.NotNil(t, longWindow.Get("k1"))

	shortWindow := newLeaseTable(noopLogger{}, 30*time.Second, nil)
	shortWindow.InsertOrReplace(&ClientRecord{Key: "k1", IP: ip, State: LeaseOffered, OfferedAt: offeredAt})
	shortWindow.Tick(now)
	assert.Nil(t, shortWindow.Get("k1"))
}

func TestLeaseTable_declineBlacklist(t *testing.T) {
	table := newLeaseTable(noopLogger{}, 0, nil)
	now := time.Now()
	ip := net.IPv4(10, 0, 0, 9).To4()

	table.Block(ip, now, time.Minute)
	assert.True(t, table.IsBlocked(ip, now))
	assert.True(t, table.AddressInUse(ip, now))

	assert.False(t, table.IsBlocked(ip, now.Add(2*time.Minute)))
}

func TestClientRecord_cloneIsIndependent(t *testing.T) {
	rec := &ClientRecord{Key: "k1", IP: net.IPv4(1, 2, 3, 4).To4()}
	clone := rec.Clone()
	clone.IP[0] = 9

	assert.Equal(t, byte(1), rec.IP[0])
}

func TestDeriveClientKey_prefersClientIdentifier(t *testing.T) {
	m := &DhcpMessage{
		CHAddr: net.HardwareAddr{1, 2, 3, 4, 5, 6},
		Options: []Option{
			ClientIdentifier{Data: []byte{1, 0xaa, 0xbb}},
		},
	}

	k1 := DeriveClientKey(m)

	m2 := &DhcpMessage{CHAddr: m.CHAddr}
	k2 := DeriveClientKey(m2)

	assert.NotEqual(t, k1, k2)
}
