package dhcpd

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceQueue_enqueueCoalesces(t *testing.T) {
	table := newLeaseTable(noopLogger{}, 0, nil)
	store := &countingStore{}
	q := newPersistenceQueue(store, "unused", table, noopLogger{})

	go q.Run()

	q.Enqueue()
	q.Enqueue()
	q.Enqueue()

	q.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, store.writes, 2)
}

type countingStore struct {
	writes int
}

func (s *countingStore) Read(string) ([]*ClientRecord, error) { return nil, nil }

func (s *countingStore) Write(string, []*ClientRecord) error {
	s.writes++

	return nil
}

func TestFileClientStore_roundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leases.json")

	pool := net.IPNet{IP: net.IPv4(192, 168, 1, 0).To4(), Mask: net.CIDRMask(24, 32)}
	store := NewFileClientStore([]net.IPNet{pool})

	records := []*ClientRecord{
		{
			Key:         "k1",
			HWAddr:      net.HardwareAddr{1, 2, 3, 4, 5, 6},
			IP:          net.IPv4(192, 168, 1, 20).To4(),
			Hostname:    "host1",
			State:       LeaseAssigned,
			AssignedAt:  time.Now().Truncate(time.Second),
			LeaseLength: time.Hour,
		},
		{
			Key:   "k2",
			State: LeaseOffered,
			IP:    net.IPv4(192, 168, 1, 21).To4(),
		},
	}

	require.NoError(t, store.Write(path, records))

	loaded, err := store.Read(path)
	require.NoError(t, err)

	// Offered records are discarded on read.
	require.Len(t, loaded, 1)
	assert.Equal(t, ClientKey("k1"), loaded[0].Key)
	assert.Equal(t, "192.168.1.20", loaded[0].IP.String())
}

func TestFileClientStore_discardsOutOfPoolAddresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leases.json")

	pool := net.IPNet{IP: net.IPv4(192, 168, 1, 0).To4(), Mask: net.CIDRMask(24, 32)}
	store := NewFileClientStore([]net.IPNet{pool})

	records := []*ClientRecord{
		{Key: "k1", IP: net.IPv4(10, 0, 0, 5).To4(), State: LeaseAssigned, HWAddr: net.HardwareAddr{1, 2, 3, 4, 5, 6}},
	}

	require.NoError(t, store.Write(path, records))

	loaded, err := store.Read(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileClientStore_missingFileReturnsEmpty(t *testing.T) {
	store := NewFileClientStore(nil)

	loaded, err := store.Read(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
