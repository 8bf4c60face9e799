package dhcpd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservation_macPrefixPartialByte(t *testing.T) {
	// prefixBits=12 means the first byte must match fully and the high
	// nibble of the second byte must match.
	res := &Reservation{
		MACPrefix:     net.HardwareAddr{0xAA, 0xB0},
		MACPrefixBits: 12,
	}

	m := &DhcpMessage{CHAddr: net.HardwareAddr{0xAA, 0xBF, 0, 0, 0, 1}}
	assert.True(t, res.Matches(m))

	m2 := &DhcpMessage{CHAddr: net.HardwareAddr{0xAA, 0xCF, 0, 0, 0, 1}}
	assert.False(t, res.Matches(m2))
}

func TestReservation_hostnamePrefixCaseInsensitive(t *testing.T) {
	res := &Reservation{HostnamePrefix: "printer-"}

	m := &DhcpMessage{Options: []Option{HostName{Name: "PRINTER-lobby"}}}
	assert.True(t, res.Matches(m))

	m2 := &DhcpMessage{Options: []Option{HostName{Name: "laptop-1"}}}
	assert.False(t, res.Matches(m2))
}

func TestMatchReservation_firstMatchWins(t *testing.T) {
	reservations := []Reservation{
		{HostnamePrefix: "host"},
		{HostnamePrefix: "ho"},
	}

	m := &DhcpMessage{Options: []Option{HostName{Name: "host-1"}}}

	got := matchReservation(reservations, m)
	assert.Same(t, &reservations[0], got)
}
