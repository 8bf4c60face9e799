package dhcpd

import (
	"net"
	"time"

	"github.com/AdguardTeam/golibs/errors"
)

// OptionMode selects when a configured option is attached to a reply, per
// spec.md §4.7.
type OptionMode uint8

// Option modes.
const (
	// ModeDefault attaches the option only if the client requested its
	// code via option 55.
	ModeDefault OptionMode = iota

	// ModeForce attaches the option whether or not the client requested
	// it, unless the reply already carries that code.
	ModeForce
)

// OptionEntry is one entry of Configuration.Options.
type OptionEntry struct {
	Mode   OptionMode
	Option Option
}

// defaultOfferExpiration and defaultLeaseTime are spec.md §3's defaults.
const (
	defaultOfferExpiration = 30 * time.Second
	defaultLeaseTime       = 24 * time.Hour
	minimumPacketSizeFloor = 312
	defaultPort            = 67
)

// Configuration is the immutable-during-operation server configuration
// described in spec.md §3.
type Configuration struct {
	Endpoint          *net.UDPAddr
	SubnetMask        net.IPMask
	PoolStart         net.IP
	PoolEnd           net.IP
	OfferExpiration   time.Duration
	LeaseTime         time.Duration
	MinimumPacketSize uint16
	Options           []OptionEntry
	Reservations      []Reservation
	DeclineBlacklist  time.Duration
	Interface         string
}

// Validate checks the configuration for internal consistency, filling in
// defaults for zero-valued fields, matching the teacher's Validate-method
// pattern in internal/dhcpsvc/config.go and internal/dhcpd/config.go.
func (c *Configuration) Validate() error {
	if c == nil {
		return errNilConfiguration
	}

	if c.Endpoint == nil || c.Endpoint.IP == nil || c.Endpoint.IP.To4() == nil {
		return errors.Error("dhcpd: endpoint must be an IPv4 address")
	}

	if c.Endpoint.Port == 0 {
		c.Endpoint.Port = defaultPort
	}

	if len(c.SubnetMask) == 0 {
		return errors.Error("dhcpd: subnet_mask is required")
	}

	if c.PoolStart == nil || c.PoolEnd == nil {
		return errors.Error("dhcpd: pool_start and pool_end are required")
	}

	if c.PoolStart.To4() == nil || c.PoolEnd.To4() == nil {
		return errors.Error("dhcpd: pool_start and pool_end must be IPv4")
	}

	if c.OfferExpiration <= 0 {
		c.OfferExpiration = defaultOfferExpiration
	}

	if c.LeaseTime < 0 {
		c.LeaseTime = 0
	} else if c.LeaseTime == 0 {
		c.LeaseTime = defaultLeaseTime
	}

	if c.MinimumPacketSize < minimumPacketSizeFloor {
		c.MinimumPacketSize = minimumPacketSizeFloor
	}

	for i := range c.Reservations {
		res := &c.Reservations[i]
		if res.PoolStart == nil || res.PoolEnd == nil {
			return errors.Error("dhcpd: reservation pool bounds are required")
		}
	}

	return nil
}

// Subnet returns the server's subnet as a net.IPNet, derived from Endpoint
// and SubnetMask.
func (c *Configuration) Subnet() net.IPNet {
	return net.IPNet{
		IP:   c.Endpoint.IP.To4().Mask(c.SubnetMask),
		Mask: c.SubnetMask,
	}
}
