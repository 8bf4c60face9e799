package dhcpd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyConfiguredOptions_forceAlwaysAdded(t *testing.T) {
	cfg := &Configuration{
		Options: []OptionEntry{
			{Mode: ModeForce, Option: DNS{IPs: []net.IP{net.IPv4(8, 8, 8, 8).To4()}}},
		},
	}

	req := &DhcpMessage{}
	resp := &DhcpMessage{}

	applyConfiguredOptions(cfg, req, resp)

	o, ok := resp.Option(OptDomainNameServer)
	require.True(t, ok)
	assert.Len(t, o.(DNS).IPs, 1)
}

func TestApplyConfiguredOptions_defaultRequiresRequest(t *testing.T) {
	cfg := &Configuration{
		Options: []OptionEntry{
			{Mode: ModeDefault, Option: NTPServers{IPs: []net.IP{net.IPv4(1, 1, 1, 1).To4()}}},
		},
	}

	req := &DhcpMessage{}
	resp := &DhcpMessage{}
	applyConfiguredOptions(cfg, req, resp)

	_, ok := resp.Option(OptNTP)
	assert.False(t, ok)

	req2 := &DhcpMessage{Options: []Option{ParameterRequestList{Codes: []OptionCode{OptNTP}}}}
	resp2 := &DhcpMessage{}
	applyConfiguredOptions(cfg, req2, resp2)

	_, ok = resp2.Option(OptNTP)
	assert.True(t, ok)
}

func TestApplyConfiguredOptions_doesNotOverwriteExisting(t *testing.T) {
	cfg := &Configuration{
		Options: []OptionEntry{
			{Mode: ModeForce, Option: ServerIdentifier{IP: net.IPv4(9, 9, 9, 9).To4()}},
		},
	}

	req := &DhcpMessage{}
	resp := &DhcpMessage{Options: []Option{ServerIdentifier{IP: net.IPv4(1, 2, 3, 4).To4()}}}

	applyConfiguredOptions(cfg, req, resp)

	o, _ := resp.Option(OptServerIdentifier)
	assert.Equal(t, "1.2.3.4", o.(ServerIdentifier).IP.String())
}

type recordingInterceptor struct{ called bool }

func (r *recordingInterceptor) Apply(_, resp *DhcpMessage) {
	r.called = true
	resp.SetOption(HostName{Name: "intercepted"})
}

func TestApplyInterceptors_runInOrder(t *testing.T) {
	ic := &recordingInterceptor{}
	resp := &DhcpMessage{}

	applyInterceptors([]MessageInterceptor{ic}, &DhcpMessage{}, resp)

	assert.True(t, ic.called)
	o, ok := resp.Option(OptHostName)
	require.True(t, ok)
	assert.Equal(t, "intercepted", o.(HostName).Name)
}
