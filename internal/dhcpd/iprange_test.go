package dhcpd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIPRange(t *testing.T) {
	start := net.IP{192, 168, 1, 10}
	end := net.IP{192, 168, 1, 20}

	testCases := []struct {
		name       string
		wantErrMsg string
		start      net.IP
		end        net.IP
	}{{
		name:       "success",
		wantErrMsg: "",
		start:      start,
		end:        end,
	}, {
		name:       "single_address",
		wantErrMsg: "",
		start:      start,
		end:        start,
	}, {
		name:       "start_gt_end",
		wantErrMsg: "invalid ip range: start is greater than end",
		start:      end,
		end:        start,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newIPRange(tc.start, tc.end)
			if tc.wantErrMsg == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.wantErrMsg, err.Error())
			}
		})
	}
}

func TestIPRange_contains(t *testing.T) {
	r, err := newIPRange(net.IP{192, 168, 1, 10}, net.IP{192, 168, 1, 20})
	require.NoError(t, err)

	assert.True(t, r.contains(net.IP{192, 168, 1, 10}))
	assert.True(t, r.contains(net.IP{192, 168, 1, 15}))
	assert.True(t, r.contains(net.IP{192, 168, 1, 20}))
	assert.False(t, r.contains(net.IP{192, 168, 1, 9}))
	assert.False(t, r.contains(net.IP{192, 168, 1, 21}))
}

func TestIPRange_find(t *testing.T) {
	r, err := newIPRange(net.IP{192, 168, 1, 10}, net.IP{192, 168, 1, 12}.To4())
	require.NoError(t, err)

	found := r.find(func(ip net.IP) bool {
		return ip.To4().Equal(net.IP{192, 168, 1, 11}.To4())
	})

	require.NotNil(t, found)
	assert.Equal(t, "192.168.1.11", found.To4().String())

	assert.Nil(t, r.find(func(net.IP) bool { return false }))
}

func TestIPRange_String(t *testing.T) {
	r, err := newIPRange(net.IP{192, 168, 1, 10}, net.IP{192, 168, 1, 20})
	require.NoError(t, err)

	assert.NotEmpty(t, r.String())
}
