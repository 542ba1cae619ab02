package models

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPWhitelistEntryPrefix(t *testing.T) {
	prefix, err := IPWhitelistEntry{IPNet: "10.1.0.0/16"}.Prefix()
	require.NoError(t, err)
	assert.Equal(t, 16, prefix.Bits())

	// A bare address is an exact-match entry.
	prefix, err = IPWhitelistEntry{IPNet: "192.168.1.7"}.Prefix()
	require.NoError(t, err)
	assert.Equal(t, 32, prefix.Bits())

	_, err = IPWhitelistEntry{IPNet: "not-a-network"}.Prefix()
	assert.Error(t, err)
}

func TestIPAllowed(t *testing.T) {
	entries := []IPWhitelistEntry{
		{IPNet: "10.1.2.0/24"},
		{IPNet: "192.168.1.7"},
		{IPNet: "garbage"},
	}

	tests := []struct {
		name    string
		addr    string
		allowed bool
	}{
		{"inside range", "10.1.2.55", true},
		{"range boundary", "10.1.2.255", true},
		{"outside range", "10.1.3.1", false},
		{"exact address match", "192.168.1.7", true},
		{"exact address mismatch", "192.168.1.8", false},
		{"ipv4 mapped ipv6", "::ffff:10.1.2.55", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := netip.ParseAddr(tc.addr)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, IPAllowed(addr, entries))
		})
	}
}

func TestIPAllowedEmptyList(t *testing.T) {
	addr := netip.MustParseAddr("10.0.0.1")
	assert.False(t, IPAllowed(addr, nil))
}
