package models

import "net/netip"

// IPWhitelistEntry allows logins from a network range for one year.
type IPWhitelistEntry struct {
	ID    int64  `db:"id" json:"id"`
	IPNet string `db:"ipnet" json:"ipnet"`
	Year  int    `db:"year" json:"year"`
}

// Prefix parses the stored CIDR range. A bare address is treated as a full
// length prefix, so a /32 (or /128) entry matches exactly that address.
func (e IPWhitelistEntry) Prefix() (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(e.IPNet); err == nil {
		return prefix, nil
	}
	addr, err := netip.ParseAddr(e.IPNet)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// IPAllowed reports whether the address lies within at least one entry.
// Entries that fail to parse are skipped; a single match is sufficient.
func IPAllowed(addr netip.Addr, entries []IPWhitelistEntry) bool {
	for _, entry := range entries {
		prefix, err := entry.Prefix()
		if err != nil {
			continue
		}
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}
