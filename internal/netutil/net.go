// Package netutil classifies IPv4 addresses as LAN, special-use, or
// ordinary, so the CLI can reject obviously-bogus seed endpoints before
// they reach the bootstrap queue. The wire format this package serves is
// IPv4-only, so it carries no IPv6 lists.
package netutil

import "net"

// Netlist is a list of IPv4 networks.
type Netlist []net.IPNet

var lan4, special4 Netlist

func init() {
	// Lists from RFC 5735, RFC 5156, and the IANA IPv4 special-purpose
	// registry, trimmed to the entries that matter for a UDP peer address.
	lan4.Add("0.0.0.0/8")
	lan4.Add("10.0.0.0/8")
	lan4.Add("172.16.0.0/12")
	lan4.Add("192.168.0.0/16")

	special4.Add("192.0.0.0/29")
	special4.Add("192.0.2.0/24")
	special4.Add("198.18.0.0/15")
	special4.Add("198.51.100.0/24")
	special4.Add("203.0.113.0/24")
	special4.Add("255.255.255.255/32")
}

// Add parses a CIDR mask and appends it to the list. It panics on an
// invalid mask; callers only ever pass the static masks above.
func (l *Netlist) Add(cidr string) {
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	*l = append(*l, *n)
}

// Contains reports whether ip falls within the list.
func (l *Netlist) Contains(ip net.IP) bool {
	if l == nil {
		return false
	}
	for _, n := range *l {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// IsLAN reports whether ip is a loopback or local-network address.
func IsLAN(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	return lan4.Contains(ip)
}

// IsSpecialNetwork reports whether ip falls in a special-use range:
// broadcast, multicast, or a documentation/test range that should never
// be dialed as a live peer.
func IsSpecialNetwork(ip net.IP) bool {
	if ip.IsMulticast() {
		return true
	}
	return special4.Contains(ip)
}
