package krpc

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/anacrolix/torrent/bencode"
)

// EndpointLen is the size in bytes of a compact IPv4 endpoint: 4 bytes of
// address followed by 2 bytes of port, both network order.
const EndpointLen = 6

// ErrIPv6Unsupported is returned at every boundary that accepts a remote
// address when that address is IPv6. This system's wire format only has a
// compact encoding for IPv4; NAT traversal and IPv6 contacts are explicitly
// out of scope.
var ErrIPv6Unsupported = fmt.Errorf("krpc: IPv6 endpoints are not supported")

// Endpoint is an IPv4 address and 16-bit port.
type Endpoint struct {
	IP   [4]byte
	Port uint16
}

// EndpointFromUDPAddr converts a *net.UDPAddr to an Endpoint, rejecting any
// address that isn't a 4-byte IPv4 address.
func EndpointFromUDPAddr(addr *net.UDPAddr) (Endpoint, error) {
	v4 := addr.IP.To4()
	if v4 == nil {
		return Endpoint{}, ErrIPv6Unsupported
	}
	var ep Endpoint
	copy(ep.IP[:], v4)
	ep.Port = uint16(addr.Port)
	return ep, nil
}

// UDPAddr converts the Endpoint back to a *net.UDPAddr.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	ip := make(net.IP, 4)
	copy(ip, e.IP[:])
	return &net.UDPAddr{IP: ip, Port: int(e.Port)}
}

func (e Endpoint) String() string {
	return e.UDPAddr().String()
}

func (e Endpoint) bytes() [EndpointLen]byte {
	var b [EndpointLen]byte
	copy(b[:4], e.IP[:])
	binary.BigEndian.PutUint16(b[4:], e.Port)
	return b
}

func endpointFromBytes(b []byte) (Endpoint, error) {
	if len(b) != EndpointLen {
		return Endpoint{}, fmt.Errorf("krpc: compact endpoint must be %d bytes, got %d", EndpointLen, len(b))
	}
	var e Endpoint
	copy(e.IP[:], b[:4])
	e.Port = binary.BigEndian.Uint16(b[4:])
	return e, nil
}

// MarshalBencode encodes the endpoint as the compact 6-byte string.
func (e Endpoint) MarshalBencode() ([]byte, error) {
	raw := e.bytes()
	return bencode.Marshal(raw[:])
}

// UnmarshalBencode decodes a compact 6-byte string into the receiver.
func (e *Endpoint) UnmarshalBencode(b []byte) error {
	var raw []byte
	if err := bencode.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("krpc: decoding endpoint: %w", err)
	}
	got, err := endpointFromBytes(raw)
	if err != nil {
		return err
	}
	*e = got
	return nil
}
