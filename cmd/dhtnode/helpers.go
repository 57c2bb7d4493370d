package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"

	"github.com/coredht/dht/internal/netutil"
	"github.com/coredht/dht/krpc"
)

// readLines reads every line of r into a slice, in order.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out, scanner.Err()
}

// parseHexID decodes a 40-character hex string as a NodeID or infohash.
func parseHexID(s string) (krpc.NodeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return krpc.NodeID{}, fmt.Errorf("bad hex id %q: %w", s, err)
	}
	return krpc.IDFromBytes(b)
}

// resolveEndpoint resolves a "host:port" string to a krpc.Endpoint,
// rejecting anything that isn't a plain IPv4 address per this system's
// wire format.
func resolveEndpoint(hostport string) (krpc.Endpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", hostport)
	if err != nil {
		return krpc.Endpoint{}, err
	}
	return krpc.EndpointFromUDPAddr(udpAddr)
}

// resolveSeedEndpoint is resolveEndpoint plus a reachability check: a seed
// drawn from a loopback/local-network range or a broadcast, multicast, or
// documentation/test range can never be a routable peer on the public DHT,
// so it's rejected before ever reaching the bootstrap queue.
func resolveSeedEndpoint(hostport string) (krpc.Endpoint, error) {
	ep, err := resolveEndpoint(hostport)
	if err != nil {
		return krpc.Endpoint{}, err
	}
	ip := ep.UDPAddr().IP
	if netutil.IsLAN(ip) {
		return krpc.Endpoint{}, fmt.Errorf("%s is a loopback or local-network address, not a valid seed", hostport)
	}
	if netutil.IsSpecialNetwork(ip) {
		return krpc.Endpoint{}, fmt.Errorf("%s is a special-use network, not a valid seed", hostport)
	}
	return ep, nil
}
