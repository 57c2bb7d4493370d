package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/coredht/dht/krpc"
)

// DefaultTimeout is the per-call deadline every RequestTransport operation
// applies unless the caller supplies a shorter one via context.
const DefaultTimeout = 3 * time.Second

// InvalidResponseType is surfaced when a reply arrives in a structurally
// valid shape that nonetheless doesn't match what the calling operation
// expected (e.g. a Samples reply to a plain find_node).
type InvalidResponseType struct {
	Expected string
	Got      krpc.Response
}

func (e InvalidResponseType) Error() string {
	return fmt.Sprintf("transport: expected %s response, got %T", e.Expected, e.Got)
}

// PortType selects how announce_peer reports the sender's torrent port:
// either the port the request itself arrived from (Implied) or an
// explicit value (Port).
type PortType struct {
	implied bool
	port    uint16
}

// ImpliedPort reports that the responder should use the endpoint the
// announce_peer datagram was observed arriving from.
func ImpliedPort() PortType { return PortType{implied: true} }

// ExplicitPort reports that the responder should record port as the
// sender's torrent port.
func ExplicitPort(port uint16) PortType { return PortType{port: port} }

// FindNodeResult is the (id, nodes) pair a successful find_node yields.
type FindNodeResult struct {
	ID    krpc.NodeID
	Nodes krpc.NodeInfos
}

// SampleInfoHashesResult is the BEP-51 reply to sample_infohashes.
type SampleInfoHashesResult struct {
	ID       krpc.NodeID
	Interval *uint16
	Nodes    krpc.NodeInfos
	Num      *uint32
	Samples  krpc.Samples
}

// GetPeersResult is what a get_peers call yields: either Peers is
// populated (the responder has peers on file) or Nodes is (the responder
// wants us to keep searching). Token, when non-nil, must be echoed on a
// subsequent announce_peer to the same endpoint.
type GetPeersResult struct {
	ID    krpc.NodeID
	Token []byte
	Peers []krpc.Endpoint
	Nodes krpc.NodeInfos
}

// RequestTransport is a thin typed surface over SendTransport: every
// operation injects the owner's NodeID into the query so callers don't
// have to, and applies DefaultTimeout unless ctx already carries a
// shorter deadline.
type RequestTransport struct {
	owner krpc.NodeID
	send  *SendTransport
}

// NewRequestTransport builds a request transport that identifies itself
// as owner on every outbound query.
func NewRequestTransport(owner krpc.NodeID, send *SendTransport) *RequestTransport {
	return &RequestTransport{owner: owner, send: send}
}

func (r *RequestTransport) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	// context.WithTimeout keeps the parent's deadline when it is earlier.
	return context.WithTimeout(ctx, DefaultTimeout)
}

// Ping sends Ping{id: owner} to addr and expects OnlyId, returning the
// responder's id.
func (r *RequestTransport) Ping(ctx context.Context, addr net.Addr) (krpc.NodeID, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.send.Request(ctx, addr, krpc.PingQuery{ID: r.owner})
	if err != nil {
		return krpc.NodeID{}, err
	}
	only, ok := resp.(krpc.OnlyIDResponse)
	if !ok {
		return krpc.NodeID{}, InvalidResponseType{Expected: "OnlyId", Got: resp}
	}
	return only.ID, nil
}

// FindNode sends FindNode{id: owner, target} to addr and expects
// NextHop.
func (r *RequestTransport) FindNode(ctx context.Context, addr net.Addr, target krpc.NodeID) (FindNodeResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.send.Request(ctx, addr, krpc.FindNodeQuery{ID: r.owner, Target: target})
	if err != nil {
		return FindNodeResult{}, err
	}
	nextHop, ok := resp.(krpc.NextHopResponse)
	if !ok {
		return FindNodeResult{}, InvalidResponseType{Expected: "NextHop", Got: resp}
	}
	return FindNodeResult{ID: nextHop.ID, Nodes: nextHop.Nodes}, nil
}

// GetPeers sends GetPeers{id: owner, info_hash} to addr and accepts
// either a GetPeers reply (immediate peers) or a NextHop reply (keep
// searching).
func (r *RequestTransport) GetPeers(ctx context.Context, addr net.Addr, infoHash krpc.NodeID) (GetPeersResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.send.Request(ctx, addr, krpc.GetPeersQuery{ID: r.owner, InfoHash: infoHash})
	if err != nil {
		return GetPeersResult{}, err
	}
	switch reply := resp.(type) {
	case krpc.GetPeersResponse:
		return GetPeersResult{ID: reply.ID, Token: reply.Token, Peers: reply.Peers}, nil
	case krpc.NextHopResponse:
		return GetPeersResult{ID: reply.ID, Token: reply.Token, Nodes: reply.Nodes}, nil
	default:
		return GetPeersResult{}, InvalidResponseType{Expected: "GetPeers or NextHop", Got: resp}
	}
}

// SampleInfoHashes sends SampleInfoHashes{id: owner, target} to addr and
// expects a Samples reply (BEP-51). Most peers in the wild don't implement
// this method and will answer with a protocol error instead, surfaced as
// ReceivedKRPCError.
func (r *RequestTransport) SampleInfoHashes(ctx context.Context, addr net.Addr, target krpc.NodeID) (SampleInfoHashesResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.send.Request(ctx, addr, krpc.SampleInfoHashesQuery{ID: r.owner, Target: target})
	if err != nil {
		return SampleInfoHashesResult{}, err
	}
	samples, ok := resp.(krpc.SamplesResponse)
	if !ok {
		return SampleInfoHashesResult{}, InvalidResponseType{Expected: "Samples", Got: resp}
	}
	return SampleInfoHashesResult{
		ID:       samples.ID,
		Interval: samples.Interval,
		Nodes:    samples.Nodes,
		Num:      samples.Num,
		Samples:  samples.Samples,
	}, nil
}

// AnnouncePeer sends AnnouncePeer{...} to addr with a previously issued
// token, reporting this node's own reachable port per portType, and
// expects OnlyId.
func (r *RequestTransport) AnnouncePeer(ctx context.Context, addr net.Addr, infoHash krpc.NodeID, token []byte, portType PortType) (krpc.NodeID, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := krpc.AnnouncePeerQuery{
		ID:       r.owner,
		InfoHash: infoHash,
		Token:    token,
	}
	if portType.implied {
		q.ImpliedPort = 1
	} else {
		port := portType.port
		q.Port = &port
	}

	resp, err := r.send.Request(ctx, addr, q)
	if err != nil {
		return krpc.NodeID{}, err
	}
	only, ok := resp.(krpc.OnlyIDResponse)
	if !ok {
		return krpc.NodeID{}, InvalidResponseType{Expected: "OnlyId", Got: resp}
	}
	return only.ID, nil
}
