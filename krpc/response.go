package krpc

import (
	"fmt"

	"github.com/anacrolix/torrent/bencode"
)

// Response is any of the four reply shapes a node may send under a
// response envelope. Unlike Query, the wire never tags which variant is
// present; DecodeResponse recovers it structurally.
type Response interface {
	isResponse()
}

// OnlyIDResponse is the reply to ping and announce_peer: just the
// responder's own identifier.
type OnlyIDResponse struct {
	ID NodeID `bencode:"id"`
}

func (OnlyIDResponse) isResponse() {}

// NextHopResponse is the reply to find_node, and to get_peers when the
// responder has no peers on file for the requested infohash.
type NextHopResponse struct {
	ID    NodeID    `bencode:"id"`
	Nodes NodeInfos `bencode:"nodes"`
	Token []byte    `bencode:"token,omitempty"`
}

func (NextHopResponse) isResponse() {}

// GetPeersResponse is the reply to get_peers when the responder has peers
// on file for the requested infohash.
type GetPeersResponse struct {
	ID    NodeID     `bencode:"id"`
	Token []byte     `bencode:"token,omitempty"`
	Peers []Endpoint `bencode:"values"`
}

func (GetPeersResponse) isResponse() {}

// SamplesResponse is the BEP-51 reply to sample_infohashes.
type SamplesResponse struct {
	ID       NodeID    `bencode:"id"`
	Interval *uint16   `bencode:"interval,omitempty"`
	Nodes    NodeInfos `bencode:"nodes"`
	Num      *uint32   `bencode:"num,omitempty"`
	Samples  Samples   `bencode:"samples"`
}

func (SamplesResponse) isResponse() {}

// responseProbe is decoded first so the presence of each variant's
// distinguishing field can be inspected without committing to a shape.
// Field order mirrors the decode-attempt order mandated by the protocol:
// a "samples" key means Samples, else a "nodes" key means NextHop, else a
// "values" key means GetPeers, else OnlyId.
type responseProbe struct {
	Samples bencode.RawMessage `bencode:"samples,omitempty"`
	Nodes   bencode.RawMessage `bencode:"nodes,omitempty"`
	Values  bencode.RawMessage `bencode:"values,omitempty"`
}

// DecodeResponse recovers the concrete Response shape from a raw response
// dictionary by attempting the variants in order Samples, NextHop,
// GetPeers, OnlyId and accepting the first whose distinguishing field is
// present.
func DecodeResponse(raw []byte) (Response, error) {
	var probe responseProbe
	if err := bencode.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("krpc: probing response shape: %w", err)
	}

	switch {
	case probe.Samples != nil:
		var r SamplesResponse
		if err := bencode.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("krpc: decoding samples response: %w", err)
		}
		return r, nil
	case probe.Nodes != nil:
		var r NextHopResponse
		if err := bencode.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("krpc: decoding next-hop response: %w", err)
		}
		return r, nil
	case probe.Values != nil:
		var r GetPeersResponse
		if err := bencode.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("krpc: decoding get-peers response: %w", err)
		}
		return r, nil
	default:
		var r OnlyIDResponse
		if err := bencode.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("krpc: decoding id-only response: %w", err)
		}
		return r, nil
	}
}
