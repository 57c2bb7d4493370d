package krpc

import (
	"fmt"

	"github.com/anacrolix/torrent/bencode"
)

// NodeInfoLen is the size in bytes of a single compact NodeInfo record:
// a 20-byte NodeID followed by a 6-byte Endpoint.
const NodeInfoLen = IDLen + EndpointLen

// NodeInfo pairs an identifier with the endpoint it is reachable at.
type NodeInfo struct {
	ID   NodeID
	Addr Endpoint
}

func (n NodeInfo) bytes() [NodeInfoLen]byte {
	var b [NodeInfoLen]byte
	copy(b[:IDLen], n.ID[:])
	addr := n.Addr.bytes()
	copy(b[IDLen:], addr[:])
	return b
}

func nodeInfoFromBytes(b []byte) (NodeInfo, error) {
	if len(b) != NodeInfoLen {
		return NodeInfo{}, fmt.Errorf("krpc: compact node info must be %d bytes, got %d", NodeInfoLen, len(b))
	}
	id, err := IDFromBytes(b[:IDLen])
	if err != nil {
		return NodeInfo{}, err
	}
	addr, err := endpointFromBytes(b[IDLen:])
	if err != nil {
		return NodeInfo{}, err
	}
	return NodeInfo{ID: id, Addr: addr}, nil
}

// NodeInfos is a list of NodeInfo records encoded on the wire as a single
// concatenated byte string, one 26-byte record per entry. Decoding a string
// whose length is not a multiple of NodeInfoLen fails.
type NodeInfos []NodeInfo

// MarshalBencode encodes the list as the concatenated compact-record string.
func (ns NodeInfos) MarshalBencode() ([]byte, error) {
	raw := make([]byte, 0, NodeInfoLen*len(ns))
	for _, n := range ns {
		b := n.bytes()
		raw = append(raw, b[:]...)
	}
	return bencode.Marshal(raw)
}

// UnmarshalBencode decodes a concatenated compact-record string into the
// receiver, failing if its length is not a multiple of NodeInfoLen.
func (ns *NodeInfos) UnmarshalBencode(b []byte) error {
	var raw []byte
	if err := bencode.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("krpc: decoding node info list: %w", err)
	}
	if len(raw)%NodeInfoLen != 0 {
		return fmt.Errorf("krpc: compact node info list length %d is not a multiple of %d", len(raw), NodeInfoLen)
	}
	out := make(NodeInfos, 0, len(raw)/NodeInfoLen)
	for off := 0; off < len(raw); off += NodeInfoLen {
		ni, err := nodeInfoFromBytes(raw[off : off+NodeInfoLen])
		if err != nil {
			return err
		}
		out = append(out, ni)
	}
	*ns = out
	return nil
}

// Samples is a list of infohashes encoded, per BEP-51, as a single
// concatenated byte string of 20-byte records.
type Samples []NodeID

// MarshalBencode encodes the list as the concatenated 20-byte-record string.
func (s Samples) MarshalBencode() ([]byte, error) {
	raw := make([]byte, 0, IDLen*len(s))
	for _, id := range s {
		raw = append(raw, id[:]...)
	}
	return bencode.Marshal(raw)
}

// UnmarshalBencode decodes a concatenated 20-byte-record string into the
// receiver, failing if its length is not a multiple of IDLen.
func (s *Samples) UnmarshalBencode(b []byte) error {
	var raw []byte
	if err := bencode.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("krpc: decoding samples: %w", err)
	}
	if len(raw)%IDLen != 0 {
		return fmt.Errorf("krpc: samples length %d is not a multiple of %d", len(raw), IDLen)
	}
	out := make(Samples, 0, len(raw)/IDLen)
	for off := 0; off < len(raw); off += IDLen {
		id, err := IDFromBytes(raw[off : off+IDLen])
		if err != nil {
			return err
		}
		out = append(out, id)
	}
	*s = out
	return nil
}
