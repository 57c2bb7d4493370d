// Package krpc implements the BEP-5 KRPC wire codec: the bencoded envelope,
// queries, responses and protocol errors exchanged between DHT nodes, plus
// the compact encodings for node identifiers, endpoints and node lists.
package krpc

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/anacrolix/torrent/bencode"
)

// IDLen is the length in bytes of a NodeID, an infohash, and an announce
// token as minted by this package's TokenValidator analog in package
// routing.
const IDLen = 20

// NodeID is a 160-bit identifier drawn from the same key space as
// BitTorrent infohashes. The zero value is the all-zero id; callers that
// need a fresh identifier should call Random.
type NodeID [IDLen]byte

// Random draws a NodeID uniformly from a cryptographic source.
func Random() (NodeID, error) {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		return NodeID{}, fmt.Errorf("krpc: generating random node id: %w", err)
	}
	return id, nil
}

// IDFromBytes builds a NodeID from an exact 20-byte big-endian slice.
func IDFromBytes(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != IDLen {
		return id, fmt.Errorf("krpc: node id must be %d bytes, got %d", IDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// NthBit reports whether bit n is set, counting n=0 as the most
// significant bit of the identifier.
func (id NodeID) NthBit(n int) bool {
	byteIdx := n / 8
	bitIdx := uint(7 - n%8)
	return id[byteIdx]&(1<<bitIdx) != 0
}

// Distance returns the XOR metric between id and other, itself a valid
// NodeID-shaped value though not a meaningful identifier.
func (id NodeID) Distance(other NodeID) NodeID {
	var out NodeID
	for i := range out {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// IsZero reports whether id is the all-zero identifier.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalBencode encodes the identifier as a raw 20-byte bencode string.
func (id NodeID) MarshalBencode() ([]byte, error) {
	return bencode.Marshal(id[:])
}

// UnmarshalBencode decodes a raw 20-byte bencode string into the receiver.
func (id *NodeID) UnmarshalBencode(b []byte) error {
	var raw []byte
	if err := bencode.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("krpc: decoding node id: %w", err)
	}
	got, err := IDFromBytes(raw)
	if err != nil {
		return err
	}
	*id = got
	return nil
}
