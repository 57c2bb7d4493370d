package routing

import (
	"sync"

	"github.com/coredht/dht/krpc"
)

// AnnounceStore is the append-only table of peers announced against
// infohashes via announce_peer, served back verbatim by get_peers with no
// liveness filtering and no deduplication (an announcing peer that
// re-announces shows up more than once, matching the reference
// implementation).
type AnnounceStore struct {
	mu    sync.Mutex
	peers map[krpc.NodeID][]krpc.Endpoint
}

// NewAnnounceStore returns an empty store.
func NewAnnounceStore() *AnnounceStore {
	return &AnnounceStore{peers: make(map[krpc.NodeID][]krpc.Endpoint)}
}

// Announce records addr as a peer for infoHash.
func (s *AnnounceStore) Announce(infoHash krpc.NodeID, addr krpc.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[infoHash] = append(s.peers[infoHash], addr)
}

// Peers returns every peer announced for infoHash, in announce order. The
// returned slice is a copy; callers may not mutate the store through it.
func (s *AnnounceStore) Peers(infoHash krpc.NodeID) []krpc.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.peers[infoHash]
	if len(existing) == 0 {
		return nil
	}
	out := make([]krpc.Endpoint, len(existing))
	copy(out, existing)
	return out
}

// Count returns the number of infohashes currently tracked.
func (s *AnnounceStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}
