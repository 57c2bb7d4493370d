package routing

import "testing"

func TestAnnounceStorePeers(t *testing.T) {
	s := NewAnnounceStore()
	ih := idN(1)
	if got := s.Peers(ih); got != nil {
		t.Fatalf("Peers for an unknown infohash = %v, want nil", got)
	}

	s.Announce(ih, testEndpoint(1))
	s.Announce(ih, testEndpoint(2))

	peers := s.Peers(ih)
	if len(peers) != 2 {
		t.Fatalf("Peers returned %d entries, want 2", len(peers))
	}
	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1 infohash tracked", s.Count())
	}
}

// AnnounceStore is append-only and does not deduplicate: announcing the
// same peer twice for the same infohash yields two entries.
func TestAnnounceStoreNoDedup(t *testing.T) {
	s := NewAnnounceStore()
	ih := idN(1)
	s.Announce(ih, testEndpoint(1))
	s.Announce(ih, testEndpoint(1))
	if got := len(s.Peers(ih)); got != 2 {
		t.Fatalf("Peers returned %d entries for a duplicate announce, want 2 (no dedup)", got)
	}
}

func TestAnnounceStorePeersIsACopy(t *testing.T) {
	s := NewAnnounceStore()
	ih := idN(1)
	s.Announce(ih, testEndpoint(1))
	peers := s.Peers(ih)
	peers[0] = testEndpoint(99)
	if got := s.Peers(ih)[0]; got != testEndpoint(1) {
		t.Fatalf("mutating the returned slice affected the store's internal state")
	}
}
