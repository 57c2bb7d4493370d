package krpc

// Query method names as they appear on the wire under the envelope's "q"
// key.
const (
	MethodPing              = "ping"
	MethodFindNode          = "find_node"
	MethodGetPeers          = "get_peers"
	MethodAnnouncePeer      = "announce_peer"
	MethodSampleInfoHashes  = "sample_infohashes"
)

// Query is any of the five argument shapes a node may send under a query
// envelope. Implementations are the concrete *Query structs in this file.
type Query interface {
	Method() string
}

// PingQuery carries only the sender's own identifier.
type PingQuery struct {
	ID NodeID `bencode:"id"`
}

func (PingQuery) Method() string { return MethodPing }

// FindNodeQuery asks the responder for the nodes it knows closest to Target.
type FindNodeQuery struct {
	ID     NodeID `bencode:"id"`
	Target NodeID `bencode:"target"`
}

func (FindNodeQuery) Method() string { return MethodFindNode }

// GetPeersQuery asks the responder for peers announced under InfoHash, or
// failing that, the nodes closest to it.
type GetPeersQuery struct {
	ID       NodeID `bencode:"id"`
	InfoHash NodeID `bencode:"info_hash"`
}

func (GetPeersQuery) Method() string { return MethodGetPeers }

// AnnouncePeerQuery announces the sender as a peer for InfoHash, proving
// reachability with a Token previously issued by the responder's
// get_peers reply.
//
// ImpliedPort follows BEP-42/BEP-5 wire convention: a non-zero value means
// the responder should use the endpoint it observed the datagram arrive
// from rather than Port.
type AnnouncePeerQuery struct {
	ID          NodeID  `bencode:"id"`
	ImpliedPort int     `bencode:"implied_port"`
	InfoHash    NodeID  `bencode:"info_hash"`
	Port        *uint16 `bencode:"port,omitempty"`
	Token       []byte  `bencode:"token"`
}

func (AnnouncePeerQuery) Method() string { return MethodAnnouncePeer }

// IsImpliedPort reports whether the remote-observed port should be used in
// place of Port, per BEP-5's "any non-zero integer decodes as true" rule.
func (q AnnouncePeerQuery) IsImpliedPort() bool { return q.ImpliedPort != 0 }

// SampleInfoHashesQuery is the BEP-51 request for a random sample of
// infohashes the responder is storing peers for, along with nodes close to
// Target.
type SampleInfoHashesQuery struct {
	ID     NodeID `bencode:"id"`
	Target NodeID `bencode:"target"`
}

func (SampleInfoHashesQuery) Method() string { return MethodSampleInfoHashes }
