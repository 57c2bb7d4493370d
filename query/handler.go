// Package query dispatches inbound KRPC queries against a routing table, a
// token validator and an announce store, producing the reply envelope a
// transport should send back to the querying peer.
//
// At glog.Debug and above it logs these events:
//
//	PING HANDLE FROM          from=addr
//	FIND_NODE HANDLE FROM     from=addr  target=...  nodes=N
//	GET_PEERS HANDLE FROM     from=addr  info_hash=...  peers=N|nodes=N
//	ANNOUNCE_PEER HANDLE FROM from=addr  info_hash=...  addr=...
//	ANNOUNCE_PEER REJECT      from=addr  cause=invalid-token|no-port
//	SAMPLE_INFOHASHES REJECT  from=addr  cause=unimplemented
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
	"github.com/coredht/dht/routing"
)

// Handler answers inbound queries on behalf of a single owner identity.
// Its table, tokens and announces are each individually guarded, so Handler
// itself carries no lock of its own.
type Handler struct {
	owner     krpc.NodeID
	table     *routing.RoutingTable
	pinger    routing.Pinger
	tokens    *routing.TokenValidator
	announces *routing.AnnounceStore
}

// NewHandler builds a query handler answering as owner.
func NewHandler(owner krpc.NodeID, table *routing.RoutingTable, pinger routing.Pinger, tokens *routing.TokenValidator, announces *routing.AnnounceStore) *Handler {
	return &Handler{owner: owner, table: table, pinger: pinger, tokens: tokens, announces: announces}
}

// Handle dispatches a single inbound query from a read-write sender (see
// HandleReadOnly for the BEP-43 variant) and returns the reply envelope,
// echoing t and always reporting the handler's own ro as false.
func (h *Handler) Handle(ctx context.Context, t []byte, q krpc.Query, from krpc.Endpoint) *krpc.Envelope {
	return h.dispatch(ctx, t, q, from, true)
}

// HandleReadOnly dispatches an inbound query from a BEP-43 read-only
// sender: the sender is never recorded in the routing table, but it still
// receives a full, correct reply.
func (h *Handler) HandleReadOnly(ctx context.Context, t []byte, q krpc.Query, from krpc.Endpoint) *krpc.Envelope {
	return h.dispatch(ctx, t, q, from, false)
}

func (h *Handler) dispatch(ctx context.Context, t []byte, q krpc.Query, from krpc.Endpoint, recordSender bool) *krpc.Envelope {
	if recordSender {
		h.recordRequest(ctx, queryID(q), from)
	}

	switch query := q.(type) {
	case krpc.PingQuery:
		glog.V(glog.Trace).Infof("query: ping from %s", from)
		return mustResponseEnvelope(t, krpc.OnlyIDResponse{ID: h.owner})

	case krpc.FindNodeQuery:
		result := h.table.FindNode(query.Target)
		nodes := findNodeResultNodes(result)
		glog.V(glog.Trace).Infof("query: find_node from %s target=%s -> %d nodes", from, query.Target, len(nodes))
		return mustResponseEnvelope(t, krpc.NextHopResponse{ID: h.owner, Nodes: nodes})

	case krpc.GetPeersQuery:
		token := h.tokens.GenerateToken(from)
		peers := h.announces.Peers(query.InfoHash)
		if len(peers) > 0 {
			glog.V(glog.Trace).Infof("query: get_peers from %s info_hash=%s -> %d peers", from, query.InfoHash, len(peers))
			return mustResponseEnvelope(t, krpc.GetPeersResponse{ID: h.owner, Token: token[:], Peers: peers})
		}
		result := h.table.FindNode(query.InfoHash)
		nodes := findNodeResultNodes(result)
		glog.V(glog.Trace).Infof("query: get_peers from %s info_hash=%s -> %d nodes (no peers on file)", from, query.InfoHash, len(nodes))
		return mustResponseEnvelope(t, krpc.NextHopResponse{ID: h.owner, Token: token[:], Nodes: nodes})

	case krpc.AnnouncePeerQuery:
		return h.handleAnnouncePeer(t, query, from)

	case krpc.SampleInfoHashesQuery:
		glog.V(glog.Debug).Infof("query: sample_infohashes from %s not implemented", from)
		return krpc.NewErrorEnvelope(t, krpc.ErrCodeMethodUnknown, "Unimplemented")

	default:
		return krpc.NewErrorEnvelope(t, krpc.ErrCodeMethodUnknown, fmt.Sprintf("unknown method %T", q))
	}
}

func (h *Handler) handleAnnouncePeer(t []byte, q krpc.AnnouncePeerQuery, from krpc.Endpoint) *krpc.Envelope {
	if !h.tokens.VerifyToken(from, q.Token) {
		glog.V(glog.Debug).Infof("query: announce_peer from %s rejected: invalid token", from)
		return krpc.NewErrorEnvelope(t, krpc.ErrCodeProtocol, "Invalid Token")
	}

	addr := from
	if !q.IsImpliedPort() {
		if q.Port == nil {
			glog.V(glog.Debug).Infof("query: announce_peer from %s rejected: no port supplied", from)
			return krpc.NewErrorEnvelope(t, krpc.ErrCodeProtocol, "Not enough address info provided")
		}
		addr.Port = *q.Port
	}

	h.announces.Announce(q.InfoHash, addr)
	glog.V(glog.Trace).Infof("query: announce_peer from %s info_hash=%s addr=%s", from, q.InfoHash, addr)
	return mustResponseEnvelope(t, krpc.OnlyIDResponse{ID: h.owner})
}

// recordRequest touches the sender in the routing table, marking it as
// having just queried us. A table that declines to grow (full Far bucket,
// max depth) is not an error here — the contact simply isn't tracked.
func (h *Handler) recordRequest(ctx context.Context, id krpc.NodeID, from krpc.Endpoint) {
	contact := h.table.GetOrAdd(ctx, h.pinger, id, from)
	if contact == nil {
		return
	}
	contact.MarkSuccessfulRequestFrom(time.Now())
}

func queryID(q krpc.Query) krpc.NodeID {
	switch query := q.(type) {
	case krpc.PingQuery:
		return query.ID
	case krpc.FindNodeQuery:
		return query.ID
	case krpc.GetPeersQuery:
		return query.ID
	case krpc.AnnouncePeerQuery:
		return query.ID
	case krpc.SampleInfoHashesQuery:
		return query.ID
	default:
		return krpc.NodeID{}
	}
}

func findNodeResultNodes(result routing.FindNodeResult) krpc.NodeInfos {
	if result.Found {
		return krpc.NodeInfos{result.Node}
	}
	return result.Nodes
}

func mustResponseEnvelope(t []byte, r krpc.Response) *krpc.Envelope {
	env, err := krpc.NewResponseEnvelope(t, r)
	if err != nil {
		// Every concrete Response type defined in krpc encodes cleanly;
		// a failure here means a handler built a malformed value, which is
		// a programming error rather than something a caller can recover
		// from meaningfully at this boundary.
		panic(fmt.Sprintf("query: encoding response envelope: %v", err))
	}
	return env
}
