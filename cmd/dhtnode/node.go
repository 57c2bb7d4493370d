package main

import (
	"context"
	"net"
	"time"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
	"github.com/coredht/dht/query"
	"github.com/coredht/dht/routing"
	"github.com/coredht/dht/transport"
)

// node owns every piece a running DHT endpoint needs: the socket, the two
// transport halves built on top of it, the routing table and its
// supporting stores, and the query handler dispatching inbound requests
// against all of it.
type node struct {
	id   krpc.NodeID
	conn *net.UDPConn

	registry  *transport.Registry
	send      *transport.SendTransport
	request   *transport.RequestTransport
	stream    *transport.Stream
	table     *routing.RoutingTable
	tokens    *routing.TokenValidator
	announces *routing.AnnounceStore
	handler   *query.Handler

	readOnly  bool
	discovery discoverySink
}

// newNode binds a UDP socket at listenAddr and wires together every
// component a running node needs, but does not yet start serving.
func newNode(id krpc.NodeID, listenAddr string, readOnly bool, discovery discoverySink) (*node, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, err
	}

	registry := transport.NewRegistry()
	send := transport.NewSendTransport(conn, registry, readOnly)
	request := transport.NewRequestTransport(id, send)
	table := routing.NewRoutingTable(id)
	tokens, err := routing.NewTokenValidator()
	if err != nil {
		conn.Close()
		return nil, err
	}
	announces := routing.NewAnnounceStore()
	handler := query.NewHandler(id, table, request, tokens, announces)

	return &node{
		id:        id,
		conn:      conn,
		registry:  registry,
		send:      send,
		request:   request,
		stream:    transport.NewStream(conn),
		table:     table,
		tokens:    tokens,
		announces: announces,
		handler:   handler,
		readOnly:  readOnly,
		discovery: discovery,
	}, nil
}

// Close releases the node's socket.
func (n *node) Close() error {
	return n.conn.Close()
}

// bootstrap runs routing.Bootstrap against every seed in turn, logging but
// not failing on a seed that doesn't answer.
func (n *node) bootstrap(ctx context.Context, seeds []krpc.Endpoint) {
	for _, seed := range seeds {
		if err := routing.Bootstrap(ctx, n.table, n.request, seed); err != nil {
			glog.V(glog.Warning).Infof("dhtnode: bootstrap from %s: %v", seed, err)
		}
	}
}

// serve runs the inbound message loop until ctx is done: every query is
// dispatched to the handler and its reply, if any, written back; known
// nodes newly added to the table are reported to the discovery sink.
func (n *node) serve(ctx context.Context) error {
	for {
		item, err := n.stream.Next(ctx)
		if err != nil {
			return err
		}
		if item.Err != nil {
			glog.V(glog.Debug).Infof("dhtnode: dropping inbound item: %v", item.Err)
			continue
		}
		n.dispatch(ctx, item)
	}
}

func (n *node) dispatch(ctx context.Context, item transport.InboundItem) {
	env := item.Envelope
	switch env.Y {
	case krpc.KindResponse, krpc.KindError:
		if err := n.registry.Complete(env); err != nil {
			glog.V(glog.Debug).Infof("dhtnode: %v", err)
		}
		return
	case krpc.KindQuery:
		n.handleQuery(ctx, env, item.From)
	default:
		glog.V(glog.Debug).Infof("dhtnode: dropping envelope of unknown kind %q from %s", env.Y, item.From)
	}
}

func (n *node) handleQuery(ctx context.Context, env *krpc.Envelope, from krpc.Endpoint) {
	q, err := krpc.DecodeQuery(env)
	if err != nil {
		glog.V(glog.Debug).Infof("dhtnode: decoding query from %s: %v", from, err)
		return
	}

	before := n.table.Get(queryerID(q))
	var reply *krpc.Envelope
	if env.RO == 1 {
		reply = n.handler.HandleReadOnly(ctx, env.T, q, from)
	} else {
		reply = n.handler.Handle(ctx, env.T, q, from)
	}
	if before == nil && env.RO != 1 && n.table.Get(queryerID(q)) != nil {
		n.reportDiscovery(q, from)
	}

	if err := n.send.Send(from.UDPAddr(), reply); err != nil {
		glog.V(glog.Warning).Infof("dhtnode: replying to %s: %v", from, err)
	}
}

func queryerID(q krpc.Query) krpc.NodeID {
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

func (n *node) reportDiscovery(q krpc.Query, from krpc.Endpoint) {
	if n.discovery == nil {
		return
	}
	record := discoveryRecord{
		ID:             queryerID(q),
		From:           from,
		Query:          q.Method(),
		Address:        from,
		TimeDiscovered: time.Now().Unix(),
	}
	if err := n.discovery.Write(record); err != nil {
		glog.V(glog.Warning).Infof("dhtnode: writing discovery record: %v", err)
	}
}
