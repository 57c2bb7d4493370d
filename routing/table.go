package routing

import (
	"context"
	"sync"
	"time"

	"github.com/coredht/dht/krpc"
)

// RoutingTable is a tree of k-buckets keyed on the owner's own id. It is
// single-writer: every mutation is expected to pass through a table owned
// by one task (or through the mutex held here as the equivalent
// serialization guard), per the concurrency model.
type RoutingTable struct {
	mu sync.Mutex

	id   krpc.NodeID
	root *node
}

// NewRoutingTable returns an empty table owned by id.
func NewRoutingTable(id krpc.NodeID) *RoutingTable {
	return &RoutingTable{id: id, root: newLeaf(NewKBucket())}
}

// OwnerID returns the table's own identifier.
func (t *RoutingTable) OwnerID() krpc.NodeID { return t.id }

// AddNode attempts to add info to the table, descending to its target
// leaf, trying to insert or evict there, and splitting once if the leaf
// is Near and full of live contacts. It returns the resulting contact, or
// nil if the table declined to grow (the leaf is Far and full, or
// already at maximum depth, or every Questionable contact in the way
// survived its probe).
func (t *RoutingTable) AddNode(ctx context.Context, pinger Pinger, info krpc.NodeInfo) *Contact {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, depth := findLeaf(t.root, info.ID, 0)
	if c := leaf.leaf.TryAdd(ctx, info, pinger); c != nil {
		return c
	}
	if !leaf.leaf.CanSplit() {
		return nil
	}
	if depth >= IDBits-1 {
		return nil
	}

	leaf.split(t.id, depth)
	child := leaf.childFor(info.ID, depth)
	return child.leaf.TryAdd(ctx, info, pinger)
}

// Get returns the contact with the given id if the table currently holds
// one, regardless of its liveness state, or nil if it doesn't.
func (t *RoutingTable) Get(id krpc.NodeID) *Contact {
	t.mu.Lock()
	defer t.mu.Unlock()
	leaf, _ := findLeaf(t.root, id, 0)
	return leaf.leaf.Get(id)
}

// GetOrAdd is AddNode without the liveness probing side effect visible to
// the caller beyond the returned contact: it exists so query handling can
// record an inbound request against whatever contact results, mirroring
// the reference's get_or_add(id, from).mark_successful_request_from()
// idiom.
func (t *RoutingTable) GetOrAdd(ctx context.Context, pinger Pinger, id krpc.NodeID, addr krpc.Endpoint) *Contact {
	return t.AddNode(ctx, pinger, krpc.NodeInfo{ID: id, Addr: addr})
}

// FindNodeResult is the outcome of FindNode: either the requested id was
// itself a live contact (Found), or the up-to-K nearest good contacts are
// returned as Nodes.
type FindNodeResult struct {
	Found bool
	Node  krpc.NodeInfo
	Nodes krpc.NodeInfos
}

// FindNode produces the up-to-K closest Good contacts to id by descending
// to id's target leaf first and widening to sibling subtrees as needed.
// If one of the yielded contacts is id itself, it is returned alone as
// Found instead.
func (t *RoutingTable) FindNode(id krpc.NodeID) FindNodeResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	contacts := collect(t.root, id, 0, K, time.Now())
	for _, c := range contacts {
		if c.ID == id {
			return FindNodeResult{Found: true, Node: krpc.NodeInfo{ID: c.ID, Addr: c.Addr}}
		}
	}

	nodes := make(krpc.NodeInfos, len(contacts))
	for i, c := range contacts {
		nodes[i] = krpc.NodeInfo{ID: c.ID, Addr: c.Addr}
	}
	return FindNodeResult{Nodes: nodes}
}

func collect(n *node, target krpc.NodeID, depth, limit int, now time.Time) []*Contact {
	if limit <= 0 {
		return nil
	}
	if n.isLeaf() {
		var out []*Contact
		for _, c := range n.leaf.contacts {
			if len(out) >= limit {
				break
			}
			if c.State(now) == Good {
				out = append(out, c)
			}
		}
		return out
	}

	primary := n.childFor(target, depth)
	secondary := n.siblingOf(primary)
	out := collect(primary, target, depth+1, limit, now)
	if len(out) < limit {
		out = append(out, collect(secondary, target, depth+1, limit-len(out), now)...)
	}
	return out
}
