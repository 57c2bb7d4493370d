// Package routing implements the Kademlia-variant routing table: per-peer
// liveness tracking, k-buckets organized as a binary tree keyed on this
// node's own id, BFS bootstrap traversal, the get_peers token validator,
// and the announce store.
//
// It logs these events:
//
//	BOOTSTRAP FAIL     to=...  cause=...        (glog.Debug)
//	BOOTSTRAP STOP     from=...  reason=table-full  (glog.Info)
//
// Bucket splits and evictions are not logged; they are counted in
// internal/metrics.
package routing

import (
	"time"

	"github.com/coredht/dht/krpc"
)

// GoodWindow is how recently a contact must have answered us, or queried
// us after ever answering us, to be considered Good.
const GoodWindow = 15 * time.Minute

// BadThreshold is the number of consecutive failed queries after which a
// contact is considered Bad.
const BadThreshold = 2

// State is a contact's derived liveness classification.
type State int

const (
	// Good: answered one of our queries within GoodWindow, or has ever
	// answered one of our queries and queried us within GoodWindow.
	Good State = iota
	// Questionable: neither Good nor Bad — the default for an idle or
	// freshly observed contact.
	Questionable
	// Bad: failed BadThreshold or more consecutive queries. Never
	// returned to other peers and the first thing evicted under
	// pressure.
	Bad
)

func (s State) String() string {
	switch s {
	case Good:
		return "good"
	case Questionable:
		return "questionable"
	case Bad:
		return "bad"
	default:
		return "unknown"
	}
}

// Contact is a mutable per-peer record held inside a bucket. Exclusive
// ownership rests with the bucket containing it; callers reach it only
// through KBucket/RoutingTable operations.
type Contact struct {
	ID       krpc.NodeID
	Addr     krpc.Endpoint
	lastGood time.Time // last_successful_query_to
	lastSeen time.Time // last_request_from
	failed   int
}

// NewContact creates a freshly observed contact, starting Questionable.
func NewContact(id krpc.NodeID, addr krpc.Endpoint) *Contact {
	return &Contact{ID: id, Addr: addr}
}

// MarkSuccessfulQuery records that a query we sent to this contact
// succeeded: failed_queries resets to zero and the Good window restarts.
func (c *Contact) MarkSuccessfulQuery(now time.Time) {
	c.failed = 0
	c.lastGood = now
}

// MarkFailedQuery records that a query we sent to this contact failed.
// Two in a row marks the contact Bad.
func (c *Contact) MarkFailedQuery() {
	c.failed++
}

// MarkSuccessfulRequestFrom records that this contact queried us. It does
// not reset failed_queries — only a successful outbound query to the
// contact does that.
func (c *Contact) MarkSuccessfulRequestFrom(now time.Time) {
	c.lastSeen = now
}

// FailedQueries returns the consecutive failed-query count.
func (c *Contact) FailedQueries() int { return c.failed }

// LastGoodQuery returns the last time a query to this contact succeeded,
// the zero time if never.
func (c *Contact) LastGoodQuery() time.Time { return c.lastGood }

// State derives the contact's current liveness classification as of now.
func (c *Contact) State(now time.Time) State {
	if c.failed >= BadThreshold {
		return Bad
	}
	if !c.lastGood.IsZero() && now.Sub(c.lastGood) < GoodWindow {
		return Good
	}
	if !c.lastSeen.IsZero() && !c.lastGood.IsZero() && now.Sub(c.lastSeen) < GoodWindow {
		return Good
	}
	return Questionable
}
