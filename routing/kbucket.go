package routing

import (
	"context"
	"net"
	"time"

	"github.com/coredht/dht/internal/metrics"
	"github.com/coredht/dht/krpc"
)

// K is the maximum number of contacts a bucket may hold.
const K = 8

// LeafType distinguishes buckets on the path to this node's own id (Near,
// which may split when full) from every other bucket (Far, which never
// splits).
type LeafType int

const (
	Near LeafType = iota
	Far
)

func (l LeafType) canSplit() bool { return l == Near }

// Pinger is the liveness-probing capability a KBucket needs to evict
// Questionable contacts under pressure. *transport.RequestTransport
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context, addr net.Addr) (krpc.NodeID, error)
}

// KBucket is a single leaf of the routing-table tree: an ordered, bounded
// collection of at most K contacts.
type KBucket struct {
	contacts []*Contact
	leaf     LeafType
}

// NewKBucket returns an empty Near bucket, the state of the tree's sole
// leaf before any split.
func NewKBucket() *KBucket {
	return &KBucket{leaf: Near}
}

// Get returns the contact with the given id, if present.
func (b *KBucket) Get(id krpc.NodeID) *Contact {
	for _, c := range b.contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// HasSpace reports whether fewer than K contacts currently occupy the
// bucket.
func (b *KBucket) HasSpace() bool { return len(b.contacts) < K }

// CanSplit reports whether this bucket's leaf type permits splitting.
func (b *KBucket) CanSplit() bool { return b.leaf.canSplit() }

// Contacts returns the bucket's contacts in no particular order. The
// returned slice is a copy; mutating it does not affect the bucket.
func (b *KBucket) Contacts() []*Contact {
	out := make([]*Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}

func (b *KBucket) add(c *Contact) *Contact {
	b.contacts = append(b.contacts, c)
	return c
}

// takeBad removes and returns any one Bad contact, or nil if none.
func (b *KBucket) takeBad(now time.Time) *Contact {
	for i, c := range b.contacts {
		if c.State(now) == Bad {
			b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
			return c
		}
	}
	return nil
}

// takeQuestionable removes and returns the Questionable contact with the
// lowest failed-query count, breaking ties by the oldest last successful
// query (a contact that has never succeeded sorts after one that has).
func (b *KBucket) takeQuestionable(now time.Time) *Contact {
	best := -1
	for i, c := range b.contacts {
		if c.State(now) != Questionable {
			continue
		}
		if best == -1 || questionableLess(c, b.contacts[best]) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	c := b.contacts[best]
	b.contacts = append(b.contacts[:best], b.contacts[best+1:]...)
	return c
}

func questionableLess(a, b *Contact) bool {
	if a.FailedQueries() != b.FailedQueries() {
		return a.FailedQueries() < b.FailedQueries()
	}
	aNone, bNone := a.LastGoodQuery().IsZero(), b.LastGoodQuery().IsZero()
	switch {
	case aNone && bNone:
		return false
	case aNone:
		// a has never succeeded: a sorts after b, so a is not "less".
		return false
	case bNone:
		return true
	default:
		return a.LastGoodQuery().Before(b.LastGoodQuery())
	}
}

// TryAdd implements the bucket-side half of add_node: return the existing
// contact if info.ID is already present; otherwise insert if there is
// space; otherwise evict a Bad contact; otherwise probe Questionable
// contacts one at a time (evicting the first that goes Bad) until space
// frees up or none remain. Returns nil if no space could be freed.
func (b *KBucket) TryAdd(ctx context.Context, info krpc.NodeInfo, prober Pinger) *Contact {
	if existing := b.Get(info.ID); existing != nil {
		return existing
	}

	if b.HasSpace() {
		return b.add(NewContact(info.ID, info.Addr))
	}

	now := time.Now()
	if b.takeBad(now) != nil {
		metrics.BucketEvictBad.Mark(1)
		return b.add(NewContact(info.ID, info.Addr))
	}

	for {
		questionable := b.takeQuestionable(now)
		if questionable == nil {
			return nil
		}

		_, err := prober.Ping(ctx, questionable.Addr.UDPAddr())
		if err != nil {
			questionable.MarkFailedQuery()
		} else {
			questionable.MarkSuccessfulQuery(time.Now())
		}

		if questionable.State(time.Now()) == Bad {
			metrics.BucketEvictQuestion.Mark(1)
			return b.add(NewContact(info.ID, info.Addr))
		}
		// Still Questionable or now Good: put it back and try the next
		// Questionable contact.
		b.contacts = append(b.contacts, questionable)
	}
}

// Split partitions this bucket's contacts by the value of bit `depth` of
// each contact's id: contacts with bit 0 go to the left result, bit 1 to
// the right. Whichever side shares ownerID's bit at depth becomes the new
// Near leaf; the other becomes Far.
func (b *KBucket) Split(ownerID krpc.NodeID, depth int) (left, right *KBucket) {
	left = &KBucket{}
	right = &KBucket{}
	for _, c := range b.contacts {
		if c.ID.NthBit(depth) {
			right.contacts = append(right.contacts, c)
		} else {
			left.contacts = append(left.contacts, c)
		}
	}
	if ownerID.NthBit(depth) {
		left.leaf = Far
		right.leaf = Near
	} else {
		left.leaf = Near
		right.leaf = Far
	}
	return left, right
}
