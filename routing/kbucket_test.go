package routing

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/coredht/dht/krpc"
)

type fakePinger struct {
	failAddrs map[string]bool
}

func (p fakePinger) Ping(ctx context.Context, addr net.Addr) (krpc.NodeID, error) {
	if p.failAddrs[addr.String()] {
		return krpc.NodeID{}, fmt.Errorf("ping failed")
	}
	return krpc.NodeID{}, nil
}

func idN(n byte) krpc.NodeID {
	var id krpc.NodeID
	id[len(id)-1] = n
	return id
}

func TestKBucketTryAddExisting(t *testing.T) {
	b := NewKBucket()
	ctx := context.Background()
	info := krpc.NodeInfo{ID: idN(1), Addr: testEndpoint(1)}
	first := b.TryAdd(ctx, info, fakePinger{})
	second := b.TryAdd(ctx, info, fakePinger{})
	if first != second {
		t.Fatalf("TryAdd for an already-present id must return the existing contact")
	}
}

func TestKBucketTryAddFillsToK(t *testing.T) {
	b := NewKBucket()
	ctx := context.Background()
	for i := byte(1); i <= K; i++ {
		info := krpc.NodeInfo{ID: idN(i), Addr: testEndpoint(uint16(i))}
		if c := b.TryAdd(ctx, info, fakePinger{}); c == nil {
			t.Fatalf("TryAdd #%d unexpectedly declined", i)
		}
	}
	if len(b.Contacts()) != K {
		t.Fatalf("bucket has %d contacts, want %d", len(b.Contacts()), K)
	}
}

func TestKBucketTryAddEvictsBad(t *testing.T) {
	b := NewKBucket()
	ctx := context.Background()
	for i := byte(1); i <= K; i++ {
		b.TryAdd(ctx, krpc.NodeInfo{ID: idN(i), Addr: testEndpoint(uint16(i))}, fakePinger{})
	}
	// Mark the first contact Bad.
	bad := b.Get(idN(1))
	bad.MarkFailedQuery()
	bad.MarkFailedQuery()

	newInfo := krpc.NodeInfo{ID: idN(99), Addr: testEndpoint(99)}
	added := b.TryAdd(ctx, newInfo, fakePinger{})
	if added == nil {
		t.Fatalf("TryAdd into a full bucket with a Bad contact must evict and succeed")
	}
	if b.Get(idN(1)) != nil {
		t.Fatalf("Bad contact was not evicted")
	}
	if len(b.Contacts()) != K {
		t.Fatalf("bucket has %d contacts after eviction, want %d", len(b.Contacts()), K)
	}
}

func TestKBucketTryAddProbesQuestionableAndEvictsOnFailure(t *testing.T) {
	b := NewKBucket()
	ctx := context.Background()
	for i := byte(1); i <= K; i++ {
		b.TryAdd(ctx, krpc.NodeInfo{ID: idN(i), Addr: testEndpoint(uint16(i))}, fakePinger{})
	}
	// All K contacts are Questionable (never queried, never requested-from).

	prober := fakePinger{failAddrs: map[string]bool{}}
	for i := byte(1); i <= K; i++ {
		prober.failAddrs[testEndpoint(uint16(i)).UDPAddr().String()] = true
	}

	newInfo := krpc.NodeInfo{ID: idN(99), Addr: testEndpoint(99)}
	added := b.TryAdd(ctx, newInfo, prober)
	if added == nil {
		t.Fatalf("TryAdd must eventually evict a Questionable contact that fails its probe")
	}
	if len(b.Contacts()) != K {
		t.Fatalf("bucket has %d contacts, want %d", len(b.Contacts()), K)
	}
}

func TestKBucketTryAddDeclinesWhenProbesAllSucceed(t *testing.T) {
	b := NewKBucket()
	ctx := context.Background()
	for i := byte(1); i <= K; i++ {
		b.TryAdd(ctx, krpc.NodeInfo{ID: idN(i), Addr: testEndpoint(uint16(i))}, fakePinger{})
	}

	newInfo := krpc.NodeInfo{ID: idN(99), Addr: testEndpoint(99)}
	added := b.TryAdd(ctx, newInfo, fakePinger{}) // never fails
	if added != nil {
		t.Fatalf("TryAdd must decline when every Questionable contact survives its probe")
	}
	if len(b.Contacts()) != K {
		t.Fatalf("bucket contact count changed across a declined TryAdd: got %d, want %d", len(b.Contacts()), K)
	}
}

func TestKBucketSplitPartitionsByBitAndOwner(t *testing.T) {
	b := NewKBucket()
	ctx := context.Background()
	var zeroBit, oneBit krpc.NodeID
	zeroBit[0] = 0x00
	oneBit[0] = 0x80 // bit 0 (MSB) set

	b.TryAdd(ctx, krpc.NodeInfo{ID: zeroBit, Addr: testEndpoint(1)}, fakePinger{})
	b.TryAdd(ctx, krpc.NodeInfo{ID: oneBit, Addr: testEndpoint(2)}, fakePinger{})

	var owner krpc.NodeID
	owner[0] = 0x00 // owner's bit 0 is 0 -> left is Near

	left, right := b.Split(owner, 0)
	if left.leaf != Near || right.leaf != Far {
		t.Fatalf("left.leaf=%v right.leaf=%v, want Near/Far", left.leaf, right.leaf)
	}
	if left.Get(zeroBit) == nil || right.Get(oneBit) == nil {
		t.Fatalf("split did not partition contacts by bit 0 as expected")
	}
}

func TestKBucketFarLeafNeverSplits(t *testing.T) {
	b := &KBucket{leaf: Far}
	if b.CanSplit() {
		t.Fatalf("a Far leaf must never report CanSplit")
	}
}
