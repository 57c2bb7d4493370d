package routing

import (
	"testing"
	"time"

	"github.com/coredht/dht/krpc"
)

func testEndpoint(port uint16) krpc.Endpoint {
	return krpc.Endpoint{IP: [4]byte{127, 0, 0, 1}, Port: port}
}

func TestContactStartsQuestionable(t *testing.T) {
	c := NewContact(krpc.NodeID{1}, testEndpoint(1))
	if got := c.State(time.Now()); got != Questionable {
		t.Fatalf("fresh contact state = %v, want Questionable", got)
	}
}

func TestContactGoodAfterSuccessfulQuery(t *testing.T) {
	c := NewContact(krpc.NodeID{1}, testEndpoint(1))
	now := time.Now()
	c.MarkSuccessfulQuery(now)
	if got := c.State(now); got != Good {
		t.Fatalf("state after successful query = %v, want Good", got)
	}
}

func TestContactBadAfterTwoFailures(t *testing.T) {
	c := NewContact(krpc.NodeID{1}, testEndpoint(1))
	c.MarkFailedQuery()
	if got := c.State(time.Now()); got != Questionable {
		t.Fatalf("state after one failure = %v, want Questionable", got)
	}
	c.MarkFailedQuery()
	if got := c.State(time.Now()); got != Bad {
		t.Fatalf("state after two failures = %v, want Bad", got)
	}
}

// A request from a contact we have never successfully queried leaves it
// Questionable, never Good — mark_successful_request_from alone is not
// enough to promote a contact, matching the reference's own
// response_only_questionable test.
func TestContactResponseOnlyQuestionable(t *testing.T) {
	c := NewContact(krpc.NodeID{1}, testEndpoint(1))
	now := time.Now()
	c.MarkSuccessfulRequestFrom(now)
	if got := c.State(now); got != Questionable {
		t.Fatalf("state after request-from with no prior query-to = %v, want Questionable", got)
	}
}

func TestContactGoodWindowExpires(t *testing.T) {
	c := NewContact(krpc.NodeID{1}, testEndpoint(1))
	past := time.Now().Add(-GoodWindow - time.Minute)
	c.MarkSuccessfulQuery(past)
	if got := c.State(time.Now()); got != Questionable {
		t.Fatalf("state after Good window expired = %v, want Questionable", got)
	}
}

func TestContactGoodViaRecentRequestAfterPriorSuccess(t *testing.T) {
	c := NewContact(krpc.NodeID{1}, testEndpoint(1))
	longAgo := time.Now().Add(-2 * GoodWindow)
	c.MarkSuccessfulQuery(longAgo)
	now := time.Now()
	c.MarkSuccessfulRequestFrom(now)
	if got := c.State(now); got != Good {
		t.Fatalf("state after stale query-to + recent request-from = %v, want Good", got)
	}
}

func TestQuestionableLessTieBreak(t *testing.T) {
	never := NewContact(krpc.NodeID{1}, testEndpoint(1))
	succeeded := NewContact(krpc.NodeID{2}, testEndpoint(2))
	succeeded.MarkSuccessfulQuery(time.Now().Add(-time.Hour))

	if !questionableLess(succeeded, never) {
		t.Fatalf("a contact that has succeeded once must be less (evicted before) one that never has")
	}
	if questionableLess(never, succeeded) {
		t.Fatalf("a contact that has never succeeded must not be less than one that has")
	}
}
