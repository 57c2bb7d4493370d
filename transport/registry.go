// Package transport implements the transaction-multiplexed UDP transport:
// a registry correlating outbound queries with their eventual replies, a
// mutex-guarded send half, and a typed request surface built on top of
// both.
//
// At glog.Debug and above it logs these events:
//
//	SEND QUERY        from=self  to=addr  method=...  tx=...
//	DROP MALFORMED    from=addr  cause=...
//
// Replies, duplicate replies and timeouts are not logged; timeouts and
// errored replies are counted in internal/metrics.
package transport

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/coredht/dht/krpc"
)

// TokenLen is the length in bytes of a transaction token this node
// originates; tokens echoed back from a peer may be of any length, but a
// well-behaved peer always echoes ours unchanged.
const TokenLen = 4

// UnknownTransaction is surfaced when a reply references a token
// this registry has no record of — either because none was ever
// registered, or because it was already dropped.
type UnknownTransaction struct{ Token uint32 }

func (e UnknownTransaction) Error() string {
	return fmt.Sprintf("transport: unknown transaction %08x", e.Token)
}

// DuplicateTransaction is returned by Register when the drawn token is
// already in use. The caller should draw a fresh token and retry, as
// SendTransport.Request does.
type DuplicateTransaction struct{ Token uint32 }

func (e DuplicateTransaction) Error() string {
	return fmt.Sprintf("transport: transaction %08x already registered", e.Token)
}

// Registry is a thread-safe table from transaction token to the eventual
// reply envelope for that token. It is the Go analog — one buffered
// channel per transaction standing in for the reference's
// AwaitingResponse{notifier}/GotResponse{envelope} pair — of the
// suspend/resume state machine an async runtime would otherwise need a
// waker for.
type Registry struct {
	mu  sync.Mutex
	txs map[uint32]chan *krpc.Envelope
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{txs: make(map[uint32]chan *krpc.Envelope)}
}

// Register begins tracking token, returning a channel that yields exactly
// one envelope: the eventual reply. It fails with DuplicateTransaction if
// token is already tracked.
func (r *Registry) Register(token uint32) (<-chan *krpc.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[token]; ok {
		return nil, DuplicateTransaction{Token: token}
	}
	ch := make(chan *krpc.Envelope, 1)
	r.txs[token] = ch
	return ch, nil
}

// Complete parses the 4-byte token from env.T and delivers env to the
// waiter registered for it, if any. A reply for a token this registry
// doesn't know about surfaces UnknownTransaction; a second reply for a
// token that already has one buffered is silently dropped, matching the
// "at most one completion edge" invariant.
func (r *Registry) Complete(env *krpc.Envelope) error {
	token, err := ParseToken(env.T)
	if err != nil {
		return err
	}

	r.mu.Lock()
	ch, ok := r.txs[token]
	r.mu.Unlock()
	if !ok {
		return UnknownTransaction{Token: token}
	}

	select {
	case ch <- env:
	default:
		// A response is already buffered for this transaction; this is a
		// duplicate reply and is dropped per the registry's invariants.
	}
	return nil
}

// Drop stops tracking token. It is required on waiter cancellation or
// completion so the slot can be reused, and is idempotent.
func (r *Registry) Drop(token uint32) {
	r.mu.Lock()
	delete(r.txs, token)
	r.mu.Unlock()
}

// ParseToken decodes a 4-byte big-endian transaction token as produced by
// EncodeToken. It rejects tokens of any other length, which can only arise
// from a peer echoing something other than what we sent.
func ParseToken(t []byte) (uint32, error) {
	if len(t) != TokenLen {
		return 0, fmt.Errorf("transport: transaction token must be %d bytes, got %d", TokenLen, len(t))
	}
	return binary.BigEndian.Uint32(t), nil
}

// EncodeToken encodes a token as the 4-byte big-endian wire representation.
func EncodeToken(token uint32) []byte {
	b := make([]byte, TokenLen)
	binary.BigEndian.PutUint32(b, token)
	return b
}
