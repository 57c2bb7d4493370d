package transport

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/internal/metrics"
	"github.com/coredht/dht/krpc"
)

// SendEncodingError wraps a failure to encode an outbound envelope.
type SendEncodingError struct{ Cause error }

func (e SendEncodingError) Error() string { return fmt.Sprintf("transport: encoding failed: %v", e.Cause) }
func (e SendEncodingError) Unwrap() error { return e.Cause }

// SendError wraps a failure to write an outbound datagram.
type SendError struct{ Cause error }

func (e SendError) Error() string { return fmt.Sprintf("transport: send failed: %v", e.Cause) }
func (e SendError) Unwrap() error { return e.Cause }

// ReceivedKRPCError is surfaced by Request when the peer replied with a
// protocol error envelope rather than a response.
type ReceivedKRPCError struct{ Err krpc.Err }

func (e ReceivedKRPCError) Error() string { return e.Err.Error() }

// Timeout is surfaced by Request when no reply arrives before the
// deadline. The registered token is always removed before this error is
// returned.
type Timeout struct{ Token uint32 }

func (e Timeout) Error() string { return fmt.Sprintf("transport: timed out waiting for transaction %08x", e.Token) }

// Conn is the subset of net.PacketConn the send transport needs, satisfied
// by *net.UDPConn in production and a fake in tests.
type Conn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// SendTransport serializes outbound writes through a single mutex (the
// "sender mutex" of the concurrency model) and multiplexes responses
// through a Registry. A waiter on a reply releases the mutex immediately
// after the write completes; only the write itself is serialized.
type SendTransport struct {
	conn     Conn
	registry *Registry
	readOnly bool

	mu sync.Mutex
}

// NewSendTransport builds a send transport writing to conn, using registry
// to correlate replies. readOnly is mirrored into the "ro" field of every
// outbound query per BEP-43.
func NewSendTransport(conn Conn, registry *Registry, readOnly bool) *SendTransport {
	return &SendTransport{conn: conn, registry: registry, readOnly: readOnly}
}

// Send encodes and transmits env to addr without expecting a reply.
func (s *SendTransport) Send(addr net.Addr, env *krpc.Envelope) error {
	raw, err := krpc.Encode(env)
	if err != nil {
		return SendEncodingError{Cause: err}
	}

	s.mu.Lock()
	_, err = s.conn.WriteTo(raw, addr)
	s.mu.Unlock()
	if err != nil {
		return SendError{Cause: err}
	}
	return nil
}

// Request allocates a fresh transaction token, sends q to addr as a query
// envelope, and awaits the reply (or ctx's deadline, whichever comes
// first). The returned krpc.Response is nil and the error is
// ReceivedKRPCError if the peer answered with a protocol error envelope.
func (s *SendTransport) Request(ctx context.Context, addr net.Addr, q krpc.Query) (krpc.Response, error) {
	token, ch, err := s.registerFreshToken()
	if err != nil {
		return nil, err
	}
	tokenBytes := EncodeToken(token)

	env, err := krpc.NewQueryEnvelope(tokenBytes, q, s.readOnly)
	if err != nil {
		s.registry.Drop(token)
		return nil, SendEncodingError{Cause: err}
	}

	if err := s.Send(addr, env); err != nil {
		s.registry.Drop(token)
		return nil, err
	}

	glog.V(glog.Debug).Infof("transport: sent %s to %s (tx %08x)", q.Method(), addr, token)
	metrics.MarkQuerySent(q.Method())
	start := time.Now()

	select {
	case reply := <-ch:
		s.registry.Drop(token)
		metrics.ResponseLatency.UpdateSince(start)
		if reply.Y == krpc.KindError {
			metrics.QueryErrored.Mark(1)
			return nil, ReceivedKRPCError{Err: *reply.E}
		}
		resp, err := krpc.DecodeResponse(reply.R)
		if err != nil {
			metrics.QueryErrored.Mark(1)
			return nil, krpc.DecodeError{Cause: err}
		}
		return resp, nil
	case <-ctx.Done():
		s.registry.Drop(token)
		metrics.QueryTimeout.Mark(1)
		return nil, Timeout{Token: token}
	}
}

func (s *SendTransport) registerFreshToken() (uint32, <-chan *krpc.Envelope, error) {
	for {
		token, err := randomToken()
		if err != nil {
			return 0, nil, err
		}
		ch, err := s.registry.Register(token)
		if err == nil {
			return token, ch, nil
		}
		if _, dup := err.(DuplicateTransaction); !dup {
			return 0, nil, err
		}
		// Collision on a uniform 32-bit draw; negligible probability at
		// this system's concurrency, so just retry with a new token.
	}
}

func randomToken() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("transport: drawing transaction token: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
