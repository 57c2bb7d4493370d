package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/coredht/dht/internal/glog"
	"github.com/coredht/dht/krpc"
)

// ReadBufferSize is the fixed datagram buffer size. BEP-5 payloads stay
// well below this for every query and response this system defines.
const ReadBufferSize = 1024

// FailedToReceive wraps a socket read failure. The inbound stream keeps
// running after yielding one of these; only the caller's context being
// canceled stops it.
type FailedToReceive struct{ Cause error }

func (e FailedToReceive) Error() string { return fmt.Sprintf("transport: receive failed: %v", e.Cause) }
func (e FailedToReceive) Unwrap() error { return e.Cause }

// PacketConn is the subset of net.PacketConn the inbound stream needs.
type PacketConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
}

// InboundItem is one item of the inbound message stream: either a
// successfully decoded envelope from a v4 endpoint, or an error
// describing why this datagram couldn't be turned into one.
type InboundItem struct {
	Envelope *krpc.Envelope
	From     krpc.Endpoint
	Err      error
}

// Stream is the lazy, infinite sequence of (Envelope, Endpoint) items
// described in the component design: a malformed or IPv6 peer yields a
// failed item without silencing the rest of the stream.
type Stream struct {
	conn PacketConn
}

// NewStream wraps conn as an inbound message stream.
func NewStream(conn PacketConn) *Stream {
	return &Stream{conn: conn}
}

// Next blocks for one datagram and returns the item it produced. It
// returns a non-nil error from ctx.Err() only when ctx is done; all other
// failure modes (decode failure, non-v4 sender, I/O failure) are
// delivered as an InboundItem.Err rather than a returned error, so the
// caller's read loop never needs special-casing to keep going.
func (s *Stream) Next(ctx context.Context) (InboundItem, error) {
	type result struct {
		n    int
		addr net.Addr
		err  error
	}
	buf := make([]byte, ReadBufferSize)
	resultCh := make(chan result, 1)
	go func() {
		n, addr, err := s.conn.ReadFrom(buf)
		resultCh <- result{n: n, addr: addr, err: err}
	}()

	select {
	case <-ctx.Done():
		return InboundItem{}, ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return InboundItem{Err: FailedToReceive{Cause: res.err}}, nil
		}

		udpAddr, ok := res.addr.(*net.UDPAddr)
		if !ok {
			udpAddr = &net.UDPAddr{}
		}
		ep, err := krpc.EndpointFromUDPAddr(udpAddr)
		if err != nil {
			return InboundItem{Err: err}, nil
		}

		raw := append([]byte(nil), buf[:res.n]...)
		env, err := krpc.Decode(raw)
		if err != nil {
			glog.V(glog.Debug).Infof("transport: dropping malformed datagram from %s: %v", ep, err)
			return InboundItem{From: ep, Err: krpc.InvalidInboundMessage{From: ep, Message: raw, Cause: err}}, nil
		}
		return InboundItem{Envelope: env, From: ep}, nil
	}
}
