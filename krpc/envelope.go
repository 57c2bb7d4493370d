package krpc

import (
	"fmt"

	"github.com/anacrolix/torrent/bencode"
)

// Message kind discriminants for the envelope's "y" field.
const (
	KindQuery    = "q"
	KindResponse = "r"
	KindError    = "e"
)

// Envelope is the outer bencode dictionary exchanged on the wire. Exactly
// one of A, R, E is populated, selected by Y.
type Envelope struct {
	A  bencode.RawMessage `bencode:"a,omitempty"`
	E  *Err               `bencode:"e,omitempty"`
	IP *Endpoint          `bencode:"ip,omitempty"`
	Q  string             `bencode:"q,omitempty"`
	R  bencode.RawMessage `bencode:"r,omitempty"`
	RO int                `bencode:"ro,omitempty"`
	T  []byte             `bencode:"t"`
	V  []byte             `bencode:"v,omitempty"`
	Y  string             `bencode:"y"`
}

// EncodeError wraps a failure from the bencode emitter.
type EncodeError struct{ Cause error }

func (e EncodeError) Error() string { return fmt.Sprintf("krpc: encode failed: %v", e.Cause) }
func (e EncodeError) Unwrap() error { return e.Cause }

// DecodeError wraps a failure from the bencode parser.
type DecodeError struct{ Cause error }

func (e DecodeError) Error() string { return fmt.Sprintf("krpc: decode failed: %v", e.Cause) }
func (e DecodeError) Unwrap() error { return e.Cause }

// InvalidInboundMessage is recorded by boundary consumers (the inbound
// message stream) alongside the source endpoint and raw bytes of a
// datagram that failed to decode, for diagnostics.
type InvalidInboundMessage struct {
	From    Endpoint
	Message []byte
	Cause   error
}

func (e InvalidInboundMessage) Error() string {
	return fmt.Sprintf("krpc: invalid message from %s: %v", e.From, e.Cause)
}
func (e InvalidInboundMessage) Unwrap() error { return e.Cause }

// Encode serializes the envelope to bencode bytes.
func Encode(e *Envelope) ([]byte, error) {
	b, err := bencode.Marshal(e)
	if err != nil {
		return nil, EncodeError{Cause: err}
	}
	return b, nil
}

// Decode parses bencode bytes into an envelope, rejecting envelopes whose
// "y" discriminant is inconsistent with the payload key actually present.
func Decode(b []byte) (*Envelope, error) {
	var e Envelope
	if err := bencode.Unmarshal(b, &e); err != nil {
		return nil, DecodeError{Cause: err}
	}
	switch e.Y {
	case KindQuery:
		if e.Q == "" || e.A == nil {
			return nil, DecodeError{Cause: fmt.Errorf("query envelope missing q/a")}
		}
	case KindResponse:
		if e.R == nil {
			return nil, DecodeError{Cause: fmt.Errorf("response envelope missing r")}
		}
	case KindError:
		if e.E == nil {
			return nil, DecodeError{Cause: fmt.Errorf("error envelope missing e")}
		}
	default:
		return nil, DecodeError{Cause: fmt.Errorf("unknown message kind %q", e.Y)}
	}
	return &e, nil
}

// NewQueryEnvelope builds a query envelope for q, tagged with transaction
// token t and the sender's read-only flag.
func NewQueryEnvelope(t []byte, q Query, readOnly bool) (*Envelope, error) {
	args, err := bencode.Marshal(q)
	if err != nil {
		return nil, EncodeError{Cause: err}
	}
	ro := 0
	if readOnly {
		ro = 1
	}
	return &Envelope{
		T:  t,
		Y:  KindQuery,
		Q:  q.Method(),
		A:  args,
		RO: ro,
	}, nil
}

// NewResponseEnvelope builds a response envelope echoing transaction token
// t.
func NewResponseEnvelope(t []byte, r Response) (*Envelope, error) {
	body, err := bencode.Marshal(r)
	if err != nil {
		return nil, EncodeError{Cause: err}
	}
	return &Envelope{
		T: t,
		Y: KindResponse,
		R: body,
	}, nil
}

// NewErrorEnvelope builds an error envelope echoing transaction token t.
func NewErrorEnvelope(t []byte, code int, msg string) *Envelope {
	return &Envelope{
		T: t,
		Y: KindError,
		E: &Err{Code: code, Msg: msg},
	}
}

// DecodeQuery recovers the concrete Query shape from an envelope whose Y is
// KindQuery, dispatching on Q.
func DecodeQuery(e *Envelope) (Query, error) {
	switch e.Q {
	case MethodPing:
		var q PingQuery
		if err := bencode.Unmarshal(e.A, &q); err != nil {
			return nil, DecodeError{Cause: err}
		}
		return q, nil
	case MethodFindNode:
		var q FindNodeQuery
		if err := bencode.Unmarshal(e.A, &q); err != nil {
			return nil, DecodeError{Cause: err}
		}
		return q, nil
	case MethodGetPeers:
		var q GetPeersQuery
		if err := bencode.Unmarshal(e.A, &q); err != nil {
			return nil, DecodeError{Cause: err}
		}
		return q, nil
	case MethodAnnouncePeer:
		var q AnnouncePeerQuery
		if err := bencode.Unmarshal(e.A, &q); err != nil {
			return nil, DecodeError{Cause: err}
		}
		return q, nil
	case MethodSampleInfoHashes:
		var q SampleInfoHashesQuery
		if err := bencode.Unmarshal(e.A, &q); err != nil {
			return nil, DecodeError{Cause: err}
		}
		return q, nil
	default:
		return nil, DecodeError{Cause: fmt.Errorf("unknown query method %q", e.Q)}
	}
}
