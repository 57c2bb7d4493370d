package krpc

import (
	"bytes"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T, s string) NodeID {
	t.Helper()
	id, err := IDFromBytes([]byte(s))
	if err != nil {
		t.Fatalf("building test id from %q: %v", s, err)
	}
	return id
}

func TestEncodePing(t *testing.T) {
	env, err := NewQueryEnvelope([]byte("aa"), PingQuery{ID: mustID(t, "abcdefghij0123456789")}, false)
	if err != nil {
		t.Fatalf("NewQueryEnvelope: %v", err)
	}
	got, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "d1:ad2:id20:abcdefghij0123456789e1:q4:ping1:t2:aa1:y1:qe"
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeReadOnlyPing(t *testing.T) {
	env, err := NewQueryEnvelope([]byte("aa"), PingQuery{ID: mustID(t, "abcdefghij0123456789")}, true)
	if err != nil {
		t.Fatalf("NewQueryEnvelope: %v", err)
	}
	got, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "d1:ad2:id20:abcdefghij0123456789e1:q4:ping2:roi1e1:t2:aa1:y1:qe"
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeErrorEnvelope(t *testing.T) {
	env := NewErrorEnvelope([]byte("aa"), ErrCodeGeneric, "A Generic Error Ocurred")
	got, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "d1:eli201e23:A Generic Error Ocurrede1:t2:aa1:y1:ee"
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeAnnouncePeer(t *testing.T) {
	port := uint16(6881)
	q := AnnouncePeerQuery{
		ID:          mustID(t, "abcdefghij0123456789"),
		ImpliedPort: 1,
		InfoHash:    mustID(t, "mnopqrstuvwxyz123456"),
		Port:        &port,
		Token:       []byte("aoeusnth"),
	}
	env, err := NewQueryEnvelope([]byte("aa"), q, false)
	if err != nil {
		t.Fatalf("NewQueryEnvelope: %v", err)
	}
	got, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "d1:ad2:id20:abcdefghij012345678912:implied_porti1e9:info_hash20:mnopqrstuvwxyz1234564:porti6881e5:token8:aoeusnthe1:q13:announce_peer1:t2:aa1:y1:qe"
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}
}

func TestDecodeRoundTripPing(t *testing.T) {
	env, err := NewQueryEnvelope([]byte("aa"), PingQuery{ID: mustID(t, "abcdefghij0123456789")}, false)
	if err != nil {
		t.Fatalf("NewQueryEnvelope: %v", err)
	}
	raw, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	q, err := DecodeQuery(decoded)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	ping, ok := q.(PingQuery)
	if !ok {
		t.Fatalf("DecodeQuery returned %T, want PingQuery", q)
	}
	if ping.ID != mustID(t, "abcdefghij0123456789") {
		t.Fatalf("round-tripped id = %v, want original", ping.ID)
	}
}

func TestDecodeResponseStructuralOrder(t *testing.T) {
	id := mustID(t, "abcdefghij0123456789")

	onlyID, err := NewResponseEnvelope([]byte("aa"), OnlyIDResponse{ID: id})
	if err != nil {
		t.Fatalf("NewResponseEnvelope: %v", err)
	}
	raw, err := Encode(onlyID)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	resp, err := DecodeResponse(decoded.R)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if _, ok := resp.(OnlyIDResponse); !ok {
		t.Fatalf("DecodeResponse returned %T, want OnlyIDResponse", resp)
	}

	nextHop, err := NewResponseEnvelope([]byte("aa"), NextHopResponse{
		ID:    id,
		Nodes: NodeInfos{{ID: id, Addr: Endpoint{IP: [4]byte{1, 2, 3, 4}, Port: 6881}}},
	})
	if err != nil {
		t.Fatalf("NewResponseEnvelope: %v", err)
	}
	raw, err = Encode(nextHop)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err = Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	resp, err = DecodeResponse(decoded.R)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	nh, ok := resp.(NextHopResponse)
	if !ok {
		t.Fatalf("DecodeResponse returned %T, want NextHopResponse", resp)
	}
	if len(nh.Nodes) != 1 {
		t.Fatalf("decoded %d nodes, want 1", len(nh.Nodes))
	}

	samples, err := NewResponseEnvelope([]byte("aa"), SamplesResponse{
		ID:      id,
		Nodes:   NodeInfos{},
		Samples: Samples{id},
	})
	if err != nil {
		t.Fatalf("NewResponseEnvelope: %v", err)
	}
	raw, err = Encode(samples)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err = Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	resp, err = DecodeResponse(decoded.R)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if _, ok := resp.(SamplesResponse); !ok {
		t.Fatalf("DecodeResponse returned %T, want SamplesResponse (samples key must win over nodes key)", resp)
	}
}

func TestCompactEndpointRoundTrip(t *testing.T) {
	ep := Endpoint{IP: [4]byte{192, 168, 1, 42}, Port: 51413}
	raw, err := bencode.Marshal(ep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Endpoint
	if err := bencode.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != ep {
		t.Fatalf("round trip = %+v, want %+v", got, ep)
	}
}

func TestNodeInfoListLength(t *testing.T) {
	ns := NodeInfos{
		{ID: mustID(t, "abcdefghij0123456789"), Addr: Endpoint{IP: [4]byte{1, 2, 3, 4}, Port: 1}},
		{ID: mustID(t, "mnopqrstuvwxyz123456"), Addr: Endpoint{IP: [4]byte{5, 6, 7, 8}, Port: 2}},
	}
	raw, err := bencode.Marshal(ns)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []byte
	if err := bencode.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal as raw string: %v", err)
	}
	if len(decoded) != NodeInfoLen*len(ns) {
		t.Fatalf("encoded length = %d, want %d", len(decoded), NodeInfoLen*len(ns))
	}

	var bad []byte = decoded[:len(decoded)-1]
	rawBad, err := bencode.Marshal(bad)
	if err != nil {
		t.Fatalf("marshal truncated: %v", err)
	}
	var out NodeInfos
	if err := bencode.Unmarshal(rawBad, &out); err == nil {
		t.Fatalf("expected decode failure for length not a multiple of %d", NodeInfoLen)
	}
}

// TestQueryRoundTripLaw exercises the codec round-trip property from the
// component design for every query shape: decode(encode(v)) must recover
// v structurally, field for field.
func TestQueryRoundTripLaw(t *testing.T) {
	port := uint16(1234)
	queries := []Query{
		PingQuery{ID: mustID(t, "abcdefghij0123456789")},
		FindNodeQuery{ID: mustID(t, "abcdefghij0123456789"), Target: mustID(t, "mnopqrstuvwxyz123456")},
		GetPeersQuery{ID: mustID(t, "abcdefghij0123456789"), InfoHash: mustID(t, "mnopqrstuvwxyz123456")},
		AnnouncePeerQuery{ID: mustID(t, "abcdefghij0123456789"), InfoHash: mustID(t, "mnopqrstuvwxyz123456"), Token: []byte("tok"), Port: &port},
		AnnouncePeerQuery{ID: mustID(t, "abcdefghij0123456789"), InfoHash: mustID(t, "mnopqrstuvwxyz123456"), Token: []byte("tok"), ImpliedPort: 1},
		SampleInfoHashesQuery{ID: mustID(t, "abcdefghij0123456789"), Target: mustID(t, "mnopqrstuvwxyz123456")},
	}

	for _, q := range queries {
		env, err := NewQueryEnvelope([]byte("aa"), q, false)
		require.NoError(t, err, "NewQueryEnvelope(%T)", q)

		raw, err := Encode(env)
		require.NoError(t, err, "Encode(%T)", q)

		decoded, err := Decode(raw)
		require.NoError(t, err, "Decode(%T)", q)

		got, err := DecodeQuery(decoded)
		require.NoError(t, err, "DecodeQuery(%T)", q)

		if !assert.Equal(t, q, got) {
			t.Logf("round trip mismatch:\nwant %s\ngot  %s", spew.Sdump(q), spew.Sdump(got))
		}
	}
}
