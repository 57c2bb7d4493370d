package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/coredht/dht/krpc"
)

func testID(tag byte) krpc.NodeID {
	var id krpc.NodeID
	id[len(id)-1] = tag
	return id
}

func TestDiscoverySinkWritesNewlineDelimitedJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink := newDiscoverySink(fs, "/discoveries.jsonl")

	r1 := discoveryRecord{ID: testID(1), From: testEndpointDiscovery(1), Query: "ping", Address: testEndpointDiscovery(1), TimeDiscovered: 100}
	r2 := discoveryRecord{ID: testID(2), From: testEndpointDiscovery(2), Query: "find_node", Address: testEndpointDiscovery(2), TimeDiscovered: 200}

	if err := sink.Write(r1); err != nil {
		t.Fatalf("Write r1: %v", err)
	}
	if err := sink.Write(r2); err != nil {
		t.Fatalf("Write r2: %v", err)
	}

	raw, err := afero.ReadFile(fs, "/discoveries.jsonl")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), raw)
	}
	if !strings.Contains(lines[0], `"query":"ping"`) {
		t.Errorf("line 0 missing ping query: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"query":"find_node"`) {
		t.Errorf("line 1 missing find_node query: %s", lines[1])
	}
	if !strings.Contains(lines[0], `"time_discovered":100`) {
		t.Errorf("line 0 missing time_discovered: %s", lines[0])
	}
}

func TestStreamDiscoverySinkWritesNewlineDelimitedJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := newStreamDiscoverySink(&buf)

	r := discoveryRecord{ID: testID(1), From: testEndpointDiscovery(1), Query: "ping", Address: testEndpointDiscovery(1), TimeDiscovered: 100}
	if err := sink.Write(r); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), `"query":"ping"`) {
		t.Errorf("missing ping query: %s", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("expected trailing newline: %q", buf.String())
	}
}

func testEndpointDiscovery(port uint16) krpc.Endpoint {
	return krpc.Endpoint{IP: [4]byte{127, 0, 0, 1}, Port: port}
}
