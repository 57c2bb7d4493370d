package main

import "testing"

func TestParseHexID(t *testing.T) {
	id, err := parseHexID("0102030405060708090a0b0c0d0e0f1011121314")
	if err != nil {
		t.Fatalf("parseHexID: %v", err)
	}
	if id[0] != 0x01 || id[19] != 0x14 {
		t.Errorf("unexpected id bytes: %x", id)
	}
}

func TestParseHexIDRejectsWrongLength(t *testing.T) {
	if _, err := parseHexID("abcd"); err == nil {
		t.Fatal("expected error for short id")
	}
}

func TestResolveEndpoint(t *testing.T) {
	ep, err := resolveEndpoint("127.0.0.1:6881")
	if err != nil {
		t.Fatalf("resolveEndpoint: %v", err)
	}
	if ep.Port != 6881 {
		t.Errorf("port = %d, want 6881", ep.Port)
	}
	if ep.IP != [4]byte{127, 0, 0, 1} {
		t.Errorf("ip = %v, want 127.0.0.1", ep.IP)
	}
}

func TestResolveSeedEndpointRejectsSpecialNetwork(t *testing.T) {
	if _, err := resolveSeedEndpoint("255.255.255.255:6881"); err == nil {
		t.Fatal("expected error for broadcast address seed")
	}
}

func TestResolveSeedEndpointRejectsLAN(t *testing.T) {
	if _, err := resolveSeedEndpoint("192.168.1.1:6881"); err == nil {
		t.Fatal("expected error for local-network address seed")
	}
}

func TestResolveSeedEndpointAcceptsOrdinaryAddress(t *testing.T) {
	ep, err := resolveSeedEndpoint("67.215.246.10:6881")
	if err != nil {
		t.Fatalf("resolveSeedEndpoint: %v", err)
	}
	if ep.Port != 6881 {
		t.Errorf("port = %d, want 6881", ep.Port)
	}
}
