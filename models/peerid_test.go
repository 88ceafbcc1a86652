package models

import "testing"

func TestPeerIdEqualIgnoresHostname(t *testing.T) {
	a := NewPeerId("alice")
	b := PeerId{UUID: a.UUID, Hostname: "renamed-alice"}

	if !a.Equal(b) {
		t.Fatalf("expected peers with the same uuid to be equal regardless of hostname")
	}
}

func TestPeerIdLessGivesTotalOrder(t *testing.T) {
	a := NewPeerId("alice")
	b := NewPeerId("bob")

	if a.Less(b) == b.Less(a) {
		t.Fatalf("expected exactly one direction to hold for distinct peers")
	}
	if a.Less(a) {
		t.Fatalf("expected a peer to never be less than itself")
	}
}

func TestParsePeerIdRoundTripsString(t *testing.T) {
	original := NewPeerId("alice")

	parsed, err := ParsePeerId(original.String())
	if err != nil {
		t.Fatalf("ParsePeerId failed: %v", err)
	}
	if !parsed.Equal(original) || parsed.Hostname != original.Hostname {
		t.Fatalf("expected %+v, got %+v", original, parsed)
	}
}

func TestParsePeerIdRejectsMalformedInstance(t *testing.T) {
	if _, err := ParsePeerId("no-separator-here"); err == nil {
		t.Fatalf("expected an error for an instance name missing the separator")
	}
}

func TestUnionPeersDeduplicates(t *testing.T) {
	a := NewPeerId("alice")
	b := NewPeerId("bob")

	out := unionPeers([]PeerId{a}, []PeerId{a, b})
	if len(out) != 2 {
		t.Fatalf("expected 2 unique peers, got %d: %+v", len(out), out)
	}
}
