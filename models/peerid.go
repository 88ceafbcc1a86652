package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const peerIDSeparator = ";"

// PeerId identifies a remote daemon. Equality is by UUID; Hostname is
// carried for display purposes only and never used in comparisons.
type PeerId struct {
	Hostname string    `json:"hostname"`
	UUID     uuid.UUID `json:"uuid"`
}

// NewPeerId generates a fresh PeerId for the given hostname.
func NewPeerId(hostname string) PeerId {
	return PeerId{Hostname: hostname, UUID: uuid.New()}
}

func (p PeerId) String() string {
	return p.Hostname + peerIDSeparator + p.UUID.String()
}

// Equal compares PeerIds by UUID only.
func (p PeerId) Equal(other PeerId) bool {
	return p.UUID == other.UUID
}

// Less gives a total order over PeerIds, used to tie-break simultaneous
// dials between two peers.
func (p PeerId) Less(other PeerId) bool {
	return strings.Compare(p.UUID.String(), other.UUID.String()) < 0
}

// ParsePeerId parses the "hostname;uuid" instance form used in mDNS
// service instance names.
func ParsePeerId(instance string) (PeerId, error) {
	hostname, rest, ok := strings.Cut(instance, peerIDSeparator)
	if !ok {
		return PeerId{}, fmt.Errorf("models: malformed peer id %q", instance)
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return PeerId{}, fmt.Errorf("models: malformed peer id %q: %w", instance, err)
	}
	return PeerId{Hostname: hostname, UUID: id}, nil
}

func removePeer(peers []PeerId, target PeerId) []PeerId {
	out := make([]PeerId, 0, len(peers))
	for _, p := range peers {
		if !p.Equal(target) {
			out = append(out, p)
		}
	}
	return out
}

func containsPeer(peers []PeerId, target PeerId) bool {
	for _, p := range peers {
		if p.Equal(target) {
			return true
		}
	}
	return false
}

// unionPeers merges b into a, skipping peers already present in a.
// The result is a fresh slice; a and b are left unmodified.
func unionPeers(a, b []PeerId) []PeerId {
	out := make([]PeerId, len(a), len(a)+len(b))
	copy(out, a)
	for _, p := range b {
		if !containsPeer(out, p) {
			out = append(out, p)
		}
	}
	return out
}
