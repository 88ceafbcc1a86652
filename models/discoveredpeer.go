package models

import "time"

// DiscoveredPeer is one entry in the mDNS browse table. It is removed
// when LastSeen falls outside the scanner's staleness window; an mDNS
// goodbye does not remove it.
type DiscoveredPeer struct {
	PeerId     PeerId    `json:"peerId"`
	SocketAddr string    `json:"socketAddr"`
	Port       int       `json:"port"`
	LastSeen   time.Time `json:"lastSeen"`
}
