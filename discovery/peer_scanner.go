package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/lanshared/lanshared/models"
)

// EventType classifies a PeerScanner event.
type EventType int

const (
	// PeerFound is emitted the first time a peer is seen, and again
	// whenever its address changes.
	PeerFound EventType = iota
	// PeerLost is emitted when a peer goes unseen past the staleness
	// window. mDNS goodbye packets are not handled.
	PeerLost
)

// Event is one change to the discovered-peer table.
type Event struct {
	Type EventType
	Peer models.DiscoveredPeer
}

// staleAfter is how long a peer may go unseen before it is dropped,
// independent of any mDNS goodbye packet.
const staleAfter = 3 * DefaultRefreshInterval

func defaultBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: create resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// PeerScanner maintains a live table of discovered peers by repeatedly
// browsing for the mDNS service, diffing each scan against the
// previous snapshot, and expiring entries that go stale.
type PeerScanner struct {
	cfg  Config
	self models.PeerId

	mu    sync.Mutex
	peers map[string]models.DiscoveredPeer

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeerScanner builds a scanner from config; call Start to begin
// browsing.
func NewPeerScanner(config Config) (*PeerScanner, error) {
	cfg := config.withDefaults()
	if cfg.browseFn == nil {
		cfg.browseFn = defaultBrowse
	}
	if err := cfg.validateForScan(); err != nil {
		return nil, err
	}
	return &PeerScanner{
		cfg:    cfg,
		self:   cfg.Self,
		peers:  make(map[string]models.DiscoveredPeer),
		events: make(chan Event, 64),
	}, nil
}

// Events returns the channel of peer found/lost notifications.
func (s *PeerScanner) Events() <-chan Event { return s.events }

// Peers returns a snapshot of currently known peers. A nil scanner
// (discovery failed to start) reports no peers rather than panicking.
func (s *PeerScanner) Peers() []models.DiscoveredPeer {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DiscoveredPeer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Start begins the periodic browse loop in a background goroutine.
func (s *PeerScanner) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	return nil
}

// Stop halts scanning and waits for the scan loop to exit. The events
// channel is left open.
func (s *PeerScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *PeerScanner) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	s.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
			s.expireStale()
		}
	}
}

func (s *PeerScanner) scanOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	found := make(map[string]models.DiscoveredPeer)

	go func() {
		for entry := range entries {
			peer, ok := parseEntry(entry)
			if !ok || peer.PeerId.Equal(s.self) {
				continue
			}
			found[peer.PeerId.String()] = peer
		}
	}()

	if err := s.cfg.browseFn(ctx, s.cfg.Service, s.cfg.Domain, entries); err != nil {
		return
	}
	<-ctx.Done()
	close(entries)

	s.applySnapshot(found)
}

// applySnapshot diffs a scan's results against the current table,
// emitting PeerFound for new or changed peers.
func (s *PeerScanner) applySnapshot(found map[string]models.DiscoveredPeer) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, peer := range found {
		peer.LastSeen = now
		existing, ok := s.peers[key]
		if !ok || existing.SocketAddr != peer.SocketAddr || existing.Port != peer.Port {
			s.peers[key] = peer
			s.emit(Event{Type: PeerFound, Peer: peer})
			continue
		}
		existing.LastSeen = now
		s.peers[key] = existing
	}
}

func (s *PeerScanner) expireStale() {
	cutoff := time.Now().Add(-staleAfter)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, peer := range s.peers {
		if peer.LastSeen.Before(cutoff) {
			delete(s.peers, key)
			s.emit(Event{Type: PeerLost, Peer: peer})
		}
	}
}

func (s *PeerScanner) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Slow consumer: drop rather than block the scan loop.
	}
}

// parseEntry converts one mDNS service entry into a DiscoveredPeer,
// reading the "uuid" and "hostname" TXT fields per §6.
func parseEntry(entry *zeroconf.ServiceEntry) (models.DiscoveredPeer, bool) {
	var uuidStr, hostname string
	for _, field := range entry.Text {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "uuid":
			uuidStr = value
		case "hostname":
			hostname = value
		}
	}
	if uuidStr == "" {
		return models.DiscoveredPeer{}, false
	}
	peerID, err := models.ParsePeerId(hostname + ";" + uuidStr)
	if err != nil {
		return models.DiscoveredPeer{}, false
	}

	addr := preferredAddress(entry)
	if addr == "" {
		return models.DiscoveredPeer{}, false
	}

	return models.DiscoveredPeer{
		PeerId:     peerID,
		SocketAddr: addr,
		Port:       entry.Port,
	}, true
}

// preferredAddress picks one routable address from an mDNS entry,
// preferring IPv4.
func preferredAddress(entry *zeroconf.ServiceEntry) string {
	for _, ip := range entry.AddrIPv4 {
		if ip != nil {
			return ip.String()
		}
	}
	for _, ip := range entry.AddrIPv6 {
		if ip != nil {
			return ip.String()
		}
	}
	return ""
}
