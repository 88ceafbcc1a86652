package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
)

func entryFor(uuidStr, hostname string, port int, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: hostname + ";" + uuidStr,
		},
		Text:     []string{"uuid=" + uuidStr, "hostname=" + hostname},
		Port:     port,
		AddrIPv4: []net.IP{net.ParseIP(ip)},
	}
}

func TestPeerScannerFindsAndReportsPeer(t *testing.T) {
	peerUUID := uuid.New().String()

	cfg := Config{
		Self:            testSelf(),
		RefreshInterval: 20 * time.Millisecond,
		ScanTimeout:     5 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			entries <- entryFor(peerUUID, "bob-desktop", 4010, "192.168.1.50")
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	select {
	case ev := <-scanner.Events():
		if ev.Type != PeerFound {
			t.Fatalf("expected PeerFound, got %v", ev.Type)
		}
		if ev.Peer.PeerId.UUID.String() != peerUUID {
			t.Fatalf("unexpected peer uuid: %s", ev.Peer.PeerId.UUID)
		}
		if ev.Peer.SocketAddr != "192.168.1.50" || ev.Peer.Port != 4010 {
			t.Fatalf("unexpected peer address: %s:%d", ev.Peer.SocketAddr, ev.Peer.Port)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for PeerFound event")
	}

	peers := scanner.Peers()
	if len(peers) != 1 {
		t.Fatalf("expected 1 known peer, got %d", len(peers))
	}
}

func TestPeerScannerIgnoresSelf(t *testing.T) {
	self := testSelf()
	cfg := Config{
		Self:            self,
		RefreshInterval: 20 * time.Millisecond,
		ScanTimeout:     5 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			entries <- entryFor(self.UUID.String(), self.Hostname, 4010, "192.168.1.50")
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	select {
	case ev := <-scanner.Events():
		t.Fatalf("expected no events for self, got %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestParseEntryRejectsMissingUUID(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		Text:     []string{"hostname=bob"},
		AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
	}
	if _, ok := parseEntry(entry); ok {
		t.Fatalf("expected parseEntry to reject an entry with no uuid field")
	}
}
