package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/lanshared/lanshared/config"
	"github.com/lanshared/lanshared/directory"
	"github.com/lanshared/lanshared/discovery"
	"github.com/lanshared/lanshared/eventbus"
	"github.com/lanshared/lanshared/persistence"
	"github.com/lanshared/lanshared/shellapi"
)

func main() {
	dataDir, err := config.ResolveDataDir()
	if err != nil {
		log.Fatalf("startup failed while resolving data directory: %v", err)
	}
	if err := config.EnsureDataDirectories(dataDir); err != nil {
		log.Fatalf("startup failed while creating data directory: %v", err)
	}

	bus := eventbus.New()

	self, err := persistence.LoadOrCreateIdentity(dataDir)
	if err != nil {
		bus.PublishError(eventbus.ErrorEvent{Title: "identity", Error: err.Error()})
	}

	settings, err := config.LoadSettings(dataDir)
	if err != nil {
		bus.PublishError(eventbus.ErrorEvent{Title: "settings", Error: err.Error()})
	}

	directories, loadErrs := persistence.LoadDirectories(dataDir)
	for _, e := range loadErrs {
		bus.PublishError(eventbus.ErrorEvent{Title: "directory snapshot", Error: e.Error()})
	}

	fmt.Printf("Peer ID:          %s\n", self)
	fmt.Printf("Data Directory:   %s\n", dataDir)
	fmt.Printf("Download Dir:     %s\n", settings.DownloadDirectory)
	fmt.Printf("Directories:      %d loaded\n", len(directories))

	srv := directory.New(directory.Options{
		Self:        self,
		DataDir:     dataDir,
		DownloadDir: settings.DownloadDirectory,
	}, bus, directories)

	if err := srv.Start(""); err != nil {
		log.Fatalf("startup failed while starting listener: %v", err)
	}
	defer srv.Stop()
	fmt.Printf("Listening Port:   %d\n", srv.Port())

	var scanner *discovery.PeerScanner
	discoverySvc, err := discovery.Start(discovery.Config{
		Self:          self,
		ListeningPort: srv.Port(),
	})
	if err != nil {
		log.Printf("discovery startup failed: %v", err)
	} else {
		defer discoverySvc.Stop()
		fmt.Println("Discovery:        running")
		scanner = discoverySvc.Scanner
		go forwardDiscoveryEvents(scanner.Events(), srv)
	}

	api := shellapi.New(dataDir, srv, scanner, bus)
	go logBusErrors(api.Events())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Status:           running (press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("Status:           shutting down")
}

func forwardDiscoveryEvents(events <-chan discovery.Event, srv *directory.Server) {
	for event := range events {
		switch event.Type {
		case discovery.PeerFound:
			log.Printf("discovery: peer available id=%s addr=%s port=%d",
				event.Peer.PeerId, event.Peer.SocketAddr, event.Peer.Port)
			srv.RegisterDiscoveredPeer(event.Peer)
		case discovery.PeerLost:
			log.Printf("discovery: peer lost id=%s", event.Peer.PeerId)
			srv.ForgetDiscoveredPeer(event.Peer.PeerId.UUID)
		}
	}
}

func logBusErrors(bus *eventbus.Bus) {
	for ev := range bus.Errors() {
		log.Printf("%s: %s", ev.Title, ev.Error)
	}
}
