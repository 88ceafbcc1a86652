// Package shellapi is the daemon's command surface for the local
// shell process: every method here is fire-and-forget, with results
// delivered later as eventbus.Bus events, the same call/notify split
// the teacher's PeerManager exposes to its UI layer.
package shellapi

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/google/uuid"

	"github.com/lanshared/lanshared/config"
	"github.com/lanshared/lanshared/directory"
	"github.com/lanshared/lanshared/discovery"
	"github.com/lanshared/lanshared/eventbus"
	"github.com/lanshared/lanshared/models"
)

// API is the bound set of operations the shell process calls into.
// It owns nothing the Server doesn't already own; it is a thin,
// named front door so the wiring in main.go stays out of the shell's
// way.
type API struct {
	dataDir string
	server  *directory.Server
	scanner *discovery.PeerScanner
	bus     *eventbus.Bus
}

// New binds an API to an already-started Server and PeerScanner.
func New(dataDir string, server *directory.Server, scanner *discovery.PeerScanner, bus *eventbus.Bus) *API {
	return &API{dataDir: dataDir, server: server, scanner: scanner, bus: bus}
}

// Events exposes the Bus so the shell's transport layer (an RPC codec
// over stdio, a websocket, whatever carries the wire protocol the
// shell process speaks) can drain it without reaching into the
// daemon's internals directly.
func (a *API) Events() *eventbus.Bus { return a.bus }

// CreateShareDirectory creates a new, self-owned share directory.
func (a *API) CreateShareDirectory(name string) {
	a.server.CreateDirectory(name)
}

// GetAllShareDirectoryData requests a full snapshot of known
// directories, delivered via eventbus.Bus.UpdateShareDirectories.
func (a *API) GetAllShareDirectoryData() {
	a.server.GetAllShareDirectoryData()
}

// AddFiles registers local file paths as new, self-owned files in
// directoryID.
func (a *API) AddFiles(directoryID uuid.UUID, paths []string) {
	a.server.AddFiles(directoryID, paths)
}

// ShareDirectoryToPeers extends a directory's membership and pushes
// its state to each named peer.
func (a *API) ShareDirectoryToPeers(directoryID uuid.UUID, peers []models.PeerId) {
	a.server.ShareDirectoryToPeers(directoryID, peers)
}

// DownloadFile begins downloading fileID from whichever online peer
// currently owns it.
func (a *API) DownloadFile(directoryID, fileID uuid.UUID) {
	a.server.DownloadFile(directoryID, fileID)
}

// DeleteFile drops this daemon's ownership of fileID.
func (a *API) DeleteFile(directoryID, fileID uuid.UUID) {
	a.server.DeleteFile(directoryID, fileID)
}

// CancelDownload cancels an in-flight download.
func (a *API) CancelDownload(downloadID uuid.UUID) {
	a.server.CancelDownload(downloadID)
}

// LeaveDirectory announces departure from a directory and drops it
// locally.
func (a *API) LeaveDirectory(directoryID uuid.UUID) {
	a.server.LeaveDirectory(directoryID)
}

// GetPeers publishes the current mDNS discovery table via
// eventbus.Bus.GetPeers.
func (a *API) GetPeers() {
	a.bus.PublishGetPeers(eventbus.GetPeersEvent{Peers: a.scanner.Peers()})
}

// GetSettings reads the user's persisted settings, falling back to
// defaults on first run.
func (a *API) GetSettings() (config.Settings, error) {
	return config.LoadSettings(a.dataDir)
}

// SaveSettings persists the user's settings.
func (a *API) SaveSettings(settings config.Settings) error {
	return config.SaveSettings(a.dataDir, settings)
}

// OpenFile delegates to the OS's default file opener. This is the
// one operation the daemon can't sensibly own itself: what "open" a
// file means is a desktop-shell concern, not the daemon's — out of
// scope per spec.md's own carve-out of the file opener as an external
// collaborator.
func (a *API) OpenFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("shellapi: open %s: %w", path, err)
	}
	return nil
}
