// Package directory is the daemon's Server actor: the single writer
// for the directories map and the session map. It exposes one
// fire-and-forget command interface to the shell (results arrive as
// eventbus events) and one inbox to every session. Grounded on the
// single-goroutine-per-concern shape of network.PeerManager, but
// consolidated into one command channel drained by one goroutine, the
// way spec.md §5 describes ("serializes commands from a bounded
// inbox") rather than the teacher's per-field mutexes.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanshared/lanshared/codec"
	"github.com/lanshared/lanshared/eventbus"
	"github.com/lanshared/lanshared/models"
	"github.com/lanshared/lanshared/persistence"
	"github.com/lanshared/lanshared/session"
	"github.com/lanshared/lanshared/transfer"
	"github.com/lanshared/lanshared/transport"
)

// ErrDirectoryNotFound indicates an operation named a directory the
// Server has no record of.
var ErrDirectoryNotFound = errors.New("directory: directory not found")

// ErrFileNotFound indicates an operation named a file the Server has
// no record of within a known directory.
var ErrFileNotFound = errors.New("directory: file not found")

// ErrNoOnlineOwner indicates download_file found no live session to
// any peer in the file's ownedPeers.
var ErrNoOnlineOwner = errors.New("directory: no online owner for file")

// DialFunc opens an outbound TCP connection; overridable in tests.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// Options configures a Server.
type Options struct {
	Self        models.PeerId
	DataDir     string
	DownloadDir string
	Dial        DialFunc

	commandQueueSize int
}

func (o Options) withDefaults() Options {
	out := o
	if out.Dial == nil {
		out.Dial = transport.Dial
	}
	if out.commandQueueSize <= 0 {
		out.commandQueueSize = 256
	}
	return out
}

type sessionEntry struct {
	sess     *session.Session
	outbound bool
}

// Server owns directories, sessions, and drives the transfer engine.
type Server struct {
	opts Options
	bus  *eventbus.Bus
	xfer *transfer.Engine

	listener *transport.Listener

	cmds        chan func()
	sessionHub  chan session.Event
	closed      chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup

	// State below is only ever touched from the run() goroutine.
	directories map[uuid.UUID]*models.ShareDirectory
	sessions    map[uuid.UUID]*sessionEntry
	peerAddrs   map[uuid.UUID]string
	connecting  map[uuid.UUID]bool
	pending     map[uuid.UUID][]codec.Message
}

// New creates a Server. Directories are seeded from an initial load
// (see persistence.LoadDirectories); callers typically pass the result
// of that straight through.
func New(opts Options, bus *eventbus.Bus, initial []*models.ShareDirectory) *Server {
	opts = opts.withDefaults()

	s := &Server{
		opts:        opts,
		bus:         bus,
		cmds:        make(chan func(), opts.commandQueueSize),
		sessionHub:  make(chan session.Event, opts.commandQueueSize),
		closed:      make(chan struct{}),
		directories: make(map[uuid.UUID]*models.ShareDirectory),
		sessions:    make(map[uuid.UUID]*sessionEntry),
		peerAddrs:   make(map[uuid.UUID]string),
		connecting:  make(map[uuid.UUID]bool),
		pending:     make(map[uuid.UUID][]codec.Message),
	}
	for _, d := range initial {
		s.directories[d.Signature.Identifier] = d
	}
	s.xfer = transfer.New(bus, opts.DownloadDir, s.onDownloadComplete)
	return s
}

// Start launches the Server's command loop and TCP listener.
func (s *Server) Start(address string) error {
	listener, err := transport.Listen(address)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.run()
	return nil
}

// Port returns the bound listening port, for mDNS advertisement.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Port()
}

// Stop closes the listener, tears down every session, and waits for
// the command loop to exit. Each session's connection is closed at
// once: queued outbound messages are not drained and there is no
// grace period.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			_ = s.listener.Close()
		}
		close(s.closed)
		s.wg.Wait()
	})
}

func (s *Server) run() {
	defer s.wg.Done()
	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		case ev := <-s.sessionHub:
			s.onSessionEvent(ev)
		case conn, ok := <-s.listener.Incoming():
			if !ok {
				return
			}
			go s.acceptInbound(conn)
		case err, ok := <-s.listener.Errors():
			if ok && err != nil {
				s.bus.PublishError(eventbus.ErrorEvent{Title: "listener", Error: err.Error()})
			}
		case <-s.closed:
			s.teardownAll()
			return
		}
	}
}

func (s *Server) enqueue(cmd func()) {
	select {
	case s.cmds <- cmd:
	case <-s.closed:
	}
}

// keepAliveMessageFor answers a Session's idle keepalive probe with an
// empty DirectoryUpdate carrying the current lastTransactionId for a
// directory shared with peerID (spec.md §5), chosen deterministically
// by identifier so repeated probes target the same directory. It falls
// back to nil — and the Session sends GetDirectories instead — when no
// directory is shared with that peer yet, since an update naming an
// unknown directory would just trip the receiver's ErrDirectoryNotFound
// path instead of keeping the connection warm.
func (s *Server) keepAliveMessageFor(peerID uuid.UUID) codec.Message {
	result := make(chan codec.Message, 1)
	s.enqueue(func() {
		var chosen *models.ShareDirectory
		for id, d := range s.directories {
			if !containsPeerID(d.Signature.SharedPeers, peerID) {
				continue
			}
			if chosen == nil || id.String() < chosen.Signature.Identifier.String() {
				chosen = d
			}
		}
		if chosen == nil {
			result <- nil
			return
		}
		result <- &codec.DirectoryUpdate{Signature: chosen.Signature.Clone()}
	})
	select {
	case msg := <-result:
		return msg
	case <-s.closed:
		return nil
	}
}

func (s *Server) teardownAll() {
	for _, entry := range s.sessions {
		_ = entry.sess.Close()
	}
}

// --- shell-visible operations (spec.md §4.2) ---

// CreateDirectory creates a fresh directory owned solely by self.
func (s *Server) CreateDirectory(name string) {
	s.enqueue(func() {
		d := models.NewShareDirectory(name, s.opts.Self, time.Now())
		s.directories[d.Signature.Identifier] = d
		s.persist(d)
		s.bus.PublishNewShareDirectory(eventbus.NewShareDirectoryEvent{Directory: d.Clone()})
		s.publishAllDirectories()
	})
}

// AddFiles hashes and registers each path as a new file in
// directoryID, owned by self, then broadcasts the resulting
// DirectoryUpdate to every peer already sharing that directory.
func (s *Server) AddFiles(directoryID uuid.UUID, paths []string) {
	s.enqueue(func() {
		d, ok := s.directories[directoryID]
		if !ok {
			s.reportError("add_files", ErrDirectoryNotFound)
			return
		}

		now := time.Now()
		files := make([]models.SharedFile, 0, len(paths))
		for _, path := range paths {
			f, err := hashLocalFile(path, now)
			if err != nil {
				s.reportError("add_files", err)
				continue
			}
			files = append(files, f)
		}
		if len(files) == 0 {
			return
		}

		update, err := d.AddFiles(s.opts.Self, files, now)
		if err != nil {
			s.reportError("add_files", err)
			return
		}

		s.persist(d)
		s.bus.PublishAddedFiles(eventbus.AddedFilesEvent{DirectoryID: directoryID, Files: update.AddedFiles})
		s.broadcastUpdate(d, update.AddedFiles, nil)
	})
}

// ShareDirectoryToPeers extends sharedPeers and pushes full directory
// state to each named peer, dialing a session if none is open yet.
func (s *Server) ShareDirectoryToPeers(directoryID uuid.UUID, peers []models.PeerId) {
	s.enqueue(func() {
		d, ok := s.directories[directoryID]
		if !ok {
			s.reportError("share_directory_to_peers", ErrDirectoryNotFound)
			return
		}

		now := time.Now()
		d.AddPeers(s.opts.Self, peers, now)
		s.persist(d)
		s.bus.PublishUpdateDirectory(eventbus.UpdateDirectoryEvent{Directory: d.Clone()})

		push := &codec.ShareDirectory{Signature: d.Signature, Files: filesOf(d)}
		for _, peer := range peers {
			if peer.Equal(s.opts.Self) {
				continue
			}
			s.sendToPeer(peer.UUID, push)
		}
	})
}

// LeaveDirectory announces departure to every current peer and drops
// the directory locally.
func (s *Server) LeaveDirectory(directoryID uuid.UUID) {
	s.enqueue(func() {
		d, ok := s.directories[directoryID]
		if !ok {
			s.reportError("leave_directory", ErrDirectoryNotFound)
			return
		}

		leave := &codec.LeaveDirectory{DirectoryID: directoryID}
		for _, peer := range d.Signature.SharedPeers {
			if peer.Equal(s.opts.Self) {
				continue
			}
			s.sendToPeer(peer.UUID, leave)
		}

		delete(s.directories, directoryID)
		if err := persistence.DeleteDirectory(s.opts.DataDir, directoryID); err != nil {
			s.reportError("leave_directory", err)
		}
		s.publishAllDirectories()
	})
}

// DeleteFile drops self's ownership of fileID, removing the file
// entirely once no owner remains, and notifies peers.
func (s *Server) DeleteFile(directoryID, fileID uuid.UUID) {
	s.enqueue(func() {
		d, ok := s.directories[directoryID]
		if !ok {
			s.reportError("delete_file", ErrDirectoryNotFound)
			return
		}
		if _, ok := d.SharedFiles[fileID]; !ok {
			s.reportError("delete_file", ErrFileNotFound)
			return
		}

		now := time.Now()
		d.RemoveFiles(s.opts.Self, []uuid.UUID{fileID}, now)
		s.persist(d)
		s.bus.PublishUpdateDirectory(eventbus.UpdateDirectoryEvent{Directory: d.Clone()})
		s.broadcastUpdate(d, nil, []uuid.UUID{fileID})
	})
}

// DownloadFile picks a deterministic source peer from the file's
// ownedPeers intersected with live sessions, and starts a transfer.
func (s *Server) DownloadFile(directoryID, fileID uuid.UUID) {
	s.enqueue(func() {
		d, ok := s.directories[directoryID]
		if !ok {
			s.reportError("download_file", ErrDirectoryNotFound)
			return
		}
		f, ok := d.SharedFiles[fileID]
		if !ok {
			s.reportError("download_file", ErrFileNotFound)
			return
		}

		peer, entry, ok := s.pickSourcePeer(f.OwnedPeers)
		if !ok {
			s.reportError("download_file", ErrNoOnlineOwner)
			return
		}

		if _, err := s.xfer.StartDownload(entry.sess, peer, directoryID, fileID, f.Name, f.Size, f.ContentHash); err != nil {
			s.reportError("download_file", err)
		}
	})
}

// CancelDownload cancels a local download and notifies its source peer.
func (s *Server) CancelDownload(downloadID uuid.UUID) {
	s.enqueue(func() {
		peer, ok := s.xfer.PeerFor(downloadID)
		var sender transfer.Sender
		if ok {
			if entry, exists := s.sessions[peer.UUID]; exists {
				sender = entry.sess
			}
		}
		s.xfer.CancelDownload(downloadID, sender, "user requested")
	})
}

// GetAllShareDirectoryData publishes a full snapshot of known
// directories.
func (s *Server) GetAllShareDirectoryData() {
	s.enqueue(func() {
		s.publishAllDirectories()
	})
}

// RegisterDiscoveredPeer records a peer's current dial address and
// opportunistically opens a session if we already share a directory
// with it, per spec.md §4.4.
func (s *Server) RegisterDiscoveredPeer(peer models.DiscoveredPeer) {
	s.enqueue(func() {
		addr := fmt.Sprintf("%s:%d", peer.SocketAddr, peer.Port)
		s.peerAddrs[peer.PeerId.UUID] = addr

		if _, alreadyConnected := s.sessions[peer.PeerId.UUID]; alreadyConnected {
			return
		}
		for _, d := range s.directories {
			if containsPeerID(d.Signature.SharedPeers, peer.PeerId.UUID) {
				s.dial(peer.PeerId.UUID, addr)
				return
			}
		}
	})
}

// ForgetDiscoveredPeer drops a stale peer's address; it does not touch
// any live session.
func (s *Server) ForgetDiscoveredPeer(peerID uuid.UUID) {
	s.enqueue(func() {
		delete(s.peerAddrs, peerID)
	})
}

// --- inbound connection and session lifecycle ---

func (s *Server) acceptInbound(conn net.Conn) {
	peer, err := session.Handshake(s.opts.Self, conn)
	if err != nil {
		_ = conn.Close()
		s.reportError("on_handshake", err)
		return
	}
	sess := session.New(conn, s.opts.Self, peer, s.sessionHub,
		session.WithKeepAliveSource(func() codec.Message { return s.keepAliveMessageFor(peer.UUID) }))
	s.enqueue(func() { s.registerSession(peer, sess, false) })
}

func (s *Server) dial(peerID uuid.UUID, addr string) {
	if s.connecting[peerID] {
		return
	}
	s.connecting[peerID] = true

	go func() {
		conn, err := s.opts.Dial(context.Background(), addr)
		if err != nil {
			s.enqueue(func() {
				delete(s.connecting, peerID)
				s.reportError("dial", err)
			})
			return
		}
		peer, err := session.Handshake(s.opts.Self, conn)
		if err != nil {
			_ = conn.Close()
			s.enqueue(func() {
				delete(s.connecting, peerID)
				s.reportError("on_handshake", err)
			})
			return
		}
		sess := session.New(conn, s.opts.Self, peer, s.sessionHub,
			session.WithKeepAliveSource(func() codec.Message { return s.keepAliveMessageFor(peer.UUID) }))
		s.enqueue(func() {
			delete(s.connecting, peerID)
			s.registerSession(peer, sess, true)
		})
	}()
}

// registerSession applies the simultaneous-dial collapse rule from
// spec.md §4.2: the peer with the lesser UUID keeps its outbound
// session.
func (s *Server) registerSession(peer models.PeerId, sess *session.Session, outbound bool) {
	existing, ok := s.sessions[peer.UUID]
	if !ok {
		s.sessions[peer.UUID] = &sessionEntry{sess: sess, outbound: outbound}
		s.flushPending(peer.UUID)
		return
	}
	if existing.sess == sess {
		return
	}

	keepOutbound := s.opts.Self.Less(peer)
	newWins := existing.outbound != outbound && outbound == keepOutbound
	if existing.outbound == outbound {
		// Racing duplicate dials/accepts in the same direction: keep
		// whichever arrived first, close the newcomer.
		_ = sess.Close()
		return
	}
	if newWins {
		_ = existing.sess.Close()
		s.sessions[peer.UUID] = &sessionEntry{sess: sess, outbound: outbound}
		s.flushPending(peer.UUID)
		return
	}
	_ = sess.Close()
}

func (s *Server) flushPending(peerID uuid.UUID) {
	entry, ok := s.sessions[peerID]
	if !ok {
		return
	}
	for _, msg := range s.pending[peerID] {
		entry.sess.Send(msg)
	}
	delete(s.pending, peerID)
}

func (s *Server) sendToPeer(peerID uuid.UUID, msg codec.Message) {
	if entry, ok := s.sessions[peerID]; ok {
		entry.sess.Send(msg)
		return
	}
	s.pending[peerID] = append(s.pending[peerID], msg)
	addr, ok := s.peerAddrs[peerID]
	if !ok {
		s.reportError("send", fmt.Errorf("directory: no known address for peer %s", peerID))
		return
	}
	s.dial(peerID, addr)
}

// --- inbound session events (spec.md §4.2 "session-visible operations") ---

func (s *Server) onSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventClosed:
		s.onSessionClosed(ev.Session)
	case session.EventMessage:
		s.onSessionMessage(ev.Session, ev.Message)
	}
}

func (s *Server) onSessionClosed(sess *session.Session) {
	peer := sess.Peer()
	entry, stillRegistered := s.sessions[peer.UUID]
	stillRegistered = stillRegistered && entry.sess == sess
	if stillRegistered {
		delete(s.sessions, peer.UUID)
	}
	// A losing duplicate session closing during simultaneous-dial
	// collapse (registerSession) must not cancel transfers still running
	// over the surviving session for the same peer.
	if !stillRegistered {
		return
	}
	s.xfer.CancelDownloadsFromPeer(peer)
	s.xfer.CancelUploadsToPeer(peer)
}

func (s *Server) onSessionMessage(sess *session.Session, msg codec.Message) {
	peer := sess.Peer()
	switch m := msg.(type) {
	case *codec.GetDirectories:
		s.onGetDirectories(sess, peer)
	case *codec.Directories:
		// Informational only: the wire protocol offers no per-directory
		// fetch beyond the owner-initiated ShareDirectory push.
	case *codec.ShareDirectory:
		s.onShareDirectory(peer, m)
	case *codec.DirectoryUpdate:
		s.onDirectoryUpdate(peer, m)
	case *codec.FileRequest:
		s.onFileRequest(sess, peer, m)
	case *codec.FileChunk:
		s.xfer.HandleChunk(m)
	case *codec.CancelDownload:
		s.xfer.HandleCancelDownloadInbound(m.DownloadID)
	case *codec.LeaveDirectory:
		s.onLeaveDirectory(peer, m)
	case *codec.ErrorMessage:
		s.bus.PublishError(eventbus.ErrorEvent{Title: "peer " + peer.Hostname, Error: m.Message})
	}
}

func (s *Server) onGetDirectories(sess *session.Session, peer models.PeerId) {
	var sigs []models.ShareDirectorySignature
	for _, d := range s.directories {
		if containsPeerID(d.Signature.SharedPeers, peer.UUID) {
			sigs = append(sigs, d.Signature.Clone())
		}
	}
	sess.Send(&codec.Directories{Signatures: sigs})
}

func (s *Server) onShareDirectory(peer models.PeerId, m *codec.ShareDirectory) {
	now := time.Now()
	d, ok := s.directories[m.Signature.Identifier]
	if !ok {
		d = &models.ShareDirectory{
			Signature:   m.Signature.Clone(),
			SharedFiles: make(map[uuid.UUID]models.SharedFile),
		}
		s.directories[m.Signature.Identifier] = d
		for _, f := range m.Files {
			d.SharedFiles[f.Identifier] = f.Clone()
		}
		s.persist(d)
		s.bus.PublishNewShareDirectory(eventbus.NewShareDirectoryEvent{Directory: d.Clone()})
		return
	}

	update := models.DirectoryUpdate{
		Sender:        peer,
		AddedFiles:    m.Files,
		SharedPeers:   m.Signature.SharedPeers,
		TransactionID: m.Signature.LastTransactionID,
	}
	if d.ApplyUpdate(update, now) {
		s.persist(d)
		s.bus.PublishUpdateDirectory(eventbus.UpdateDirectoryEvent{Directory: d.Clone()})
	}
}

func (s *Server) onDirectoryUpdate(peer models.PeerId, m *codec.DirectoryUpdate) {
	d, ok := s.directories[m.Signature.Identifier]
	if !ok {
		s.reportError("on_directory_update", ErrDirectoryNotFound)
		return
	}

	update := models.DirectoryUpdate{
		Sender:         peer,
		AddedFiles:     m.AddedFiles,
		RemovedFileIDs: m.RemovedFileIDs,
		SharedPeers:    m.Signature.SharedPeers,
		TransactionID:  m.Signature.LastTransactionID,
	}
	if d.ApplyUpdate(update, time.Now()) {
		s.persist(d)
		s.bus.PublishUpdateDirectory(eventbus.UpdateDirectoryEvent{Directory: d.Clone()})
	}
}

func (s *Server) onFileRequest(sess *session.Session, peer models.PeerId, m *codec.FileRequest) {
	d, ok := s.directories[m.DirectoryID]
	if !ok || !containsPeerID(d.Signature.SharedPeers, peer.UUID) {
		sess.Send(&codec.ErrorMessage{Code: "not_shared", Message: "directory is not shared with this peer"})
		return
	}
	f, ok := d.SharedFiles[m.FileID]
	if !ok || !f.HasLocalCopy() {
		sess.Send(&codec.ErrorMessage{Code: "file_not_found", Message: "file not available locally"})
		return
	}
	if err := s.xfer.HandleFileRequest(sess, peer, m, f.LocalPath); err != nil {
		sess.Send(&codec.ErrorMessage{Code: "io_error", Message: err.Error()})
	}
}

func (s *Server) onLeaveDirectory(peer models.PeerId, m *codec.LeaveDirectory) {
	d, ok := s.directories[m.DirectoryID]
	if !ok {
		return
	}
	d.RemovePeer(peer, time.Now())
	s.persist(d)
	s.bus.PublishUpdateDirectory(eventbus.UpdateDirectoryEvent{Directory: d.Clone()})
}

// onDownloadComplete is the transfer engine's completion callback: it
// records localPath on the data model without the engine holding a
// reference to Server state.
func (s *Server) onDownloadComplete(directoryID, fileID uuid.UUID, localPath string) {
	s.enqueue(func() {
		d, ok := s.directories[directoryID]
		if !ok {
			return
		}
		d.SetLocalPath(fileID, localPath)
		s.persist(d)
		s.bus.PublishUpdateDirectory(eventbus.UpdateDirectoryEvent{Directory: d.Clone()})
	})
}

// --- helpers ---

func (s *Server) broadcastUpdate(d *models.ShareDirectory, added []models.SharedFile, removed []uuid.UUID) {
	update := &codec.DirectoryUpdate{Signature: d.Signature, AddedFiles: added, RemovedFileIDs: removed}
	for _, peer := range d.Signature.SharedPeers {
		if peer.Equal(s.opts.Self) {
			continue
		}
		s.sendToPeer(peer.UUID, update)
	}
}

func (s *Server) publishAllDirectories() {
	out := make([]*models.ShareDirectory, 0, len(s.directories))
	for _, d := range s.directories {
		out = append(out, d.Clone())
	}
	s.bus.PublishUpdateShareDirectories(eventbus.UpdateShareDirectoriesEvent{Directories: out})
}

func (s *Server) persist(d *models.ShareDirectory) {
	if err := persistence.SaveDirectory(s.opts.DataDir, d); err != nil {
		s.reportError("persist", err)
	}
}

func (s *Server) reportError(title string, err error) {
	if err == nil {
		return
	}
	s.bus.PublishError(eventbus.ErrorEvent{Title: title, Error: err.Error()})
}

// pickSourcePeer selects a live session from owned, in a deterministic
// order over the UUID strings of owned ∩ live, per spec.md §4.2.
func (s *Server) pickSourcePeer(owned []models.PeerId) (models.PeerId, *sessionEntry, bool) {
	candidates := make([]models.PeerId, 0, len(owned))
	for _, p := range owned {
		if p.Equal(s.opts.Self) {
			continue
		}
		if _, ok := s.sessions[p.UUID]; ok {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return models.PeerId{}, nil, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })
	peer := candidates[0]
	return peer, s.sessions[peer.UUID], true
}

func containsPeerID(peers []models.PeerId, id uuid.UUID) bool {
	for _, p := range peers {
		if p.UUID == id {
			return true
		}
	}
	return false
}

func filesOf(d *models.ShareDirectory) []models.SharedFile {
	out := make([]models.SharedFile, 0, len(d.SharedFiles))
	for _, f := range d.SharedFiles {
		out = append(out, f)
	}
	return out
}

func hashLocalFile(path string, now time.Time) (models.SharedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.SharedFile{}, fmt.Errorf("directory: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.SharedFile{}, fmt.Errorf("directory: %s is a directory", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return models.SharedFile{}, fmt.Errorf("directory: open %s: %w", path, err)
	}
	defer file.Close()

	hash, err := models.HashReader(file)
	if err != nil {
		return models.SharedFile{}, fmt.Errorf("directory: hash %s: %w", path, err)
	}

	return models.SharedFile{
		Name:         filepath.Base(path),
		Identifier:   uuid.New(),
		ContentHash:  hash,
		LastModified: now,
		LocalPath:    path,
		Size:         uint64(info.Size()),
	}, nil
}
