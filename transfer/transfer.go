// Package transfer is the chunked transfer engine: on the receiving
// side it drives one Download per requested file, writing chunks as
// they arrive and verifying the final hash; on the sending side it
// streams FileChunks for a file this peer owns, grounded on the
// teacher's outboundFileTransfer/inboundFileTransfer split in
// network/file_transfer.go, adapted from a signed/encrypted exchange
// to the plain framed exchange this spec's Non-goals call for.
package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lanshared/lanshared/codec"
	"github.com/lanshared/lanshared/eventbus"
	"github.com/lanshared/lanshared/models"
)

// ChunkSize is the suggested chunk size from spec.md §4.5.
const ChunkSize = 64 * 1024

// ErrHashMismatch indicates a completed download's content hash did
// not match the metadata advertised by the owning peer.
var ErrHashMismatch = errors.New("transfer: content hash mismatch")

// Sender is the subset of *session.Session the transfer engine needs.
// Decoupling from the session package lets tests use an in-memory
// stub instead of a real TCP pipe.
type Sender interface {
	Send(msg codec.Message)
}

// CompletionFunc is called once a download's bytes are fully written
// and hash-verified, so the Server can record localPath on the
// directory model without the transfer engine holding a reference to
// Server state.
type CompletionFunc func(directoryID, fileID uuid.UUID, localPath string)

// Download tracks one inbound, receiver-side chunked transfer.
type Download struct {
	ID            uuid.UUID
	DirectoryID   uuid.UUID
	FileID        uuid.UUID
	Peer          models.PeerId
	FileName      string
	Size          uint64
	ExpectedHash  models.ContentHash
	destPath      string

	mu            sync.Mutex
	file          *os.File
	bytesReceived uint64
	lastProgress  int
	canceled      atomic.Bool
	done          atomic.Bool
}

// upload tracks one outbound, sender-side chunked transfer: this peer
// owns the file and is streaming it to a remote downloader.
type upload struct {
	downloadID uuid.UUID
	peer       models.PeerId
	file       *os.File
	canceled   atomic.Bool
}

// Engine coordinates every active Download and upload.
type Engine struct {
	bus         *eventbus.Bus
	downloadDir string
	onComplete  CompletionFunc

	mu        sync.Mutex
	downloads map[uuid.UUID]*Download
	uploads   map[uuid.UUID]*upload
}

// New creates a transfer Engine. downloadDir is where destination
// files are created; onComplete is invoked after a download's hash
// verifies.
func New(bus *eventbus.Bus, downloadDir string, onComplete CompletionFunc) *Engine {
	return &Engine{
		bus:         bus,
		downloadDir: downloadDir,
		onComplete:  onComplete,
		downloads:   make(map[uuid.UUID]*Download),
		uploads:     make(map[uuid.UUID]*upload),
	}
}

// StartDownload allocates a downloadId, creates the destination file,
// emits DownloadStarted, and sends the initial FileRequest.
func (e *Engine) StartDownload(sender Sender, peer models.PeerId, directoryID, fileID uuid.UUID, fileName string, size uint64, expectedHash models.ContentHash) (uuid.UUID, error) {
	if err := os.MkdirAll(e.downloadDir, 0o700); err != nil {
		return uuid.Nil, fmt.Errorf("transfer: create download dir: %w", err)
	}

	downloadID := uuid.New()
	destPath := filepath.Join(e.downloadDir, uniqueName(e.downloadDir, fileName))

	file, err := os.Create(destPath)
	if err != nil {
		return uuid.Nil, fmt.Errorf("transfer: create destination file: %w", err)
	}

	d := &Download{
		ID:           downloadID,
		DirectoryID:  directoryID,
		FileID:       fileID,
		Peer:         peer,
		FileName:     fileName,
		Size:         size,
		ExpectedHash: expectedHash,
		destPath:     destPath,
		file:         file,
	}

	e.mu.Lock()
	e.downloads[downloadID] = d
	e.mu.Unlock()

	e.bus.PublishDownloadStarted(eventbus.DownloadStartedEvent{DownloadID: downloadID, FileName: fileName, Size: size})

	sender.Send(&codec.FileRequest{DownloadID: downloadID, DirectoryID: directoryID, FileID: fileID, Offset: 0})
	return downloadID, nil
}

// HandleChunk writes an inbound FileChunk to its download's file,
// emitting DownloadUpdate on each integer-percent advance and
// finalizing the download once the last byte arrives. A chunk for an
// unknown or already-canceled download is silently discarded, per
// spec.md §4.5 "a cancellation in flight discards any subsequent
// FileChunk for that downloadId".
func (e *Engine) HandleChunk(chunk *codec.FileChunk) {
	d := e.lookupDownload(chunk.DownloadID)
	if d == nil || d.canceled.Load() || d.done.Load() {
		return
	}

	d.mu.Lock()
	if _, err := d.file.WriteAt(chunk.Bytes, int64(chunk.Offset)); err != nil {
		d.mu.Unlock()
		e.failDownload(d, fmt.Errorf("transfer: write chunk: %w", err))
		return
	}
	d.bytesReceived += uint64(len(chunk.Bytes))
	bytesReceived := d.bytesReceived
	progress := percent(bytesReceived, d.Size)
	advanced := progress > d.lastProgress
	if advanced {
		d.lastProgress = progress
	}
	d.mu.Unlock()

	if advanced && progress < 100 {
		e.bus.PublishDownloadUpdate(eventbus.DownloadUpdateEvent{DownloadID: d.ID, Progress: progress})
	}

	if chunk.IsLast || bytesReceived >= d.Size {
		e.finalizeDownload(d)
	}
}

func (e *Engine) finalizeDownload(d *Download) {
	if !d.done.CompareAndSwap(false, true) {
		return
	}

	d.mu.Lock()
	_ = d.file.Sync()
	_, seekErr := d.file.Seek(0, 0)
	var hash models.ContentHash
	var hashErr error
	if seekErr == nil {
		hash, hashErr = models.HashReader(d.file)
	} else {
		hashErr = seekErr
	}
	_ = d.file.Close()
	d.mu.Unlock()

	if hashErr != nil || !hash.Equal(d.ExpectedHash) {
		_ = os.Remove(d.destPath)
		e.removeDownload(d.ID)
		reason := ErrHashMismatch.Error()
		if hashErr != nil {
			reason = hashErr.Error()
		}
		e.bus.PublishDownloadCanceled(eventbus.DownloadCanceledEvent{DownloadID: d.ID, Reason: reason})
		return
	}

	if e.onComplete != nil {
		e.onComplete(d.DirectoryID, d.FileID, d.destPath)
	}
	e.bus.PublishDownloadUpdate(eventbus.DownloadUpdateEvent{DownloadID: d.ID, Progress: 100})
	e.removeDownload(d.ID)
}

func (e *Engine) failDownload(d *Download, err error) {
	d.mu.Lock()
	_ = d.file.Close()
	d.mu.Unlock()
	_ = os.Remove(d.destPath)
	e.removeDownload(d.ID)
	e.bus.PublishDownloadCanceled(eventbus.DownloadCanceledEvent{DownloadID: d.ID, Reason: err.Error()})
}

// CancelDownload cancels a local download: the writer is closed, the
// partial file removed, and DownloadCanceled is emitted before
// notifying the remote, per spec.md §5 "download cancel is immediate;
// partial data is removed before emitting DownloadCanceled". sender is
// nil when the peer is already gone (PeerGone cancellation), in which
// case no CancelDownload frame is sent.
func (e *Engine) CancelDownload(downloadID uuid.UUID, sender Sender, reason string) bool {
	d := e.lookupDownload(downloadID)
	if d == nil {
		return false
	}
	if !d.canceled.CompareAndSwap(false, true) {
		return false
	}
	if !d.done.CompareAndSwap(false, true) {
		return false
	}

	d.mu.Lock()
	_ = d.file.Close()
	d.mu.Unlock()
	_ = os.Remove(d.destPath)
	e.removeDownload(downloadID)

	e.bus.PublishDownloadCanceled(eventbus.DownloadCanceledEvent{DownloadID: downloadID, Reason: reason})
	if sender != nil {
		sender.Send(&codec.CancelDownload{DownloadID: downloadID})
	}
	return true
}

// CancelDownloadsFromPeer cancels every active download sourced from
// peer, with reason "PeerGone", in response to session teardown.
func (e *Engine) CancelDownloadsFromPeer(peer models.PeerId) {
	e.mu.Lock()
	var ids []uuid.UUID
	for id, d := range e.downloads {
		if d.Peer.Equal(peer) {
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.CancelDownload(id, nil, "PeerGone")
	}
}

// HandleFileRequest begins streaming a locally-owned file's bytes as
// FileChunks in a background goroutine. The caller is responsible for
// having verified the requester is in the directory's sharedPeers.
func (e *Engine) HandleFileRequest(sender Sender, peer models.PeerId, req *codec.FileRequest, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("transfer: open %s: %w", localPath, err)
	}
	if req.Offset > 0 {
		if _, err := file.Seek(int64(req.Offset), 0); err != nil {
			_ = file.Close()
			return fmt.Errorf("transfer: seek %s: %w", localPath, err)
		}
	}

	u := &upload{downloadID: req.DownloadID, peer: peer, file: file}
	e.mu.Lock()
	e.uploads[req.DownloadID] = u
	e.mu.Unlock()

	go e.streamUpload(sender, u, req.Offset)
	return nil
}

func (e *Engine) streamUpload(sender Sender, u *upload, offset uint64) {
	defer func() {
		_ = u.file.Close()
		e.mu.Lock()
		delete(e.uploads, u.downloadID)
		e.mu.Unlock()
	}()

	size := int64(-1)
	if info, err := u.file.Stat(); err == nil {
		size = info.Size()
	}

	buf := make([]byte, ChunkSize)
	for {
		if u.canceled.Load() {
			return
		}
		n, err := u.file.Read(buf)
		if n > 0 {
			chunk := &codec.FileChunk{
				DownloadID: u.downloadID,
				Offset:     offset,
				Bytes:      append([]byte(nil), buf[:n]...),
				IsLast:     err != nil || (size >= 0 && int64(offset)+int64(n) >= size),
			}
			sender.Send(chunk)
			offset += uint64(n)
		}
		if err != nil {
			return
		}
	}
}

// HandleCancelDownloadInbound stops a sender-side upload in response
// to an inbound CancelDownload.
func (e *Engine) HandleCancelDownloadInbound(downloadID uuid.UUID) {
	e.mu.Lock()
	u, ok := e.uploads[downloadID]
	e.mu.Unlock()
	if ok {
		u.canceled.Store(true)
	}
}

// CancelUploadsToPeer stops every outbound upload heading to peer, in
// response to that peer's session tearing down.
func (e *Engine) CancelUploadsToPeer(peer models.PeerId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range e.uploads {
		if u.peer.Equal(peer) {
			u.canceled.Store(true)
		}
	}
}

// PeerFor reports the source peer of an active download, for callers
// that need to resolve a session to cancel it.
func (e *Engine) PeerFor(id uuid.UUID) (models.PeerId, bool) {
	d := e.lookupDownload(id)
	if d == nil {
		return models.PeerId{}, false
	}
	return d.Peer, true
}

func (e *Engine) lookupDownload(id uuid.UUID) *Download {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downloads[id]
}

func (e *Engine) removeDownload(id uuid.UUID) {
	e.mu.Lock()
	delete(e.downloads, id)
	e.mu.Unlock()
}

func percent(got, total uint64) int {
	if total == 0 {
		return 100
	}
	return int(got * 100 / total)
}

// uniqueName returns name, or name with a numeric suffix inserted
// before its extension if a file by that name already exists under
// dir, so concurrent downloads of same-named files never collide.
func uniqueName(dir, name string) string {
	candidate := name
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}
}
