// Package eventbus multiplexes the Server's outbound notifications to
// the shell: one named, buffered channel per event kind, generalized
// from the teacher's per-concern callback/channel hybrids
// (PeerManager.Errors, PendingAddRequests, OnFileProgress) into a
// single Bus carrying typed payloads.
package eventbus

import (
	"github.com/google/uuid"

	"github.com/lanshared/lanshared/models"
)

// channelCapacity bounds every named stream. Overflow drops the
// oldest queued event for that stream rather than blocking the
// Server's commit loop, per spec.md §9.
const channelCapacity = 64

// NewShareDirectoryEvent announces a directory the Server just learned
// about, either created locally or received from a peer for the first
// time.
type NewShareDirectoryEvent struct {
	Directory *models.ShareDirectory
}

// UpdateShareDirectoriesEvent carries a full snapshot of all known
// directories, in response to get_all_share_directory_data or any
// structural change (create, leave).
type UpdateShareDirectoriesEvent struct {
	Directories []*models.ShareDirectory
}

// UpdateDirectoryEvent carries one directory's latest state after a
// mutation that isn't a brand-new directory or a full-table refresh.
type UpdateDirectoryEvent struct {
	Directory *models.ShareDirectory
}

// AddedFilesEvent reports files the local peer just added.
type AddedFilesEvent struct {
	DirectoryID uuid.UUID
	Files       []models.SharedFile
}

// GetPeersEvent answers get_peers with the current discovery table.
type GetPeersEvent struct {
	Peers []models.DiscoveredPeer
}

// DownloadStartedEvent reports a newly allocated download.
type DownloadStartedEvent struct {
	DownloadID uuid.UUID
	FileName   string
	Size       uint64
}

// DownloadUpdateEvent reports progress for an active download.
type DownloadUpdateEvent struct {
	DownloadID uuid.UUID
	Progress   int
}

// DownloadCanceledEvent reports a download's terminal cancellation,
// whether user-requested, peer-gone, or hash-mismatch.
type DownloadCanceledEvent struct {
	DownloadID uuid.UUID
	Reason     string
}

// ErrorEvent is the only channel that carries a textual error; every
// other subsystem error stays a typed Go error internally.
type ErrorEvent struct {
	Title string
	Error string
}

// Bus owns one buffered channel per named event stream.
type Bus struct {
	newShareDirectory      chan NewShareDirectoryEvent
	updateShareDirectories chan UpdateShareDirectoriesEvent
	updateDirectory        chan UpdateDirectoryEvent
	addedFiles             chan AddedFilesEvent
	getPeers               chan GetPeersEvent
	downloadStarted        chan DownloadStartedEvent
	downloadUpdate         chan DownloadUpdateEvent
	downloadCanceled       chan DownloadCanceledEvent
	errors                 chan ErrorEvent
}

// New creates a Bus with every stream buffered to channelCapacity.
func New() *Bus {
	return &Bus{
		newShareDirectory:      make(chan NewShareDirectoryEvent, channelCapacity),
		updateShareDirectories: make(chan UpdateShareDirectoriesEvent, channelCapacity),
		updateDirectory:        make(chan UpdateDirectoryEvent, channelCapacity),
		addedFiles:             make(chan AddedFilesEvent, channelCapacity),
		getPeers:               make(chan GetPeersEvent, channelCapacity),
		downloadStarted:        make(chan DownloadStartedEvent, channelCapacity),
		downloadUpdate:         make(chan DownloadUpdateEvent, channelCapacity),
		downloadCanceled:       make(chan DownloadCanceledEvent, channelCapacity),
		errors:                 make(chan ErrorEvent, channelCapacity),
	}
}

// NewShareDirectory returns the receive side of the NewShareDirectory stream.
func (b *Bus) NewShareDirectory() <-chan NewShareDirectoryEvent { return b.newShareDirectory }

// UpdateShareDirectories returns the receive side of the UpdateShareDirectories stream.
func (b *Bus) UpdateShareDirectories() <-chan UpdateShareDirectoriesEvent {
	return b.updateShareDirectories
}

// UpdateDirectory returns the receive side of the UpdateDirectory stream.
func (b *Bus) UpdateDirectory() <-chan UpdateDirectoryEvent { return b.updateDirectory }

// AddedFiles returns the receive side of the AddedFiles stream.
func (b *Bus) AddedFiles() <-chan AddedFilesEvent { return b.addedFiles }

// GetPeers returns the receive side of the GetPeers stream.
func (b *Bus) GetPeers() <-chan GetPeersEvent { return b.getPeers }

// DownloadStarted returns the receive side of the DownloadStarted stream.
func (b *Bus) DownloadStarted() <-chan DownloadStartedEvent { return b.downloadStarted }

// DownloadUpdate returns the receive side of the DownloadUpdate stream.
func (b *Bus) DownloadUpdate() <-chan DownloadUpdateEvent { return b.downloadUpdate }

// DownloadCanceled returns the receive side of the DownloadCanceled stream.
func (b *Bus) DownloadCanceled() <-chan DownloadCanceledEvent { return b.downloadCanceled }

// Errors returns the receive side of the Error stream.
func (b *Bus) Errors() <-chan ErrorEvent { return b.errors }

func (b *Bus) PublishNewShareDirectory(ev NewShareDirectoryEvent) {
	publish(b.newShareDirectory, ev)
}

func (b *Bus) PublishUpdateShareDirectories(ev UpdateShareDirectoriesEvent) {
	publish(b.updateShareDirectories, ev)
}

func (b *Bus) PublishUpdateDirectory(ev UpdateDirectoryEvent) {
	publish(b.updateDirectory, ev)
}

func (b *Bus) PublishAddedFiles(ev AddedFilesEvent) {
	publish(b.addedFiles, ev)
}

func (b *Bus) PublishGetPeers(ev GetPeersEvent) {
	publish(b.getPeers, ev)
}

func (b *Bus) PublishDownloadStarted(ev DownloadStartedEvent) {
	publish(b.downloadStarted, ev)
}

func (b *Bus) PublishDownloadUpdate(ev DownloadUpdateEvent) {
	publish(b.downloadUpdate, ev)
}

func (b *Bus) PublishDownloadCanceled(ev DownloadCanceledEvent) {
	publish(b.downloadCanceled, ev)
}

func (b *Bus) PublishError(ev ErrorEvent) {
	publish(b.errors, ev)
}

// publish delivers ev, dropping the oldest queued event on that
// stream if the buffer is full rather than blocking the Server.
func publish[T any](ch chan T, ev T) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
