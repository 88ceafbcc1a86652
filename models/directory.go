package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrFileAlreadyAdded is returned when a file identifier is already
	// present in the directory.
	ErrFileAlreadyAdded = errors.New("models: file has already been added")
	// ErrFileContentAlreadyAdded is returned when a file with the same
	// content hash is already present, regardless of identifier.
	ErrFileContentAlreadyAdded = errors.New("models: file with identical content has already been added")
)

// ShareDirectorySignature is the lightweight, frequently-broadcast
// summary of a ShareDirectory: enough to decide whether a peer's copy is
// stale without shipping the full file list.
type ShareDirectorySignature struct {
	Name              string    `json:"name"`
	Identifier        uuid.UUID `json:"identifier"`
	LastTransactionID uuid.UUID `json:"lastTransactionId"`
	LastModified      time.Time `json:"lastModified"`
	SharedPeers       []PeerId  `json:"sharedPeers"`
}

func (s ShareDirectorySignature) Clone() ShareDirectorySignature {
	peers := make([]PeerId, len(s.SharedPeers))
	copy(peers, s.SharedPeers)
	s.SharedPeers = peers
	return s
}

// SharedFile is one entry owned by at least one peer in a directory.
type SharedFile struct {
	Name         string      `json:"name"`
	Identifier   uuid.UUID   `json:"identifier"`
	ContentHash  ContentHash `json:"contentHash"`
	LastModified time.Time   `json:"lastModified"`
	LocalPath    string      `json:"localPath,omitempty"`
	OwnedPeers   []PeerId    `json:"ownedPeers"`
	Size         uint64      `json:"size"`
}

// HasLocalCopy reports whether this daemon holds file bytes on disk.
func (f SharedFile) HasLocalCopy() bool { return f.LocalPath != "" }

func (f SharedFile) Clone() SharedFile {
	peers := make([]PeerId, len(f.OwnedPeers))
	copy(peers, f.OwnedPeers)
	f.OwnedPeers = peers
	return f
}

// ShareDirectory is the replicated unit of sharing: a named collection
// of files, visible to exactly signature.SharedPeers.
type ShareDirectory struct {
	Signature   ShareDirectorySignature  `json:"signature"`
	SharedFiles map[uuid.UUID]SharedFile `json:"sharedFiles"`
}

// NewShareDirectory creates a fresh, locally-owned directory containing
// only the creator.
func NewShareDirectory(name string, self PeerId, now time.Time) *ShareDirectory {
	return &ShareDirectory{
		Signature: ShareDirectorySignature{
			Name:              name,
			Identifier:        uuid.New(),
			LastTransactionID: uuid.New(),
			LastModified:      now,
			SharedPeers:       []PeerId{self},
		},
		SharedFiles: make(map[uuid.UUID]SharedFile),
	}
}

// DirectoryUpdate is the local, type-safe counterpart of a
// codec.DirectoryUpdate frame: a set-union mutation originating from
// sender, to be folded into a ShareDirectory by ApplyUpdate. Both a
// locally-originated transaction and an inbound wire message produce
// one of these, so the merge rules in §4.2 run through a single path.
type DirectoryUpdate struct {
	Sender         PeerId
	AddedFiles     []SharedFile
	RemovedFileIDs []uuid.UUID
	SharedPeers    []PeerId
	TransactionID  uuid.UUID
}

// ApplyUpdate folds update into d using the set-union merge rules:
// added file ids not present locally are inserted; existing file ids
// receive a union of ownedPeers; removed file ids drop sender from
// ownedPeers (a no-op if sender was never an owner), deleting the file
// once ownedPeers empties; sharedPeers is unioned. Reapplying a
// TransactionID already recorded as lastTransactionId is a no-op,
// which is what makes the merge idempotent. A file removed by one
// sender while another sender adds itself as an owner survives in
// either order, with the adding sender among its owners;
// lastTransactionId ends up as the TransactionID of whichever update
// is applied last.
func (d *ShareDirectory) ApplyUpdate(update DirectoryUpdate, now time.Time) bool {
	if update.TransactionID != uuid.Nil && update.TransactionID == d.Signature.LastTransactionID {
		return false
	}

	for _, f := range update.AddedFiles {
		existing, ok := d.SharedFiles[f.Identifier]
		if !ok {
			d.SharedFiles[f.Identifier] = f.Clone()
			continue
		}
		existing.OwnedPeers = unionPeers(existing.OwnedPeers, f.OwnedPeers)
		if existing.LocalPath == "" && f.LocalPath != "" {
			existing.LocalPath = f.LocalPath
		}
		d.SharedFiles[f.Identifier] = existing
	}

	for _, id := range update.RemovedFileIDs {
		file, ok := d.SharedFiles[id]
		if !ok {
			continue
		}
		file.OwnedPeers = removePeer(file.OwnedPeers, update.Sender)
		if len(file.OwnedPeers) == 0 {
			delete(d.SharedFiles, id)
			continue
		}
		d.SharedFiles[id] = file
	}

	d.Signature.SharedPeers = unionPeers(d.Signature.SharedPeers, update.SharedPeers)
	if update.TransactionID != uuid.Nil {
		d.Signature.LastTransactionID = update.TransactionID
	}
	d.Signature.LastModified = now
	return true
}

// AddFiles constructs and applies the local transaction for adding
// files owned by self.
func (d *ShareDirectory) AddFiles(self PeerId, files []SharedFile, now time.Time) (DirectoryUpdate, error) {
	for _, f := range files {
		if _, exists := d.SharedFiles[f.Identifier]; exists {
			return DirectoryUpdate{}, ErrFileAlreadyAdded
		}
		for _, existing := range d.SharedFiles {
			if existing.ContentHash.Equal(f.ContentHash) {
				return DirectoryUpdate{}, ErrFileContentAlreadyAdded
			}
		}
	}

	owned := make([]SharedFile, len(files))
	for i, f := range files {
		f.OwnedPeers = unionPeers(f.OwnedPeers, []PeerId{self})
		owned[i] = f
	}

	update := DirectoryUpdate{
		Sender:        self,
		AddedFiles:    owned,
		TransactionID: uuid.New(),
	}
	d.ApplyUpdate(update, now)
	return update, nil
}

// RemoveFiles constructs and applies the local transaction for owner
// dropping ownership of fileIDs.
func (d *ShareDirectory) RemoveFiles(owner PeerId, fileIDs []uuid.UUID, now time.Time) DirectoryUpdate {
	update := DirectoryUpdate{
		Sender:         owner,
		RemovedFileIDs: fileIDs,
		TransactionID:  uuid.New(),
	}
	d.ApplyUpdate(update, now)
	return update
}

// AddPeers constructs and applies the local transaction for extending
// sharedPeers, used by share_directory_to_peers.
func (d *ShareDirectory) AddPeers(self PeerId, peers []PeerId, now time.Time) DirectoryUpdate {
	update := DirectoryUpdate{
		Sender:        self,
		SharedPeers:   peers,
		TransactionID: uuid.New(),
	}
	d.ApplyUpdate(update, now)
	return update
}

// SetLocalPath records that file's bytes are fully received and
// verified on this peer, without minting a new transaction: localPath
// is purely local state, never broadcast.
func (d *ShareDirectory) SetLocalPath(fileID uuid.UUID, path string) {
	file, ok := d.SharedFiles[fileID]
	if !ok {
		return
	}
	file.LocalPath = path
	d.SharedFiles[fileID] = file
}

// RemovePeer drops peer from sharedPeers and from every file's
// ownedPeers, cascading full removal of files left ownerless, in
// response to an inbound LeaveDirectory. The local peer is never
// removed by this path.
func (d *ShareDirectory) RemovePeer(peer PeerId, now time.Time) {
	d.Signature.SharedPeers = removePeer(d.Signature.SharedPeers, peer)
	for id, file := range d.SharedFiles {
		file.OwnedPeers = removePeer(file.OwnedPeers, peer)
		if len(file.OwnedPeers) == 0 {
			delete(d.SharedFiles, id)
			continue
		}
		d.SharedFiles[id] = file
	}
	d.Signature.LastModified = now
}

// Clone deep-copies the directory for safe handoff across goroutines.
func (d *ShareDirectory) Clone() *ShareDirectory {
	files := make(map[uuid.UUID]SharedFile, len(d.SharedFiles))
	for id, f := range d.SharedFiles {
		files[id] = f.Clone()
	}
	return &ShareDirectory{Signature: d.Signature.Clone(), SharedFiles: files}
}
