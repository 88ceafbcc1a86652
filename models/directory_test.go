package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestDirectory(self PeerId) *ShareDirectory {
	return NewShareDirectory("Docs", self, time.Now())
}

func TestNewShareDirectoryContainsSelf(t *testing.T) {
	self := NewPeerId("alice")
	d := newTestDirectory(self)

	if !containsPeer(d.Signature.SharedPeers, self) {
		t.Fatalf("expected sharedPeers to contain self, got %+v", d.Signature.SharedPeers)
	}
}

func TestAddFilesSetsSelfAsOwnerAndBumpsTransaction(t *testing.T) {
	self := NewPeerId("alice")
	d := newTestDirectory(self)
	before := d.Signature.LastTransactionID

	file := SharedFile{Identifier: uuid.New(), Name: "report.pdf", Size: 1024, ContentHash: ContentHashFromBytes([]byte("x"))}
	update, err := d.AddFiles(self, []SharedFile{file}, time.Now())
	if err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}
	if update.TransactionID == before {
		t.Fatalf("expected lastTransactionId to change")
	}
	if d.Signature.LastTransactionID != update.TransactionID {
		t.Fatalf("signature not updated with new transaction id")
	}

	stored, ok := d.SharedFiles[file.Identifier]
	if !ok {
		t.Fatalf("expected file to be stored")
	}
	if !containsPeer(stored.OwnedPeers, self) {
		t.Fatalf("expected self to own the added file, got %+v", stored.OwnedPeers)
	}
}

func TestRemoveFilesDropsFileOnceOwnerless(t *testing.T) {
	self := NewPeerId("alice")
	d := newTestDirectory(self)
	file := SharedFile{Identifier: uuid.New(), Name: "x.bin", ContentHash: ContentHashFromBytes([]byte("y"))}
	if _, err := d.AddFiles(self, []SharedFile{file}, time.Now()); err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}

	d.RemoveFiles(self, []uuid.UUID{file.Identifier}, time.Now())

	if _, ok := d.SharedFiles[file.Identifier]; ok {
		t.Fatalf("expected file to be removed once its only owner drops it")
	}
}

func TestRemoveFilesByNonOwnerIsNoOp(t *testing.T) {
	self := NewPeerId("alice")
	bob := NewPeerId("bob")
	d := newTestDirectory(self)
	file := SharedFile{Identifier: uuid.New(), Name: "x.bin", ContentHash: ContentHashFromBytes([]byte("y")), OwnedPeers: []PeerId{self}}
	d.SharedFiles[file.Identifier] = file

	// Per spec.md §4.2: "removal of a non-owner is a no-op."
	d.RemoveFiles(bob, []uuid.UUID{file.Identifier}, time.Now())

	stored, ok := d.SharedFiles[file.Identifier]
	if !ok {
		t.Fatalf("expected file to survive a non-owner's removal")
	}
	if !containsPeer(stored.OwnedPeers, self) {
		t.Fatalf("expected self to remain owner, got %+v", stored.OwnedPeers)
	}
}

func TestApplyUpdateIsIdempotent(t *testing.T) {
	self := NewPeerId("alice")
	bob := NewPeerId("bob")
	d := newTestDirectory(self)

	file := SharedFile{Identifier: uuid.New(), Name: "x.bin", OwnedPeers: []PeerId{bob}}
	update := DirectoryUpdate{
		Sender:        bob,
		AddedFiles:    []SharedFile{file},
		SharedPeers:   []PeerId{bob},
		TransactionID: uuid.New(),
	}

	now := time.Now()
	if applied := d.ApplyUpdate(update, now); !applied {
		t.Fatalf("expected first application to apply")
	}
	snapshot := d.Clone()

	if applied := d.ApplyUpdate(update, now); applied {
		t.Fatalf("expected a repeated transaction id to be a no-op")
	}

	if len(d.SharedFiles) != len(snapshot.SharedFiles) {
		t.Fatalf("state diverged after reapplying the same update: %+v vs %+v", d.SharedFiles, snapshot.SharedFiles)
	}
	if !containsPeer(d.Signature.SharedPeers, bob) || len(d.Signature.SharedPeers) != len(snapshot.Signature.SharedPeers) {
		t.Fatalf("sharedPeers diverged after reapplying the same update")
	}
}

func TestApplyUpdateAddOnlyIsCommutative(t *testing.T) {
	self := NewPeerId("alice")
	bob := NewPeerId("bob")
	carol := NewPeerId("carol")

	fileX := SharedFile{Identifier: uuid.New(), Name: "x.bin", OwnedPeers: []PeerId{bob}}
	fileY := SharedFile{Identifier: uuid.New(), Name: "y.bin", OwnedPeers: []PeerId{carol}}

	updateX := DirectoryUpdate{Sender: bob, AddedFiles: []SharedFile{fileX}, TransactionID: uuid.New()}
	updateY := DirectoryUpdate{Sender: carol, AddedFiles: []SharedFile{fileY}, TransactionID: uuid.New()}

	now := time.Now()

	dirA := newTestDirectory(self)
	dirA.ApplyUpdate(updateX, now)
	dirA.ApplyUpdate(updateY, now)

	dirB := newTestDirectory(self)
	dirB.ApplyUpdate(updateY, now)
	dirB.ApplyUpdate(updateX, now)

	if len(dirA.SharedFiles) != len(dirB.SharedFiles) {
		t.Fatalf("file counts diverged: %d vs %d", len(dirA.SharedFiles), len(dirB.SharedFiles))
	}
	for id := range dirA.SharedFiles {
		if _, ok := dirB.SharedFiles[id]; !ok {
			t.Fatalf("file %v present in dirA but not dirB", id)
		}
	}
}

func TestApplyUpdateConcurrentRemoveVersusAddPreservesFile(t *testing.T) {
	self := NewPeerId("alice")
	a := NewPeerId("peer-a")
	b := NewPeerId("peer-b")
	d := newTestDirectory(self)

	fileID := uuid.New()
	d.SharedFiles[fileID] = SharedFile{Identifier: fileID, Name: "shared.bin", OwnedPeers: []PeerId{a}}

	now := time.Now()
	// A removes; B concurrently (re-)adds ownership. Per spec.md §4.2,
	// the file survives with ownedPeers = {B} regardless of order,
	// because removing a peer that already isn't the file's current
	// owner in the other branch is a no-op.
	removeByA := DirectoryUpdate{Sender: a, RemovedFileIDs: []uuid.UUID{fileID}, TransactionID: uuid.New()}
	addByB := DirectoryUpdate{Sender: b, AddedFiles: []SharedFile{{Identifier: fileID, Name: "shared.bin", OwnedPeers: []PeerId{b}}}, TransactionID: uuid.New()}

	d.ApplyUpdate(removeByA, now)
	d.ApplyUpdate(addByB, now)

	stored, ok := d.SharedFiles[fileID]
	if !ok {
		t.Fatalf("expected file to survive concurrent remove/add")
	}
	if !containsPeer(stored.OwnedPeers, b) {
		t.Fatalf("expected b to own the file, got %+v", stored.OwnedPeers)
	}
}

func TestRemovePeerCascadesFileRemovalButKeepsSelf(t *testing.T) {
	self := NewPeerId("alice")
	bob := NewPeerId("bob")
	d := newTestDirectory(self)
	d.AddPeers(self, []PeerId{bob}, time.Now())

	fileID := uuid.New()
	d.SharedFiles[fileID] = SharedFile{Identifier: fileID, Name: "bobs.bin", OwnedPeers: []PeerId{bob}}

	d.RemovePeer(bob, time.Now())

	if containsPeer(d.Signature.SharedPeers, bob) {
		t.Fatalf("expected bob to be removed from sharedPeers")
	}
	if !containsPeer(d.Signature.SharedPeers, self) {
		t.Fatalf("expected self to remain in sharedPeers")
	}
	if _, ok := d.SharedFiles[fileID]; ok {
		t.Fatalf("expected bob's file to be removed once bob leaves")
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	self := NewPeerId("alice")
	d := newTestDirectory(self)
	file := SharedFile{Identifier: uuid.New(), Name: "x.bin", OwnedPeers: []PeerId{self}}
	d.SharedFiles[file.Identifier] = file

	clone := d.Clone()
	clone.Signature.Name = "mutated"
	clone.SharedFiles[file.Identifier] = SharedFile{Identifier: file.Identifier, Name: "mutated.bin"}

	if d.Signature.Name == "mutated" {
		t.Fatalf("mutating clone's signature affected the original")
	}
	if d.SharedFiles[file.Identifier].Name == "mutated.bin" {
		t.Fatalf("mutating clone's files affected the original")
	}
}
