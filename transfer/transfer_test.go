package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lanshared/lanshared/codec"
	"github.com/lanshared/lanshared/eventbus"
	"github.com/lanshared/lanshared/models"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []codec.Message
}

func (s *recordingSender) Send(msg codec.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSender) Messages() []codec.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]codec.Message(nil), s.messages...)
}

func TestStartDownloadEmitsStartedAndFileRequest(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	engine := New(bus, dir, nil)
	sender := &recordingSender{}

	content := []byte("hello world")
	hash := hashBytes(t, content)

	downloadID, err := engine.StartDownload(sender, models.NewPeerId("bob"), uuid.New(), uuid.New(), "greeting.txt", uint64(len(content)), hash)
	if err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}

	select {
	case ev := <-bus.DownloadStarted():
		if ev.DownloadID != downloadID {
			t.Fatalf("unexpected download id in event")
		}
	default:
		t.Fatalf("expected DownloadStarted event")
	}

	msgs := sender.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(msgs))
	}
	req, ok := msgs[0].(*codec.FileRequest)
	if !ok || req.DownloadID != downloadID {
		t.Fatalf("expected FileRequest for download %s, got %#v", downloadID, msgs[0])
	}
}

func TestHandleChunkCompletesAndVerifiesHash(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()

	var completedPath string
	engine := New(bus, dir, func(directoryID, fileID uuid.UUID, localPath string) {
		completedPath = localPath
	})
	sender := &recordingSender{}

	content := []byte("the quick brown fox jumps over the lazy dog")
	hash := hashBytes(t, content)

	downloadID, err := engine.StartDownload(sender, models.NewPeerId("bob"), uuid.New(), uuid.New(), "fox.txt", uint64(len(content)), hash)
	if err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}

	engine.HandleChunk(&codec.FileChunk{DownloadID: downloadID, Offset: 0, Bytes: content, IsLast: true})

	deadline := time.Now().Add(time.Second)
	for completedPath == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if completedPath == "" {
		t.Fatalf("expected onComplete to be called")
	}

	got, err := os.ReadFile(completedPath)
	if err != nil {
		t.Fatalf("read completed file: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("unexpected file contents: %q", got)
	}
}

func TestHandleChunkRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	engine := New(bus, dir, nil)
	sender := &recordingSender{}

	content := []byte("expected content")
	wrongHash := hashBytes(t, []byte("different content"))

	downloadID, err := engine.StartDownload(sender, models.NewPeerId("bob"), uuid.New(), uuid.New(), "mismatch.txt", uint64(len(content)), wrongHash)
	if err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}

	engine.HandleChunk(&codec.FileChunk{DownloadID: downloadID, Offset: 0, Bytes: content, IsLast: true})

	select {
	case ev := <-bus.DownloadCanceled():
		if ev.DownloadID != downloadID {
			t.Fatalf("unexpected download id")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected DownloadCanceled on hash mismatch")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() == "mismatch.txt" {
			t.Fatalf("expected partial file to be removed")
		}
	}
}

func TestCancelDownloadRemovesPartialFileAndNotifiesPeer(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	engine := New(bus, dir, nil)
	sender := &recordingSender{}

	downloadID, err := engine.StartDownload(sender, models.NewPeerId("bob"), uuid.New(), uuid.New(), "big.bin", 1<<20, models.ContentHash{})
	if err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}

	if !engine.CancelDownload(downloadID, sender, "user requested") {
		t.Fatalf("expected CancelDownload to succeed")
	}

	select {
	case ev := <-bus.DownloadCanceled():
		if ev.DownloadID != downloadID {
			t.Fatalf("unexpected download id")
		}
	default:
		t.Fatalf("expected DownloadCanceled event")
	}

	found := false
	for _, msg := range sender.Messages() {
		if _, ok := msg.(*codec.CancelDownload); ok {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a CancelDownload frame to be sent to the peer")
	}

	// A chunk arriving after cancel must be discarded, not reopen the file.
	engine.HandleChunk(&codec.FileChunk{DownloadID: downloadID, Offset: 0, Bytes: []byte("late"), IsLast: false})
	if _, err := os.Stat(filepath.Join(dir, "big.bin")); !os.IsNotExist(err) {
		t.Fatalf("expected the partial file to stay removed after a late chunk, stat err: %v", err)
	}
	select {
	case ev := <-bus.DownloadCanceled():
		t.Fatalf("expected exactly one DownloadCanceled, got another for %v", ev.DownloadID)
	default:
	}
}

func TestHandleFileRequestStreamsChunks(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	engine := New(bus, dir, nil)
	sender := &recordingSender{}

	content := make([]byte, ChunkSize+100)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(dir, "source.bin")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	req := &codec.FileRequest{DownloadID: uuid.New(), Offset: 0}
	if err := engine.HandleFileRequest(sender, models.NewPeerId("bob"), req, path); err != nil {
		t.Fatalf("HandleFileRequest failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(sender.Messages()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	msgs := sender.Messages()
	if len(msgs) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(msgs))
	}
	last := msgs[len(msgs)-1].(*codec.FileChunk)
	if !last.IsLast {
		t.Fatalf("expected final chunk to be marked IsLast")
	}
}

func TestCancelDownloadsFromPeerOnlyTouchesThatPeersDownloads(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	engine := New(bus, dir, nil)
	sender := &recordingSender{}

	bob := models.NewPeerId("bob")
	carol := models.NewPeerId("carol")

	fromBob, err := engine.StartDownload(sender, bob, uuid.New(), uuid.New(), "bob.bin", 1<<20, models.ContentHash{})
	if err != nil {
		t.Fatalf("StartDownload (bob) failed: %v", err)
	}
	fromCarol, err := engine.StartDownload(sender, carol, uuid.New(), uuid.New(), "carol.bin", 1<<20, models.ContentHash{})
	if err != nil {
		t.Fatalf("StartDownload (carol) failed: %v", err)
	}
	<-bus.DownloadStarted()
	<-bus.DownloadStarted()

	// Simulates onSessionClosed: bob's session drops mid-transfer, so
	// every download sourced from bob is canceled with reason PeerGone
	// while carol's download is left untouched.
	engine.CancelDownloadsFromPeer(bob)

	select {
	case ev := <-bus.DownloadCanceled():
		if ev.DownloadID != fromBob {
			t.Fatalf("expected bob's download to be canceled, got %v", ev.DownloadID)
		}
		if ev.Reason != "PeerGone" {
			t.Fatalf("expected reason PeerGone, got %q", ev.Reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a DownloadCanceled event for bob's download")
	}

	select {
	case ev := <-bus.DownloadCanceled():
		t.Fatalf("did not expect carol's download to be canceled, got %v", ev.DownloadID)
	default:
	}

	if !engine.CancelDownload(fromCarol, sender, "user requested") {
		t.Fatalf("expected carol's download to still be active")
	}
}

func hashBytes(t *testing.T, b []byte) models.ContentHash {
	t.Helper()
	hash, err := models.HashReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("hash bytes: %v", err)
	}
	return hash
}
