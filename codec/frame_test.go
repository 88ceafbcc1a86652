package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lanshared/lanshared/models"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello, frame")

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	// Every produced frame satisfies length == len(body): the header
	// counts only the payload, not itself.
	if buf.Len() != 4+len(payload) {
		t.Fatalf("expected frame of %d bytes, got %d", 4+len(payload), buf.Len())
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected ReadFrame to consume exactly 4+length bytes, %d remain", buf.Len())
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 4)
	header[0] = 0xFF // a length far beyond MaxFrameSize
	buf.Write(header)

	if _, err := ReadFrame(&buf); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	oversized := make([]byte, MaxFrameSize+1)
	if err := WriteFrame(&bytes.Buffer{}, oversized); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameHandlesEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %q", got)
	}
}

func TestDecodeUnknownMessageKindFails(t *testing.T) {
	_, err := Decode([]byte{0xEE})
	if err != ErrUnknownMessageKind {
		t.Fatalf("expected ErrUnknownMessageKind, got %v", err)
	}
}

func TestEncodeDecodeHandshakeRoundTrips(t *testing.T) {
	peer := models.NewPeerId("alice")
	msg := &Handshake{PeerID: peer}

	decoded, err := Decode(Encode(msg))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := decoded.(*Handshake)
	if !ok {
		t.Fatalf("expected *Handshake, got %T", decoded)
	}
	if !got.PeerID.Equal(peer) || got.PeerID.Hostname != peer.Hostname {
		t.Fatalf("expected %+v, got %+v", peer, got.PeerID)
	}
}

func TestEncodeDecodeDirectoryUpdateRoundTrips(t *testing.T) {
	self := models.NewPeerId("alice")
	file := models.SharedFile{
		Identifier:   uuid.New(),
		Name:         "report.pdf",
		ContentHash:  models.ContentHashFromBytes([]byte("deadbeef")),
		Size:         1048576,
		LastModified: time.Now().UTC().Truncate(time.Second),
		OwnedPeers:   []models.PeerId{self},
	}
	removed := uuid.New()
	msg := &DirectoryUpdate{
		Signature: models.ShareDirectorySignature{
			Identifier:        uuid.New(),
			Name:              "Docs",
			LastTransactionID: uuid.New(),
			SharedPeers:       []models.PeerId{self},
		},
		AddedFiles:     []models.SharedFile{file},
		RemovedFileIDs: []uuid.UUID{removed},
	}

	decoded, err := Decode(Encode(msg))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := decoded.(*DirectoryUpdate)
	if !ok {
		t.Fatalf("expected *DirectoryUpdate, got %T", decoded)
	}
	if got.Signature.Identifier != msg.Signature.Identifier {
		t.Fatalf("signature identifier mismatch: got %v want %v", got.Signature.Identifier, msg.Signature.Identifier)
	}
	if len(got.AddedFiles) != 1 || got.AddedFiles[0].Identifier != file.Identifier {
		t.Fatalf("unexpected added files: %+v", got.AddedFiles)
	}
	if !got.AddedFiles[0].ContentHash.Equal(file.ContentHash) {
		t.Fatalf("content hash mismatch: got %v want %v", got.AddedFiles[0].ContentHash, file.ContentHash)
	}
	if len(got.RemovedFileIDs) != 1 || got.RemovedFileIDs[0] != removed {
		t.Fatalf("unexpected removed ids: %+v", got.RemovedFileIDs)
	}
}

func TestEncodeDecodeFileChunkPreservesBytesAndFlags(t *testing.T) {
	msg := &FileChunk{
		DownloadID: uuid.New(),
		Offset:     65536,
		Bytes:      bytes.Repeat([]byte{0xAB}, 128),
		IsLast:     true,
	}

	decoded, err := Decode(Encode(msg))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := decoded.(*FileChunk)
	if !ok {
		t.Fatalf("expected *FileChunk, got %T", decoded)
	}
	if got.DownloadID != msg.DownloadID || got.Offset != msg.Offset || !got.IsLast {
		t.Fatalf("unexpected fields: %+v", got)
	}
	if !bytes.Equal(got.Bytes, msg.Bytes) {
		t.Fatalf("chunk bytes mismatch")
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	// A bare varint field number far beyond anything LeaveDirectory
	// recognizes, followed by the field it does: unknown fields must
	// be skipped rather than aborting the decode.
	body := appendVarintField(nil, 99, 7)
	id := uuid.New()
	idBytes, _ := id.MarshalBinary()
	body = appendBytesField(body, fieldLeaveDirectoryID, idBytes)

	var m LeaveDirectory
	if err := m.unmarshal(body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m.DirectoryID != id {
		t.Fatalf("expected %v, got %v", id, m.DirectoryID)
	}
}
