package codec

import (
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lanshared/lanshared/models"
)

// Field numbers are stable once a message kind ships; a reader simply
// skips numbers it doesn't recognize (each unmarshal hands them to
// skipField).
const (
	fieldPeerUUID     protowire.Number = 1
	fieldPeerHostname protowire.Number = 2

	fieldSigIdentifier   protowire.Number = 1
	fieldSigName         protowire.Number = 2
	fieldSigLastTxID     protowire.Number = 3
	fieldSigLastModified protowire.Number = 4
	fieldSigSharedPeers  protowire.Number = 5

	fieldFileIdentifier   protowire.Number = 1
	fieldFileName         protowire.Number = 2
	fieldFileContentHash  protowire.Number = 3
	fieldFileLastModified protowire.Number = 4
	fieldFileSize         protowire.Number = 5
	fieldFileOwnedPeers   protowire.Number = 6

	fieldHandshakePeer protowire.Number = 1

	fieldDirsSignatures protowire.Number = 1

	fieldShareDirSignature protowire.Number = 1
	fieldShareDirFiles     protowire.Number = 2

	fieldUpdateSignature   protowire.Number = 1
	fieldUpdateAddedFiles  protowire.Number = 2
	fieldUpdateRemovedIDs  protowire.Number = 3

	fieldFileReqDownloadID  protowire.Number = 1
	fieldFileReqDirectoryID protowire.Number = 2
	fieldFileReqFileID      protowire.Number = 3
	fieldFileReqOffset      protowire.Number = 4

	fieldChunkDownloadID protowire.Number = 1
	fieldChunkOffset     protowire.Number = 2
	fieldChunkBytes      protowire.Number = 3
	fieldChunkIsLast     protowire.Number = 4

	fieldCancelDownloadID protowire.Number = 1

	fieldLeaveDirectoryID protowire.Number = 1

	fieldErrorCode    protowire.Number = 1
	fieldErrorMessage protowire.Number = 2
)

// --- PeerId ---

func marshalPeerId(p models.PeerId) []byte {
	var b []byte
	uuidBytes, _ := p.UUID.MarshalBinary()
	b = appendBytesField(b, fieldPeerUUID, uuidBytes)
	b = appendStringField(b, fieldPeerHostname, p.Hostname)
	return b
}

func unmarshalPeerId(body []byte) (models.PeerId, error) {
	var out models.PeerId
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldPeerUUID:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed peer uuid")
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return n, fmt.Errorf("codec: parse peer uuid: %w", err)
			}
			out.UUID = id
			return n, nil
		case fieldPeerHostname:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed peer hostname")
			}
			out.Hostname = string(raw)
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	return out, err
}

// --- ShareDirectorySignature ---

func marshalSignature(s models.ShareDirectorySignature) []byte {
	var b []byte
	idBytes, _ := s.Identifier.MarshalBinary()
	b = appendBytesField(b, fieldSigIdentifier, idBytes)
	b = appendStringField(b, fieldSigName, s.Name)
	txBytes, _ := s.LastTransactionID.MarshalBinary()
	b = appendBytesField(b, fieldSigLastTxID, txBytes)
	b = appendTimeField(b, fieldSigLastModified, s.LastModified)
	for _, peer := range s.SharedPeers {
		b = appendMessageField(b, fieldSigSharedPeers, marshalPeerId(peer))
	}
	return b
}

func unmarshalSignature(body []byte) (models.ShareDirectorySignature, error) {
	var out models.ShareDirectorySignature
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSigIdentifier:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed signature identifier")
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return n, err
			}
			out.Identifier = id
			return n, nil
		case fieldSigName:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed signature name")
			}
			out.Name = string(raw)
			return n, nil
		case fieldSigLastTxID:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed transaction id")
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return n, err
			}
			out.LastTransactionID = id
			return n, nil
		case fieldSigLastModified:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed last modified")
			}
			out.LastModified = parseTime(string(raw))
			return n, nil
		case fieldSigSharedPeers:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed shared peer")
			}
			peer, err := unmarshalPeerId(raw)
			if err != nil {
				return n, err
			}
			out.SharedPeers = append(out.SharedPeers, peer)
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	return out, err
}

// --- SharedFile ---
// LocalPath is intentionally never encoded: it names a path on this
// daemon's own filesystem and has no meaning to a remote peer.

func marshalSharedFile(f models.SharedFile) []byte {
	var b []byte
	idBytes, _ := f.Identifier.MarshalBinary()
	b = appendBytesField(b, fieldFileIdentifier, idBytes)
	b = appendStringField(b, fieldFileName, f.Name)
	b = appendBytesField(b, fieldFileContentHash, f.ContentHash[:])
	b = appendTimeField(b, fieldFileLastModified, f.LastModified)
	b = appendVarintField(b, fieldFileSize, f.Size)
	for _, peer := range f.OwnedPeers {
		b = appendMessageField(b, fieldFileOwnedPeers, marshalPeerId(peer))
	}
	return b
}

func unmarshalSharedFile(body []byte) (models.SharedFile, error) {
	var out models.SharedFile
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldFileIdentifier:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed file identifier")
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return n, err
			}
			out.Identifier = id
			return n, nil
		case fieldFileName:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed file name")
			}
			out.Name = string(raw)
			return n, nil
		case fieldFileContentHash:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed content hash")
			}
			out.ContentHash = models.ContentHashFromBytes(raw)
			return n, nil
		case fieldFileLastModified:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed file last modified")
			}
			out.LastModified = parseTime(string(raw))
			return n, nil
		case fieldFileSize:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed file size")
			}
			out.Size = v
			return n, nil
		case fieldFileOwnedPeers:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed owned peer")
			}
			peer, err := unmarshalPeerId(raw)
			if err != nil {
				return n, err
			}
			out.OwnedPeers = append(out.OwnedPeers, peer)
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	return out, err
}

// --- Handshake ---

// Handshake is exchanged as the first frame in both directions.
type Handshake struct {
	PeerID models.PeerId
}

func (*Handshake) Kind() Kind { return KindHandshake }

func (m *Handshake) marshal() []byte {
	return appendMessageField(nil, fieldHandshakePeer, marshalPeerId(m.PeerID))
}

func (m *Handshake) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldHandshakePeer {
			return skipField(typ, b)
		}
		raw, n := consumeBytesValue(b)
		if n < 0 {
			return n, fmt.Errorf("codec: malformed handshake peer")
		}
		peer, err := unmarshalPeerId(raw)
		if err != nil {
			return n, err
		}
		m.PeerID = peer
		return n, nil
	})
}

// --- GetDirectories ---

// GetDirectories requests the signatures of all directories currently
// shared with the remote. It carries no fields.
type GetDirectories struct{}

func (*GetDirectories) Kind() Kind            { return KindGetDirectories }
func (*GetDirectories) marshal() []byte       { return nil }
func (*GetDirectories) unmarshal([]byte) error { return nil }

// --- Directories ---

// Directories answers GetDirectories.
type Directories struct {
	Signatures []models.ShareDirectorySignature
}

func (*Directories) Kind() Kind { return KindDirectories }

func (m *Directories) marshal() []byte {
	var b []byte
	for _, sig := range m.Signatures {
		b = appendMessageField(b, fieldDirsSignatures, marshalSignature(sig))
	}
	return b
}

func (m *Directories) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldDirsSignatures {
			return skipField(typ, b)
		}
		raw, n := consumeBytesValue(b)
		if n < 0 {
			return n, fmt.Errorf("codec: malformed directory signature")
		}
		sig, err := unmarshalSignature(raw)
		if err != nil {
			return n, err
		}
		m.Signatures = append(m.Signatures, sig)
		return n, nil
	})
}

// --- ShareDirectory ---

// ShareDirectory pushes full directory state, used on initial share.
type ShareDirectory struct {
	Signature models.ShareDirectorySignature
	Files     []models.SharedFile
}

func (*ShareDirectory) Kind() Kind { return KindShareDirectory }

func (m *ShareDirectory) marshal() []byte {
	b := appendMessageField(nil, fieldShareDirSignature, marshalSignature(m.Signature))
	for _, f := range m.Files {
		b = appendMessageField(b, fieldShareDirFiles, marshalSharedFile(f))
	}
	return b
}

func (m *ShareDirectory) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldShareDirSignature:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed share directory signature")
			}
			sig, err := unmarshalSignature(raw)
			if err != nil {
				return n, err
			}
			m.Signature = sig
			return n, nil
		case fieldShareDirFiles:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed share directory file")
			}
			f, err := unmarshalSharedFile(raw)
			if err != nil {
				return n, err
			}
			m.Files = append(m.Files, f)
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
}

// --- DirectoryUpdate ---

// DirectoryUpdate is an incremental mutation: the sender's view of the
// directory signature after the mutation, plus the files it added and
// the file identifiers it withdrew ownership of.
type DirectoryUpdate struct {
	Signature      models.ShareDirectorySignature
	AddedFiles     []models.SharedFile
	RemovedFileIDs []uuid.UUID
}

func (*DirectoryUpdate) Kind() Kind { return KindDirectoryUpdate }

func (m *DirectoryUpdate) marshal() []byte {
	b := appendMessageField(nil, fieldUpdateSignature, marshalSignature(m.Signature))
	for _, f := range m.AddedFiles {
		b = appendMessageField(b, fieldUpdateAddedFiles, marshalSharedFile(f))
	}
	for _, id := range m.RemovedFileIDs {
		idBytes, _ := id.MarshalBinary()
		b = appendBytesField(b, fieldUpdateRemovedIDs, idBytes)
	}
	return b
}

func (m *DirectoryUpdate) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldUpdateSignature:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed update signature")
			}
			sig, err := unmarshalSignature(raw)
			if err != nil {
				return n, err
			}
			m.Signature = sig
			return n, nil
		case fieldUpdateAddedFiles:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed update added file")
			}
			f, err := unmarshalSharedFile(raw)
			if err != nil {
				return n, err
			}
			m.AddedFiles = append(m.AddedFiles, f)
			return n, nil
		case fieldUpdateRemovedIDs:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed removed file id")
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return n, err
			}
			m.RemovedFileIDs = append(m.RemovedFileIDs, id)
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
}

// --- FileRequest / FileChunk / CancelDownload ---

// FileRequest asks the owner of a file to begin streaming FileChunks
// starting at Offset.
type FileRequest struct {
	DownloadID  uuid.UUID
	DirectoryID uuid.UUID
	FileID      uuid.UUID
	Offset      uint64
}

func (*FileRequest) Kind() Kind { return KindFileRequest }

func (m *FileRequest) marshal() []byte {
	var b []byte
	downloadBytes, _ := m.DownloadID.MarshalBinary()
	b = appendBytesField(b, fieldFileReqDownloadID, downloadBytes)
	dirBytes, _ := m.DirectoryID.MarshalBinary()
	b = appendBytesField(b, fieldFileReqDirectoryID, dirBytes)
	fileBytes, _ := m.FileID.MarshalBinary()
	b = appendBytesField(b, fieldFileReqFileID, fileBytes)
	b = appendVarintField(b, fieldFileReqOffset, m.Offset)
	return b
}

func (m *FileRequest) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldFileReqDownloadID:
			return consumeUUIDInto(b, &m.DownloadID)
		case fieldFileReqDirectoryID:
			return consumeUUIDInto(b, &m.DirectoryID)
		case fieldFileReqFileID:
			return consumeUUIDInto(b, &m.FileID)
		case fieldFileReqOffset:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed file request offset")
			}
			m.Offset = v
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
}

// FileChunk carries one bounded byte slice of a file's contents.
type FileChunk struct {
	DownloadID uuid.UUID
	Offset     uint64
	Bytes      []byte
	IsLast     bool
}

func (*FileChunk) Kind() Kind { return KindFileChunk }

func (m *FileChunk) marshal() []byte {
	var b []byte
	downloadBytes, _ := m.DownloadID.MarshalBinary()
	b = appendBytesField(b, fieldChunkDownloadID, downloadBytes)
	b = appendVarintField(b, fieldChunkOffset, m.Offset)
	b = appendBytesField(b, fieldChunkBytes, m.Bytes)
	b = appendBoolField(b, fieldChunkIsLast, m.IsLast)
	return b
}

func (m *FileChunk) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldChunkDownloadID:
			return consumeUUIDInto(b, &m.DownloadID)
		case fieldChunkOffset:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed chunk offset")
			}
			m.Offset = v
			return n, nil
		case fieldChunkBytes:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed chunk bytes")
			}
			m.Bytes = raw
			return n, nil
		case fieldChunkIsLast:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed chunk is_last")
			}
			m.IsLast = v != 0
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
}

// CancelDownload may be sent by either endpoint of a transfer.
type CancelDownload struct {
	DownloadID uuid.UUID
}

func (*CancelDownload) Kind() Kind { return KindCancelDownload }

func (m *CancelDownload) marshal() []byte {
	downloadBytes, _ := m.DownloadID.MarshalBinary()
	return appendBytesField(nil, fieldCancelDownloadID, downloadBytes)
}

func (m *CancelDownload) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldCancelDownloadID {
			return skipField(typ, b)
		}
		return consumeUUIDInto(b, &m.DownloadID)
	})
}

// --- LeaveDirectory ---

// LeaveDirectory announces the sender will no longer participate in
// the named directory.
type LeaveDirectory struct {
	DirectoryID uuid.UUID
}

func (*LeaveDirectory) Kind() Kind { return KindLeaveDirectory }

func (m *LeaveDirectory) marshal() []byte {
	idBytes, _ := m.DirectoryID.MarshalBinary()
	return appendBytesField(nil, fieldLeaveDirectoryID, idBytes)
}

func (m *LeaveDirectory) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldLeaveDirectoryID {
			return skipField(typ, b)
		}
		return consumeUUIDInto(b, &m.DirectoryID)
	})
}

// --- ErrorMessage ---

// ErrorMessage is a non-fatal application-level error; the session
// stays open after sending or receiving one.
type ErrorMessage struct {
	Code    string
	Message string
}

func (*ErrorMessage) Kind() Kind { return KindError }

func (m *ErrorMessage) marshal() []byte {
	b := appendStringField(nil, fieldErrorCode, m.Code)
	b = appendStringField(b, fieldErrorMessage, m.Message)
	return b
}

func (m *ErrorMessage) unmarshal(body []byte) error {
	return consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldErrorCode:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed error code")
			}
			m.Code = string(raw)
			return n, nil
		case fieldErrorMessage:
			raw, n := consumeBytesValue(b)
			if n < 0 {
				return n, fmt.Errorf("codec: malformed error message")
			}
			m.Message = string(raw)
			return n, nil
		default:
			return skipField(typ, b)
		}
	})
}

// --- shared field helpers ---

func consumeUUIDInto(b []byte, dst *uuid.UUID) (int, error) {
	raw, n := consumeBytesValue(b)
	if n < 0 {
		return n, fmt.Errorf("codec: malformed uuid field")
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return n, fmt.Errorf("codec: parse uuid: %w", err)
	}
	*dst = id
	return n, nil
}

// skipField consumes and discards one field's value, honoring the
// protobuf forward-compatibility contract for field numbers we don't
// recognize (or don't carry on this message).
func skipField(typ protowire.Type, b []byte) (int, error) {
	switch typ {
	case protowire.VarintType:
		_, n := protowire.ConsumeVarint(b)
		return n, nil
	case protowire.Fixed32Type:
		_, n := protowire.ConsumeFixed32(b)
		return n, nil
	case protowire.Fixed64Type:
		_, n := protowire.ConsumeFixed64(b)
		return n, nil
	case protowire.BytesType:
		_, n := protowire.ConsumeBytes(b)
		return n, nil
	default:
		return 0, fmt.Errorf("codec: unsupported wire type %d", typ)
	}
}
