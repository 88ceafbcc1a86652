package codec

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrUnknownMessageKind indicates the leading kind byte of a frame did
// not match any known message kind.
var ErrUnknownMessageKind = errors.New("codec: unknown message kind")

// Kind discriminates the message carried by a frame's body. It is
// written as the first byte of the frame payload, ahead of the
// protobuf-encoded body.
type Kind byte

const (
	KindHandshake       Kind = 1
	KindGetDirectories  Kind = 2
	KindDirectories     Kind = 3
	KindShareDirectory  Kind = 4
	KindDirectoryUpdate Kind = 5
	KindFileRequest     Kind = 6
	KindFileChunk       Kind = 7
	KindCancelDownload  Kind = 8
	KindLeaveDirectory  Kind = 9
	KindError           Kind = 10
	// KindPeerList is never written to the wire and has no Message
	// type, so Decode rejects it; the peer list reaches the shell as an
	// eventbus GetPeers event.
	KindPeerList Kind = 255
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "Handshake"
	case KindGetDirectories:
		return "GetDirectories"
	case KindDirectories:
		return "Directories"
	case KindShareDirectory:
		return "ShareDirectory"
	case KindDirectoryUpdate:
		return "DirectoryUpdate"
	case KindFileRequest:
		return "FileRequest"
	case KindFileChunk:
		return "FileChunk"
	case KindCancelDownload:
		return "CancelDownload"
	case KindLeaveDirectory:
		return "LeaveDirectory"
	case KindError:
		return "Error"
	case KindPeerList:
		return "PeerList"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Message is implemented by every wire-encodable payload type.
type Message interface {
	Kind() Kind
	marshal() []byte
	unmarshal([]byte) error
}

// Encode produces a full frame payload: the kind byte followed by the
// protobuf-shaped body.
func Encode(m Message) []byte {
	body := m.marshal()
	out := make([]byte, 1+len(body))
	out[0] = byte(m.Kind())
	copy(out[1:], body)
	return out
}

// Decode reads the kind byte from payload and unmarshals the
// corresponding message type, returning it as a Message.
func Decode(payload []byte) (Message, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("codec: empty frame payload")
	}
	kind := Kind(payload[0])
	body := payload[1:]

	msg, err := newMessage(kind)
	if err != nil {
		return nil, err
	}
	if err := msg.unmarshal(body); err != nil {
		return nil, fmt.Errorf("codec: unmarshal %s: %w", kind, err)
	}
	return msg, nil
}

func newMessage(kind Kind) (Message, error) {
	switch kind {
	case KindHandshake:
		return &Handshake{}, nil
	case KindGetDirectories:
		return &GetDirectories{}, nil
	case KindDirectories:
		return &Directories{}, nil
	case KindShareDirectory:
		return &ShareDirectory{}, nil
	case KindDirectoryUpdate:
		return &DirectoryUpdate{}, nil
	case KindFileRequest:
		return &FileRequest{}, nil
	case KindFileChunk:
		return &FileChunk{}, nil
	case KindCancelDownload:
		return &CancelDownload{}, nil
	case KindLeaveDirectory:
		return &LeaveDirectory{}, nil
	case KindError:
		return &ErrorMessage{}, nil
	default:
		return nil, ErrUnknownMessageKind
	}
}

// --- field-level helpers over encoding/protowire ---

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	return appendBytesField(b, num, []byte(v))
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

func appendMessageField(b []byte, num protowire.Number, body []byte) []byte {
	if len(body) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendTimeField(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendStringField(b, num, t.UTC().Format(time.RFC3339Nano))
}

// consumeFields walks the field stream in body, calling visit with each
// field number, wire type and the raw remaining bytes positioned so
// that the field's value can be consumed with the matching protowire
// Consume* function. visit decides what to do with every field; the
// unmarshal functions in this package hand unknown field numbers to
// skipField, matching protobuf's forward-compatibility contract.
func consumeFields(body []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return protowire.ParseError(n)
		}
		body = body[n:]

		consumed, err := visit(num, typ, body)
		if err != nil {
			return err
		}
		if consumed < 0 {
			return fmt.Errorf("codec: malformed field %d", num)
		}
		body = body[consumed:]
	}
	return nil
}

func consumeBytesValue(b []byte) ([]byte, int) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
