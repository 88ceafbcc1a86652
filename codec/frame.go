// Package codec implements the length-prefixed, protobuf-shaped wire
// format exchanged between daemon sessions.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	// MaxFrameSize bounds a single frame payload. File chunks are the
	// largest payload on the wire, so this is sized well above the
	// suggested chunk size rather than the older chat-message bound.
	MaxFrameSize = 16 * 1024 * 1024
	// DefaultFrameReadTimeout is a read bound for callers of
	// ReadFrameWithTimeout. Nothing in this module passes it; the
	// session read loop uses its own shorter poll interval.
	DefaultFrameReadTimeout = 30 * time.Second
)

// ErrFrameTooLarge indicates a frame length header exceeded MaxFrameSize.
var ErrFrameTooLarge = errors.New("codec: frame exceeds max size")

// WriteFrame writes one length-prefixed frame: a 4-byte big-endian
// length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("codec: write frame length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("codec: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("codec: read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, int(length))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("codec: read frame payload: %w", err)
	}
	return payload, nil
}

// ReadFrameWithTimeout reads a frame, applying a read deadline to conn
// for the duration of the read.
func ReadFrameWithTimeout(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("codec: set read deadline: %w", err)
		}
		defer func() {
			_ = conn.SetReadDeadline(time.Time{})
		}()
	}
	return ReadFrame(conn)
}
