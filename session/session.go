// Package session is the daemon's Client actor: one Session owns the
// single TCP stream to one remote peer, with its own reader and writer
// goroutines. Sessions never hold a pointer back to the directory
// Server; they report inbound messages and their own teardown to a
// shared inbox channel supplied at construction, so the Server and its
// sessions never form an object cycle (§9 design note).
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanshared/lanshared/codec"
	"github.com/lanshared/lanshared/models"
)

const (
	// HandshakeTimeout bounds the initial Handshake exchange.
	HandshakeTimeout = 10 * time.Second
	// KeepAliveInterval is how long a session may go without any frame
	// activity before it sends a keepalive probe.
	KeepAliveInterval = 60 * time.Second
	// KeepAliveTimeout is how long a session may go without any frame
	// activity before it is torn down.
	KeepAliveTimeout = 90 * time.Second
	// OutboundQueueSize bounds the number of queued outbound messages.
	OutboundQueueSize = 256
	// frameReadPollInterval bounds each blocking read so the read loop
	// can notice Close without waiting for a peer that never sends.
	frameReadPollInterval = 5 * time.Second
)

// ErrKeepAliveTimeout indicates no frame activity within KeepAliveTimeout.
var ErrKeepAliveTimeout = errors.New("session: keepalive timeout")

// EventKind discriminates an Event sent to a session's inbox.
type EventKind int

const (
	// EventMessage carries one decoded inbound message.
	EventMessage EventKind = iota
	// EventClosed reports that the session has torn down; Err is the
	// terminal error, or nil on a clean close.
	EventClosed
)

// Event is everything a Session reports to its owner.
type Event struct {
	Kind    EventKind
	Session *Session
	Message codec.Message
	Err     error
}

// Inbox is the send side of the channel a Session reports Events to.
type Inbox = chan<- Event

// Session owns one peer's TCP stream and codec framing.
type Session struct {
	conn net.Conn

	self models.PeerId
	peer models.PeerId

	inbox Inbox

	outbound chan codec.Message

	keepAliveSource func() codec.Message

	lastActivity atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
	writerWg  sync.WaitGroup

	errMu sync.RWMutex
	err   error
}

// Option configures a Session at construction.
type Option func(*Session)

// WithKeepAliveSource supplies the message a Session sends as its idle
// keepalive probe (spec.md §5: "an empty DirectoryUpdate with the
// current lastTransactionId"). The owner — the directory Server, which
// knows the shared directories and their transaction ids — is queried
// each time a probe is due, since Session itself holds no directory
// state (§9 design note). fn may return nil, in which case the probe
// falls back to GetDirectories.
func WithKeepAliveSource(fn func() codec.Message) Option {
	return func(s *Session) { s.keepAliveSource = fn }
}

// Handshake exchanges Handshake frames over a freshly dialed or
// accepted connection and returns the remote peer's identity. Both
// sides write their own Handshake immediately, so there is no
// challenge/response round trip: the LAN transport carries no
// encryption or signing (§9 non-goal). The write runs alongside the
// read, so an unbuffered conn such as net.Pipe cannot deadlock.
func Handshake(self models.PeerId, conn net.Conn) (models.PeerId, error) {
	if err := conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return models.PeerId{}, fmt.Errorf("session: set handshake deadline: %w", err)
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- codec.WriteFrame(conn, codec.Encode(&codec.Handshake{PeerID: self}))
	}()

	payload, err := codec.ReadFrame(conn)
	if err != nil {
		return models.PeerId{}, fmt.Errorf("session: read handshake: %w", err)
	}
	if err := <-writeErr; err != nil {
		return models.PeerId{}, fmt.Errorf("session: write handshake: %w", err)
	}
	msg, err := codec.Decode(payload)
	if err != nil {
		return models.PeerId{}, fmt.Errorf("session: decode handshake: %w", err)
	}
	handshake, ok := msg.(*codec.Handshake)
	if !ok {
		return models.PeerId{}, fmt.Errorf("session: expected handshake, got %s", msg.Kind())
	}
	return handshake.PeerID, nil
}

// New wraps a handshaken connection into a running Session, starting
// its reader, writer, and keepalive goroutines.
func New(conn net.Conn, self, peer models.PeerId, inbox Inbox, opts ...Option) *Session {
	s := &Session{
		conn:     conn,
		self:     self,
		peer:     peer,
		inbox:    inbox,
		outbound: make(chan codec.Message, OutboundQueueSize),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.touchActivity()

	s.writerWg.Add(1)
	go s.writeLoop()
	go s.readLoop()
	go s.keepAliveLoop()
	return s
}

// Peer returns the remote peer's identity.
func (s *Session) Peer() models.PeerId { return s.peer }

// Done is closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Err returns the terminal error, if the session closed abnormally.
func (s *Session) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.err
}

// Send queues an outbound message. FileChunk messages are droppable
// under backpressure: the receiver can always re-request a dropped
// chunk by offset, so the newest chunk is discarded rather than
// blocking the writer on a slow peer. Every other message kind is
// sent with a bounded wait, since a dropped Handshake, DirectoryUpdate,
// FileRequest, or CancelDownload cannot be easily recovered from.
func (s *Session) Send(msg codec.Message) {
	select {
	case <-s.closed:
		return
	default:
	}

	if _, droppable := msg.(*codec.FileChunk); droppable {
		select {
		case s.outbound <- msg:
		case <-s.closed:
		default:
		}
		return
	}

	select {
	case s.outbound <- msg:
	case <-s.closed:
	case <-time.After(5 * time.Second):
		s.closeWithError(fmt.Errorf("session: outbound queue full sending %s to %s", msg.Kind(), s.peer))
	}
}

// Close tears the session down cleanly.
func (s *Session) Close() error {
	s.closeWithError(nil)
	return nil
}

func (s *Session) closeWithError(err error) {
	s.closeOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()

		_ = s.conn.Close()
		close(s.closed)
		s.writerWg.Wait()

		s.report(Event{Kind: EventClosed, Session: s, Err: err})
	})
}

func (s *Session) report(ev Event) {
	select {
	case s.inbox <- ev:
	case <-time.After(time.Second):
		// Owner is gone or wedged; nothing more we can do.
	}
}

func (s *Session) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) idleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

func (s *Session) writeLoop() {
	defer s.writerWg.Done()
	for {
		select {
		case msg := <-s.outbound:
			if err := codec.WriteFrame(s.conn, codec.Encode(msg)); err != nil {
				go s.closeWithError(fmt.Errorf("session: write %s: %w", msg.Kind(), err))
				return
			}
			s.touchActivity()
		case <-s.closed:
			return
		}
	}
}

func (s *Session) readLoop() {
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		payload, err := codec.ReadFrameWithTimeout(s.conn, frameReadPollInterval)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.closeWithError(nil)
				return
			}
			s.closeWithError(fmt.Errorf("session: read frame: %w", err))
			return
		}

		s.touchActivity()
		if len(payload) == 0 {
			continue
		}

		msg, err := codec.Decode(payload)
		if err != nil {
			s.closeWithError(fmt.Errorf("session: decode frame: %w", err))
			return
		}

		s.report(Event{Kind: EventMessage, Session: s, Message: msg})
	}
}

func (s *Session) keepAliveLoop() {
	ticker := time.NewTicker(KeepAliveInterval / 2)
	defer ticker.Stop()

	probeSent := false
	for {
		select {
		case <-ticker.C:
			idle := s.idleFor()
			if idle >= KeepAliveTimeout {
				s.closeWithError(ErrKeepAliveTimeout)
				return
			}
			if idle >= KeepAliveInterval && !probeSent {
				s.Send(s.keepAliveProbe())
				probeSent = true
			}
			if idle < KeepAliveInterval {
				probeSent = false
			}
		case <-s.closed:
			return
		}
	}
}

// keepAliveProbe returns the message to send for an idle keepalive. It
// prefers the owner-supplied DirectoryUpdate source and falls back to
// GetDirectories when no source is set or the source has nothing to
// offer (e.g. no directory is shared with this peer yet).
func (s *Session) keepAliveProbe() codec.Message {
	if s.keepAliveSource != nil {
		if msg := s.keepAliveSource(); msg != nil {
			return msg
		}
	}
	return &codec.GetDirectories{}
}

// DialAndHandshake opens a TCP connection and performs the Handshake
// exchange, returning a ready-to-run Session on success.
func DialAndHandshake(ctx context.Context, self models.PeerId, address string, dial func(context.Context, string) (net.Conn, error), inbox Inbox, opts ...Option) (*Session, error) {
	conn, err := dial(ctx, address)
	if err != nil {
		return nil, err
	}
	peer, err := Handshake(self, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return New(conn, self, peer, inbox, opts...), nil
}
