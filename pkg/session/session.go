package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/framing"
	"github.com/iotivity/ca-go/pkg/secure"
)

// State is the handshake state of a session.
type State int32

const (
	// StateNotStarted is a secure session that has not stepped yet.
	StateNotStarted State = iota

	// StateInProgress is a handshake waiting for peer data.
	StateInProgress

	// StateEstablished is a usable session. Plaintext sessions start here.
	StateEstablished

	// StateFailed is a session whose handshake failed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the handshake can no longer change.
func (s State) Terminal() bool {
	return s == StateEstablished || s == StateFailed
}

// Role is the local side of a session.
type Role uint8

const (
	// RoleServer sessions were created by an inbound connection or datagram.
	RoleServer Role = iota
	// RoleClient sessions were created by a local send.
	RoleClient
)

// String returns the role name.
func (r Role) String() string {
	if r == RoleClient {
		return "CLIENT"
	}
	return "SERVER"
}

// Socket is the network side of a session. For TCP it wraps a connection
// owned by the session; UDP sessions share the listener's packet socket.
type Socket interface {
	// Send writes b to the peer.
	Send(b []byte) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// Close releases the socket. Shared sockets ignore it.
	Close() error
}

// Options configures a new session.
type Options struct {
	Endpoint endpoint.Endpoint
	Role     Role
	Socket   Socket

	// Engine is nil for plaintext sessions.
	Engine secure.Engine

	// MaxMessageSize bounds reassembled CoAP messages (TCP only).
	MaxMessageSize int

	// MaxRecordSize bounds TLS records (secure TCP only).
	MaxRecordSize int

	// PendingLimit caps the pending queue, 0 for unbounded.
	PendingLimit int
}

// Session is the live state for one peer.
type Session struct {
	mu sync.Mutex

	endpoint endpoint.Endpoint
	role     Role
	connID   uuid.UUID
	created  time.Time

	state     atomic.Int32
	closed    atomic.Bool
	retired   atomic.Bool
	connected atomic.Bool
	active    atomic.Int64

	socket   Socket
	engine   secure.Engine
	records  *framing.Reassembler
	messages *framing.Reassembler
	pending  *PendingQueue

	peerID    uuid.UUID
	hasPeerID bool
}

// New creates a session. Plaintext sessions start established; secure
// sessions start with the handshake not started.
func New(opts Options) *Session {
	s := &Session{
		endpoint: opts.Endpoint,
		role:     opts.Role,
		connID:   uuid.New(),
		created:  time.Now(),
		socket:   opts.Socket,
		engine:   opts.Engine,
		pending:  NewPendingQueue(opts.PendingLimit),
	}
	s.active.Store(s.created.UnixNano())

	if opts.Endpoint.Adapter == endpoint.AdapterTCP {
		s.messages = framing.New(framing.CoAPTCP{}, opts.MaxMessageSize)
		if opts.Engine != nil {
			s.records = framing.New(framing.TLSRecord{}, opts.MaxRecordSize)
		}
	}

	if opts.Engine == nil {
		s.state.Store(int32(StateEstablished))
	} else {
		s.state.Store(int32(StateNotStarted))
	}
	return s
}

// Lock acquires the session's I/O lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's I/O lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Endpoint returns the peer identity.
func (s *Session) Endpoint() endpoint.Endpoint { return s.endpoint }

// Role returns the local role.
func (s *Session) Role() Role { return s.role }

// IsClient reports whether the session was opened locally.
func (s *Session) IsClient() bool { return s.role == RoleClient }

// ConnID returns the session's connection ID, used in protocol logs.
func (s *Session) ConnID() uuid.UUID { return s.connID }

// Created returns when the session was created.
func (s *Session) Created() time.Time { return s.created }

// Touch records traffic on the session.
func (s *Session) Touch() { s.active.Store(time.Now().UnixNano()) }

// LastActive returns when the session last saw traffic.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.active.Load()) }

// State returns the handshake state.
func (s *Session) State() State { return State(s.state.Load()) }

// SetState sets the handshake state and returns the previous one.
func (s *Session) SetState(state State) State {
	return State(s.state.Swap(int32(state)))
}

// Secure reports whether the session has an engine.
func (s *Session) Secure() bool { return s.engine != nil }

// Socket returns the session socket.
func (s *Session) Socket() Socket { return s.socket }

// Engine returns the secure engine, nil for plaintext sessions.
func (s *Session) Engine() secure.Engine { return s.engine }

// Records returns the TLS record reassembler, nil unless secure TCP.
func (s *Session) Records() *framing.Reassembler { return s.records }

// Messages returns the CoAP-over-TCP reassembler, nil for UDP.
func (s *Session) Messages() *framing.Reassembler { return s.messages }

// Pending returns the pending-write queue.
func (s *Session) Pending() *PendingQueue { return s.pending }

// Closed reports whether the session was removed from its table.
func (s *Session) Closed() bool { return s.closed.Load() }

// markClosed flags the session and reports whether this call closed it.
func (s *Session) markClosed() bool {
	return s.closed.CompareAndSwap(false, true)
}

// Retire claims the release of the session's socket and engine. Only the
// first call returns true.
func (s *Session) Retire() bool {
	return s.retired.CompareAndSwap(false, true)
}

// Connected reports whether the upper layer was told the session is up.
func (s *Session) Connected() bool { return s.connected.Load() }

// SetConnected records the upper layer's view and returns the previous one.
func (s *Session) SetConnected(v bool) bool { return s.connected.Swap(v) }

// PeerID returns the peer's device UUID, if its certificate carried one.
// Caller holds the session lock.
func (s *Session) PeerID() (uuid.UUID, bool) {
	return s.peerID, s.hasPeerID
}

// SetPeerID binds the peer's device UUID. Caller holds the session lock.
func (s *Session) SetPeerID(id uuid.UUID) {
	s.peerID = id
	s.hasPeerID = true
}

// Write sends an application payload on an established session, through
// the engine when secure. Caller holds the session lock.
func (s *Session) Write(b []byte) error {
	if s.Closed() {
		return ErrClosed
	}
	if s.engine == nil {
		return s.socket.Send(b)
	}
	_, err := s.engine.Write(b)
	return err
}
