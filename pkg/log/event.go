package log

import (
	"time"
)

// MaxFrameDataSize bounds the frame bytes copied into an event (4 KB).
const MaxFrameDataSize = 4096

// Event is one protocol event. CBOR encoding uses integer keys.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`

	// LocalRole is this side's role in the session.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// Remote is the peer endpoint in URI form, e.g. "coaps+tcp://10.0.0.2:5684".
	Remote string `cbor:"7,keyasint,omitempty"`

	// PeerID is the peer's device UUID once known from its certificate.
	PeerID string `cbor:"8,keyasint,omitempty"`

	// One of the following is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Signal      *SignalEvent      `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction of the traffic an event describes.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer is where an event was captured.
type Layer uint8

const (
	// LayerTransport is socket I/O: raw bytes as sent or received.
	LayerTransport Layer = 0
	// LayerSecure is the TLS/DTLS engine.
	LayerSecure Layer = 1
	// LayerMessage is reassembled CoAP messages.
	LayerMessage Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSecure:
		return "SECURE"
	case LayerMessage:
		return "MESSAGE"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name as printed by String.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerTransport, LayerSecure, LayerMessage} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies an event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryControl Category = 1
	CategoryState   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryMessage, CategoryControl, CategoryState, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Role is the local side of a session.
type Role uint8

const (
	RoleServer Role = 0
	RoleClient Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent holds raw bytes at the transport or secure layer.
type FrameEvent struct {
	// Size is the full length of the frame.
	Size int `cbor:"1,keyasint"`

	// Data is a copy of at most MaxFrameDataSize bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent copies data, truncating it to MaxFrameDataSize.
func NewFrameEvent(data []byte) *FrameEvent {
	n := min(len(data), MaxFrameDataSize)
	copied := make([]byte, n)
	copy(copied, data[:n])
	return &FrameEvent{
		Size:      len(data),
		Data:      copied,
		Truncated: n < len(data),
	}
}

// MessageEvent is a reassembled CoAP message.
type MessageEvent struct {
	// Code in dotted form, e.g. "0.02".
	Code string `cbor:"1,keyasint"`

	Token []byte `cbor:"2,keyasint,omitempty"`

	// Size is the framed message length.
	Size int `cbor:"3,keyasint"`
}

// StateChangeEvent is a session lifecycle transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the socket-level connection.
	StateEntityConnection StateEntity = 0
	// StateEntityHandshake is the TLS/DTLS handshake.
	StateEntityHandshake StateEntity = 1
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// SignalEvent is a CoAP-over-TCP signaling message.
type SignalEvent struct {
	Type SignalType `cbor:"1,keyasint"`

	// Sequence is the Ping/Pong sequence number.
	Sequence uint32 `cbor:"2,keyasint,omitempty"`
}

// SignalType is the kind of signaling message.
type SignalType uint8

const (
	SignalCSM     SignalType = 0
	SignalPing    SignalType = 1
	SignalPong    SignalType = 2
	SignalRelease SignalType = 3
	SignalAbort   SignalType = 4
)

// String returns the signal name.
func (s SignalType) String() string {
	switch s {
	case SignalCSM:
		return "CSM"
	case SignalPing:
		return "PING"
	case SignalPong:
		return "PONG"
	case SignalRelease:
		return "RELEASE"
	case SignalAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData describes a failure.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context names the operation that failed, e.g. "handshake".
	Context string `cbor:"3,keyasint,omitempty"`

	// Fatal is set when the session was torn down.
	Fatal bool `cbor:"4,keyasint,omitempty"`
}
