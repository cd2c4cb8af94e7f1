// Package framing reassembles complete messages from a byte stream that
// arrives in arbitrary chunks.
//
// A Reassembler is bound to one Framing (CoAP over TCP or TLS records) and
// keeps the partial message of a single connection between calls. It is not
// safe for concurrent use; the owning session serializes access.
package framing

import (
	"errors"

	"github.com/iotivity/ca-go/pkg/wire"
)

// Size limits.
const (
	// DefaultMaxMessageSize bounds a CoAP-over-TCP message (64 KB).
	DefaultMaxMessageSize = 65536

	// DefaultMaxRecordSize bounds a TLS record including its header.
	DefaultMaxRecordSize = wire.MaxRecordLength
)

// Framing errors.
var (
	// ErrProtocolViolation is fatal for the connection. No data from the
	// offending message is delivered.
	ErrProtocolViolation = errors.New("framing: protocol violation")

	// ErrMessageTooLarge indicates a declared length above the maximum.
	ErrMessageTooLarge = errors.New("framing: message too large")
)

// Framing describes how a message announces its own length.
type Framing interface {
	// Name identifies the framing in logs.
	Name() string

	// HeaderLength returns how many bytes, starting with first, must be
	// buffered before TotalLength can be computed.
	HeaderLength(first byte) int

	// TotalLength returns the full message length from a complete header.
	TotalLength(header []byte) (int, error)
}

// CoAPTCP is RFC 8323 length-prefixed CoAP framing.
type CoAPTCP struct{}

// Name implements Framing.
func (CoAPTCP) Name() string { return "coap+tcp" }

// HeaderLength implements Framing.
func (CoAPTCP) HeaderLength(first byte) int { return wire.HeaderLength(first) }

// TotalLength implements Framing.
func (CoAPTCP) TotalLength(header []byte) (int, error) { return wire.TotalLength(header) }

// TLSRecord is TLS record framing: a 5-byte header whose last two bytes hold
// the fragment length.
type TLSRecord struct{}

// Name implements Framing.
func (TLSRecord) Name() string { return "tls-record" }

// HeaderLength implements Framing.
func (TLSRecord) HeaderLength(byte) int { return wire.RecordHeaderLength }

// TotalLength implements Framing.
func (TLSRecord) TotalLength(header []byte) (int, error) {
	h, err := wire.ParseRecordHeader(header)
	if err != nil {
		return 0, err
	}
	return h.Total(), nil
}

// Compile-time interface checks.
var (
	_ Framing = CoAPTCP{}
	_ Framing = TLSRecord{}
)
