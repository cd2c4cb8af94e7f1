package wire

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// TLS record layer limits (RFC 8446 Section 5.1, RFC 5246 Section 6.2).
const (
	// RecordHeaderLength is the size of a TLS record header.
	RecordHeaderLength = 5

	// MaxPlaintextLength is the largest record fragment in plaintext.
	MaxPlaintextLength = 1 << 14

	// MaxCiphertextLength is the largest protected record fragment.
	MaxCiphertextLength = MaxPlaintextLength + 2048

	// MaxRecordLength is a full record (header plus largest fragment).
	MaxRecordLength = RecordHeaderLength + MaxCiphertextLength
)

// ContentType is the TLS record content type.
type ContentType uint8

// TLS content types.
const (
	ContentChangeCipherSpec ContentType = 20
	ContentAlert            ContentType = 21
	ContentHandshake        ContentType = 22
	ContentApplicationData  ContentType = 23
)

// String returns the content type name.
func (c ContentType) String() string {
	switch c {
	case ContentChangeCipherSpec:
		return "change_cipher_spec"
	case ContentAlert:
		return "alert"
	case ContentHandshake:
		return "handshake"
	case ContentApplicationData:
		return "application_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ErrBadRecordType indicates a header whose content type is not a TLS one.
var ErrBadRecordType = errors.New("wire: bad record content type")

// RecordHeader is a parsed TLS record header.
type RecordHeader struct {
	Type    ContentType
	Version uint16
	Length  uint16
}

// Total returns the header plus fragment length.
func (h RecordHeader) Total() int {
	return RecordHeaderLength + int(h.Length)
}

// ParseRecordHeader parses the first RecordHeaderLength bytes of data.
func ParseRecordHeader(data []byte) (RecordHeader, error) {
	s := cryptobyte.String(data)
	var (
		typ     uint8
		version uint16
		length  uint16
	)
	if !s.ReadUint8(&typ) || !s.ReadUint16(&version) || !s.ReadUint16(&length) {
		return RecordHeader{}, ErrShortHeader
	}

	h := RecordHeader{Type: ContentType(typ), Version: version, Length: length}
	switch h.Type {
	case ContentChangeCipherSpec, ContentAlert, ContentHandshake, ContentApplicationData:
	default:
		return h, fmt.Errorf("%w: %d", ErrBadRecordType, typ)
	}
	return h, nil
}

// AppendRecordHeader appends a record header to b.
func AppendRecordHeader(b []byte, h RecordHeader) []byte {
	var builder cryptobyte.Builder
	builder.AddUint8(uint8(h.Type))
	builder.AddUint16(h.Version)
	builder.AddUint16(h.Length)
	return append(b, builder.BytesOrPanic()...)
}
