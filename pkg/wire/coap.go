package wire

import (
	"errors"
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	tcpcoder "github.com/plgd-dev/go-coap/v3/tcp/coder"
)

// CoAP-over-TCP header limits (RFC 8323 Section 3.2).
const (
	// MaxTokenLength is the largest token a message may carry.
	MaxTokenLength = message.MaxTokenSize

	// MinHeaderLength is the shortest header: length/TKL byte plus code.
	MinHeaderLength = 2

	// maxOptions bounds the options decoded from one message.
	maxOptions = 64

	lenExt8  = 13
	lenExt16 = 14
	lenExt32 = 15
)

// CoAP wire errors.
var (
	// ErrMalformed indicates a header or message that cannot be parsed.
	ErrMalformed = errors.New("wire: malformed message")

	// ErrShortHeader indicates fewer bytes than the header needs.
	ErrShortHeader = errors.New("wire: short header")

	// ErrTokenTooLong indicates a token longer than MaxTokenLength.
	ErrTokenTooLong = errors.New("wire: token too long")
)

// Code is a CoAP message code (class.detail packed in one byte).
type Code = codes.Code

// Common codes.
const (
	CodeEmpty   = codes.Empty
	CodeGet     = codes.GET
	CodePost    = codes.POST
	CodePut     = codes.PUT
	CodeDelete  = codes.DELETE
	CodeContent = codes.Content
)

// CodeClass returns the class (0..7) of a code.
func CodeClass(c Code) uint8 {
	return uint8(c>>5) & 0x7
}

// FormatCode renders a code in dotted form, e.g. "7.02".
func FormatCode(c Code) string {
	return fmt.Sprintf("%d.%02d", CodeClass(c), uint8(c)&0x1F)
}

// Message is a decoded CoAP message. On streams Type and MessageID are
// unused.
type Message = message.Message

// ExtendedLengthSize returns the number of extended length bytes announced
// by the first header byte.
func ExtendedLengthSize(first byte) int {
	switch first >> 4 {
	case lenExt8:
		return 1
	case lenExt16:
		return 2
	case lenExt32:
		return 4
	default:
		return 0
	}
}

// HeaderLength returns the full header length announced by the first byte:
// the length/TKL byte, extended length bytes, the code byte and the token.
func HeaderLength(first byte) int {
	return 1 + ExtendedLengthSize(first) + 1 + int(first&0x0F)
}

// TotalLength returns header length plus options/payload length for a
// message whose header starts at header[0]. header must hold HeaderLength
// bytes.
func TotalLength(header []byte) (int, error) {
	if len(header) == 0 {
		return 0, ErrShortHeader
	}
	if tkl := int(header[0] & 0x0F); tkl > MaxTokenLength {
		return 0, fmt.Errorf("%w: TKL %d", ErrTokenTooLong, tkl)
	}
	var h tcpcoder.MessageHeader
	if _, err := tcpcoder.DefaultCoder.DecodeHeader(header, &h); err != nil {
		if errors.Is(err, message.ErrShortRead) {
			return 0, ErrShortHeader
		}
		return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if uint64(h.MessageLength) > uint64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("%w: length overflow", ErrMalformed)
	}
	return int(h.MessageLength), nil
}

// Encode frames a message with the CoAP-over-TCP header.
func Encode(msg Message) ([]byte, error) {
	if len(msg.Token) > MaxTokenLength {
		return nil, ErrTokenTooLong
	}
	return encodeWith(tcpcoder.DefaultCoder, msg)
}

// Decode parses one complete framed message. The returned token, options
// and payload alias data.
func Decode(data []byte) (Message, error) {
	total, err := TotalLength(data)
	if err != nil {
		return Message{}, err
	}
	if total != len(data) {
		return Message{}, fmt.Errorf("%w: declared %d bytes, have %d", ErrMalformed, total, len(data))
	}
	return decodeWith(tcpcoder.DefaultCoder, data)
}

// PeekCode returns the code of a framed message without decoding options.
func PeekCode(data []byte) (Code, bool) {
	var h tcpcoder.MessageHeader
	if _, err := tcpcoder.DefaultCoder.DecodeHeader(data, &h); err != nil {
		return 0, false
	}
	return h.Code, true
}

// coder is the shape shared by the TCP and UDP codecs of go-coap.
type coder interface {
	Size(m message.Message) (int, error)
	Encode(m message.Message, buf []byte) (int, error)
	Decode(data []byte, m *message.Message) (int, error)
}

func encodeWith(c coder, msg Message) ([]byte, error) {
	size, err := c.Size(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	buf := make([]byte, size)
	n, err := c.Encode(msg, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return buf[:n], nil
}

// decodeWith decodes into a message with room for options, growing it when
// the codec reports too little.
func decodeWith(c coder, data []byte) (Message, error) {
	for n := 8; ; n *= 2 {
		m := Message{Options: make(message.Options, 0, n)}
		_, err := c.Decode(data, &m)
		switch {
		case err == nil:
			if len(m.Payload) == 0 {
				m.Payload = nil
			}
			return m, nil
		case errors.Is(err, message.ErrOptionsTooSmall) && n < maxOptions:
			continue
		case errors.Is(err, message.ErrInvalidTokenLen):
			return Message{}, fmt.Errorf("%w: %w", ErrTokenTooLong, err)
		case errors.Is(err, message.ErrShortRead):
			return Message{}, fmt.Errorf("%w: %w", ErrShortHeader, err)
		default:
			return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
}
