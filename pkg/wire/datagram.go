package wire

import (
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message"
	udpcoder "github.com/plgd-dev/go-coap/v3/udp/coder"
)

// DatagramType is the CoAP-over-UDP message type (RFC 7252 Section 3).
type DatagramType = message.Type

const (
	TypeConfirmable     = message.Confirmable
	TypeNonConfirmable  = message.NonConfirmable
	TypeAcknowledgement = message.Acknowledgement
	TypeReset           = message.Reset
)

const (
	datagramVersion      = 1
	datagramHeaderLength = 4
)

// EncodeDatagram serialises a CoAP-over-UDP message. MessageID must fit
// 16 bits.
func EncodeDatagram(msg Message) ([]byte, error) {
	if len(msg.Token) > MaxTokenLength {
		return nil, ErrTokenTooLong
	}
	return encodeWith(udpcoder.DefaultCoder, msg)
}

// DecodeDatagram parses a CoAP-over-UDP message. The returned slices alias
// data.
func DecodeDatagram(data []byte) (Message, error) {
	if len(data) < datagramHeaderLength {
		return Message{}, ErrShortHeader
	}
	if data[0]>>6 != datagramVersion {
		return Message{}, fmt.Errorf("%w: version %d", ErrMalformed, data[0]>>6)
	}
	if int(data[0]&0x0F) > MaxTokenLength {
		return Message{}, ErrTokenTooLong
	}
	return decodeWith(udpcoder.DefaultCoder, data)
}

// PeekDatagram returns the code and token of a CoAP-over-UDP message.
func PeekDatagram(data []byte) (Code, []byte, bool) {
	m, err := DecodeDatagram(data)
	if err != nil {
		return 0, nil, false
	}
	return m.Code, m.Token, true
}
