package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
)

// Signaling codes (RFC 8323 Section 5). Class 7 messages are consumed by
// the connection layer and never handed to the application.
const (
	CodeCSM     = codes.CSM     // 7.01
	CodePing    = codes.Ping    // 7.02
	CodePong    = codes.Pong    // 7.03
	CodeRelease = codes.Release // 7.04
	CodeAbort   = codes.Abort   // 7.05
)

// IsSignal reports whether a code belongs to the signaling class.
func IsSignal(c Code) bool {
	return CodeClass(c) == 7
}

// SignalName returns a short name for a signaling code.
func SignalName(c Code) string {
	switch c {
	case CodeCSM:
		return "CSM"
	case CodePing:
		return "PING"
	case CodePong:
		return "PONG"
	case CodeRelease:
		return "RELEASE"
	case CodeAbort:
		return "ABORT"
	default:
		return FormatCode(c)
	}
}

// CSM option numbers.
const (
	OptionMaxMessageSize    message.OptionID = 2
	OptionBlockWiseTransfer message.OptionID = 4
)

// EncodeCSM builds a Capabilities and Settings Message announcing the
// maximum message size this side accepts.
func EncodeCSM(maxMessageSize uint32) ([]byte, error) {
	buf := make([]byte, 4)
	n, err := message.EncodeUint32(buf, maxMessageSize)
	if err != nil {
		return nil, err
	}
	return Encode(Message{
		Code:    CodeCSM,
		Options: message.Options{{ID: OptionMaxMessageSize, Value: buf[:n]}},
	})
}

// EncodePing builds a Ping carrying seq as its token.
func EncodePing(seq uint32) ([]byte, error) {
	return Encode(Message{Code: CodePing, Token: seqToken(seq)})
}

// EncodePong builds the Pong answering a Ping with the given token.
func EncodePong(token []byte) ([]byte, error) {
	return Encode(Message{Code: CodePong, Token: token})
}

// EncodeRelease builds a Release message.
func EncodeRelease() ([]byte, error) {
	return Encode(Message{Code: CodeRelease})
}

// EncodeAbort builds an Abort message.
func EncodeAbort() ([]byte, error) {
	return Encode(Message{Code: CodeAbort})
}

// TokenSequence recovers the sequence number carried in a Ping/Pong token.
func TokenSequence(token []byte) (uint32, error) {
	if len(token) != 4 {
		return 0, fmt.Errorf("%w: token length %d", ErrMalformed, len(token))
	}
	return binary.BigEndian.Uint32(token), nil
}

func seqToken(seq uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, seq)
}

// CSMMaxMessageSize returns the Max-Message-Size option of a CSM.
func CSMMaxMessageSize(m Message) (uint32, bool) {
	v, err := m.Options.GetUint32(OptionMaxMessageSize)
	if err != nil {
		return 0, false
	}
	return v, true
}
