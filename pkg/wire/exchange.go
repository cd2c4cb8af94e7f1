package wire

// Summary is the application view of a message on either transport.
type Summary struct {
	Code      Code
	Token     []byte
	Payload   []byte
	Type      DatagramType
	MessageID uint16
}

// IsRequest reports whether the code is a method code.
func (s Summary) IsRequest() bool {
	return CodeClass(s.Code) == 0 && s.Code != CodeEmpty
}

// Summarize decodes a complete message. stream selects the RFC 8323
// framing; otherwise the data is a UDP datagram.
func Summarize(stream bool, data []byte) (Summary, error) {
	if stream {
		m, err := Decode(data)
		if err != nil {
			return Summary{}, err
		}
		return Summary{Code: m.Code, Token: m.Token, Payload: m.Payload}, nil
	}
	m, err := DecodeDatagram(data)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Code:      m.Code,
		Token:     m.Token,
		Payload:   m.Payload,
		Type:      m.Type,
		MessageID: uint16(m.MessageID),
	}, nil
}

// Compose builds a message without options. msgID is ignored on streams;
// datagrams are sent non-confirmable.
func Compose(stream bool, code Code, token []byte, msgID uint16, payload []byte) ([]byte, error) {
	if stream {
		return Encode(Message{Code: code, Token: token, Payload: payload})
	}
	return EncodeDatagram(Message{
		Type:      TypeNonConfirmable,
		Code:      code,
		MessageID: int32(msgID),
		Token:     token,
		Payload:   payload,
	})
}

// Reply builds a response to req echoing its token. A confirmable datagram
// gets a piggybacked acknowledgement with its message ID; otherwise msgID
// is used.
func Reply(stream bool, req Summary, code Code, msgID uint16, payload []byte) ([]byte, error) {
	if stream {
		return Compose(true, code, req.Token, 0, payload)
	}
	m := Message{
		Type:      TypeNonConfirmable,
		Code:      code,
		MessageID: int32(msgID),
		Token:     req.Token,
		Payload:   payload,
	}
	if req.Type == TypeConfirmable {
		m.Type, m.MessageID = TypeAcknowledgement, int32(req.MessageID)
	}
	return EncodeDatagram(m)
}
