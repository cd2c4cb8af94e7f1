package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLength(t *testing.T) {
	tests := []struct {
		first byte
		ext   int
		hdr   int
	}{
		{0x00, 0, 2},
		{0x30, 0, 2},
		{0x34, 0, 6},
		{0xC8, 0, 10},
		{0xD0, 1, 3},
		{0xE2, 2, 6},
		{0xF1, 4, 7},
	}
	for _, tt := range tests {
		if got := ExtendedLengthSize(tt.first); got != tt.ext {
			t.Errorf("ExtendedLengthSize(%#x) = %d, want %d", tt.first, got, tt.ext)
		}
		if got := HeaderLength(tt.first); got != tt.hdr {
			t.Errorf("HeaderLength(%#x) = %d, want %d", tt.first, got, tt.hdr)
		}
	}
}

func TestTotalLength(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   int
	}{
		{"inline length", []byte{0x30, 0x41}, 5},
		{"with token", []byte{0x52, 0x02, 0xAA, 0xBB}, 2 + 2 + 5},
		{"8-bit extension", []byte{0xD0, 0x00, 0x02}, 3 + 13},
		{"8-bit extension max", []byte{0xD0, 0xFF, 0x02}, 3 + 13 + 255},
		{"16-bit extension", []byte{0xE0, 0x01, 0x00, 0x02}, 4 + 269 + 256},
		{"32-bit extension", []byte{0xF0, 0x00, 0x00, 0x00, 0x01, 0x02}, 6 + 65805 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TotalLength(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalLengthErrors(t *testing.T) {
	_, err := TotalLength(nil)
	assert.ErrorIs(t, err, ErrShortHeader)

	_, err = TotalLength([]byte{0xE0, 0x01})
	assert.ErrorIs(t, err, ErrShortHeader)

	// Token announced but not yet received.
	_, err = TotalLength([]byte{0x32, 0x01, 0xAA})
	assert.ErrorIs(t, err, ErrShortHeader)

	_, err = TotalLength([]byte{0x09})
	assert.ErrorIs(t, err, ErrTokenTooLong)
}

func TestEncodeDecode(t *testing.T) {
	// Payload sizes around the length nibble boundaries; the payload marker
	// adds one byte.
	sizes := []int{0, 1, 11, 12, 267, 268, 1000, 65803, 65804, 70000}
	for _, n := range sizes {
		payload := bytes.Repeat([]byte{0xAB}, n)
		msg := Message{Code: CodePost, Token: []byte{1, 2, 3}, Payload: payload}

		data, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%d): %v", n, err)
		}
		total, err := TotalLength(data)
		if err != nil {
			t.Fatalf("TotalLength(%d): %v", n, err)
		}
		if total != len(data) {
			t.Errorf("size %d: TotalLength = %d, encoded %d bytes", n, total, len(data))
		}

		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%d): %v", n, err)
		}
		assert.Equal(t, msg.Code, got.Code)
		assert.Equal(t, []byte{1, 2, 3}, []byte(got.Token))
		assert.Equal(t, n, len(got.Payload))
	}
}

func TestEncodeDecodeOptions(t *testing.T) {
	msg := Message{
		Code:  CodeGet,
		Token: []byte{7},
		Options: message.Options{
			{ID: message.URIPath, Value: []byte("a")},
			{ID: message.URIPath, Value: []byte("b")},
		},
		Payload: []byte("x"),
	}
	data, err := Encode(msg)
	require.NoError(t, err)
	// Len 6 (two 2-byte options, marker, payload), TKL 1.
	assert.Equal(t, []byte{0x61, 0x01, 0x07, 0xB1, 'a', 0x01, 'b', 0xFF, 'x'}, data)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, got.Options, 2)
	assert.Equal(t, []byte("x"), got.Payload)
}

func TestEncodeTokenTooLong(t *testing.T) {
	_, err := Encode(Message{Code: CodeGet, Token: make([]byte, 9)})
	assert.True(t, errors.Is(err, ErrTokenTooLong))
}

func TestDecodeLengthMismatch(t *testing.T) {
	_, err := Decode([]byte{0x30, 0x41, 0x42})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "7.02", FormatCode(CodePing))
	assert.Equal(t, "2.05", FormatCode(CodeContent))
	assert.Equal(t, "0.01", FormatCode(CodeGet))
	assert.Equal(t, uint8(7), CodeClass(CodePong))
}

func TestPeekCode(t *testing.T) {
	data, err := EncodePing(7)
	require.NoError(t, err)

	code, ok := PeekCode(data)
	require.True(t, ok)
	assert.Equal(t, CodePing, code)

	_, ok = PeekCode([]byte{0xD0})
	assert.False(t, ok)
}

func TestPeekDatagram(t *testing.T) {
	// Version 1, CON, TKL 2, GET, message ID 0x1234, token 0xAA 0xBB.
	data := []byte{0x42, 0x01, 0x12, 0x34, 0xAA, 0xBB, 0xFF, 'x'}
	code, token, ok := PeekDatagram(data)
	require.True(t, ok)
	assert.Equal(t, CodeGet, code)
	assert.Equal(t, []byte{0xAA, 0xBB}, token)

	_, _, ok = PeekDatagram([]byte{0x42, 0x01, 0x12})
	assert.False(t, ok)
	_, _, ok = PeekDatagram([]byte{0x02, 0x01, 0x12, 0x34, 0, 0})
	assert.False(t, ok, "version 0")
}

func TestDatagramRoundTrip(t *testing.T) {
	in := Message{
		Type:      TypeNonConfirmable,
		Code:      CodePost,
		MessageID: 0x1234,
		Token:     []byte{0xAA, 0xBB},
		Payload:   []byte("hi"),
	}
	data, err := EncodeDatagram(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x52, 0x02, 0x12, 0x34, 0xAA, 0xBB, 0xFF, 'h', 'i'}, data)

	code, token, ok := PeekDatagram(data)
	require.True(t, ok)
	assert.Equal(t, CodePost, code)
	assert.Equal(t, []byte{0xAA, 0xBB}, token)

	out, err := DecodeDatagram(data)
	require.NoError(t, err)
	assert.Equal(t, TypeNonConfirmable, out.Type)
	assert.Equal(t, CodePost, out.Code)
	assert.Equal(t, int32(0x1234), out.MessageID)
	assert.Equal(t, []byte{0xAA, 0xBB}, []byte(out.Token))
	assert.Equal(t, []byte("hi"), out.Payload)
}

func TestDatagramSkipsOptions(t *testing.T) {
	// CON GET, Uri-Path "a", payload "x".
	data := []byte{0x40, 0x01, 0x00, 0x01, 0xB1, 'a', 0xFF, 'x'}
	m, err := DecodeDatagram(data)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), m.Payload)

	m, err = DecodeDatagram([]byte{0x40, 0x01, 0x00, 0x01, 0xB1, 'a'})
	require.NoError(t, err)
	assert.Nil(t, m.Payload)
}

func TestDecodeDatagramErrors(t *testing.T) {
	_, err := DecodeDatagram([]byte{0x40, 0x01})
	assert.ErrorIs(t, err, ErrShortHeader)
	_, err = DecodeDatagram([]byte{0x80, 0x01, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = DecodeDatagram([]byte{0x49, 0x01, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrTokenTooLong)
	_, err = EncodeDatagram(Message{Token: make([]byte, 9)})
	assert.ErrorIs(t, err, ErrTokenTooLong)
}
