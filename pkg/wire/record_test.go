package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordHeader(t *testing.T) {
	h, err := ParseRecordHeader([]byte{23, 0x03, 0x03, 0x01, 0x00, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, ContentApplicationData, h.Type)
	assert.Equal(t, uint16(0x0303), h.Version)
	assert.Equal(t, uint16(256), h.Length)
	assert.Equal(t, 261, h.Total())
}

func TestParseRecordHeaderShort(t *testing.T) {
	_, err := ParseRecordHeader([]byte{22, 0x03, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestParseRecordHeaderBadType(t *testing.T) {
	_, err := ParseRecordHeader([]byte{0x30, 0x03, 0x03, 0x00, 0x05})
	assert.ErrorIs(t, err, ErrBadRecordType)
}

func TestAppendRecordHeader(t *testing.T) {
	want := RecordHeader{Type: ContentHandshake, Version: 0x0301, Length: 512}
	b := AppendRecordHeader(nil, want)
	require.Len(t, b, RecordHeaderLength)

	got, err := ParseRecordHeader(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "handshake", got.Type.String())
}
