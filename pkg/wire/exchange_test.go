package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeSummarizeStream(t *testing.T) {
	data, err := Compose(true, CodePost, []byte{1, 2}, 99, []byte("hello"))
	require.NoError(t, err)
	total, err := TotalLength(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), total)

	s, err := Summarize(true, data)
	require.NoError(t, err)
	assert.Equal(t, CodePost, s.Code)
	assert.Equal(t, []byte{1, 2}, s.Token)
	assert.Equal(t, []byte("hello"), s.Payload)
	assert.True(t, s.IsRequest())

	reply, err := Reply(true, s, CodeContent, 0, s.Payload)
	require.NoError(t, err)
	r, err := Summarize(true, reply)
	require.NoError(t, err)
	assert.Equal(t, CodeContent, r.Code)
	assert.Equal(t, []byte{1, 2}, r.Token)
	assert.False(t, r.IsRequest())
}

func TestReplyDatagram(t *testing.T) {
	con, err := EncodeDatagram(Message{Type: TypeConfirmable, Code: CodeGet, MessageID: 7, Token: []byte{9}})
	require.NoError(t, err)
	req, err := Summarize(false, con)
	require.NoError(t, err)
	assert.Nil(t, req.Payload)

	ack, err := Reply(false, req, CodeContent, 100, []byte("x"))
	require.NoError(t, err)
	r, err := Summarize(false, ack)
	require.NoError(t, err)
	assert.Equal(t, TypeAcknowledgement, r.Type)
	assert.Equal(t, uint16(7), r.MessageID)
	assert.Equal(t, []byte{9}, r.Token)

	non, err := Compose(false, CodeGet, nil, 5, nil)
	require.NoError(t, err)
	req, err = Summarize(false, non)
	require.NoError(t, err)
	reply, err := Reply(false, req, CodeContent, 100, nil)
	require.NoError(t, err)
	r, err = Summarize(false, reply)
	require.NoError(t, err)
	assert.Equal(t, TypeNonConfirmable, r.Type)
	assert.Equal(t, uint16(100), r.MessageID)
}

func TestSummarizeErrors(t *testing.T) {
	_, err := Summarize(true, []byte{0x30})
	assert.Error(t, err)
	_, err = Summarize(false, []byte{0x40})
	assert.Error(t, err)
}
