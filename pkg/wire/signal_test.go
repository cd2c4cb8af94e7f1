package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSignal(t *testing.T) {
	for _, c := range []Code{CodeCSM, CodePing, CodePong, CodeRelease, CodeAbort} {
		assert.True(t, IsSignal(c), FormatCode(c))
	}
	assert.False(t, IsSignal(CodeGet))
	assert.False(t, IsSignal(CodeContent))
}

func TestPingPong(t *testing.T) {
	ping, err := EncodePing(0x01020304)
	require.NoError(t, err)

	msg, err := Decode(ping)
	require.NoError(t, err)
	assert.Equal(t, CodePing, msg.Code)

	pong, err := EncodePong(msg.Token)
	require.NoError(t, err)

	reply, err := Decode(pong)
	require.NoError(t, err)
	assert.Equal(t, CodePong, reply.Code)

	seq, err := TokenSequence(reply.Token)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), seq)

	_, err = TokenSequence([]byte{1})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeCSM(t *testing.T) {
	data, err := EncodeCSM(1152)
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CodeCSM, msg.Code)
	// Len 3, TKL 0, code 7.01, option 2 length 2 value 0x0480.
	assert.Equal(t, []byte{0x30, 0xE1, 0x22, 0x04, 0x80}, data)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "RELEASE", SignalName(CodeRelease))
	assert.Equal(t, "0.01", SignalName(CodeGet))
}

func TestCSMMaxMessageSize(t *testing.T) {
	data, err := EncodeCSM(1152)
	require.NoError(t, err)
	msg, err := Decode(data)
	require.NoError(t, err)

	size, ok := CSMMaxMessageSize(msg)
	require.True(t, ok)
	assert.Equal(t, uint32(1152), size)

	// Block-Wise-Transfer only.
	bwt, err := Decode([]byte{0x10, 0xE1, 0x40})
	require.NoError(t, err)
	_, ok = CSMMaxMessageSize(bwt)
	assert.False(t, ok)
}
