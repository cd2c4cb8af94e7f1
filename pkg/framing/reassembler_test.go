package framing

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotivity/ca-go/pkg/wire"
)

func encode(t *testing.T, body []byte) []byte {
	t.Helper()
	data, err := wire.Encode(wire.Message{Code: wire.CodePost, Token: []byte{0xCA, 0xFE}, Payload: body})
	require.NoError(t, err)
	return data
}

func TestOneByteAtATime(t *testing.T) {
	for _, size := range []int{0, 5, 12, 13, 300, 70000} {
		frame := encode(t, bytes.Repeat([]byte{byte(size)}, size))
		r := New(CoAPTCP{}, 1<<17)

		var got [][]byte
		for i := range frame {
			res, msg, err := r.Feed(frame[i : i+1])
			require.NoError(t, err)
			assert.Equal(t, 1, res.Consumed)
			if res.Status == StatusComplete {
				got = append(got, msg)
			}
		}

		require.Len(t, got, 1, "size %d", size)
		assert.True(t, bytes.Equal(frame, got[0]), "size %d: message differs", size)
		assert.Equal(t, 0, r.Pending())
	}
}

func TestRandomChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var stream []byte
	var frames [][]byte
	for i := 0; i < 50; i++ {
		body := make([]byte, rng.Intn(600))
		rng.Read(body)
		f := encode(t, body)
		frames = append(frames, f)
		stream = append(stream, f...)
	}

	r := New(CoAPTCP{}, 0)
	var got [][]byte
	for len(stream) > 0 {
		n := 1 + rng.Intn(97)
		if n > len(stream) {
			n = len(stream)
		}
		err := r.FeedAll(stream[:n], func(msg []byte) error {
			got = append(got, msg)
			return nil
		})
		require.NoError(t, err)
		stream = stream[n:]
	}

	require.Len(t, got, len(frames))
	for i := range frames {
		assert.Equal(t, frames[i], got[i])
	}
}

func TestSplitHeaderThenBody(t *testing.T) {
	r := New(CoAPTCP{}, 0)

	// Len 3, TKL 0, code 'A', body "BCD".
	res, msg, err := r.Feed([]byte{0x30, 'A'})
	require.NoError(t, err)
	assert.Equal(t, StatusNeedMore, res.Status)
	assert.Equal(t, 2, res.Consumed)
	assert.Nil(t, msg)
	assert.Equal(t, 5, r.Expected())

	res, msg, err = r.Feed([]byte{'B', 'C', 'D'})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 3, res.Consumed)
	assert.Equal(t, []byte{0x30, 'A', 'B', 'C', 'D'}, msg)

	decoded, err := wire.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, wire.Code('A'), decoded.Code)
	// 'B' is option delta 4 with a 2-byte value.
	require.Len(t, decoded.Options, 1)
	assert.Equal(t, []byte("CD"), decoded.Options[0].Value)
}

func TestZeroLengthInput(t *testing.T) {
	r := New(CoAPTCP{}, 0)
	_, _, err := r.Feed([]byte{0x30})
	require.NoError(t, err)

	res, msg, err := r.Feed(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedMore, res.Status)
	assert.Equal(t, 0, res.Consumed)
	assert.Nil(t, msg)
	assert.Equal(t, 1, r.Pending())
}

func TestOversizedDeclaredLength(t *testing.T) {
	r := New(CoAPTCP{}, 1024)

	// 32-bit extended length: 65805 + 0x00010000 bytes of body.
	_, _, err := r.Feed([]byte{0xF0, 0x00, 0x01, 0x00, 0x00, 0x01})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Equal(t, 0, r.Pending())

	// The reassembler is usable again after the violation.
	res, msg, err := r.Feed([]byte{0x00, 0x45})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Len(t, msg, 2)
}

func TestMalformedTokenLength(t *testing.T) {
	r := New(CoAPTCP{}, 0)
	header := append([]byte{0x0F, 0x01}, make([]byte, 15)...)
	_, _, err := r.Feed(header)
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.ErrorIs(t, err, wire.ErrTokenTooLong)
}

func TestFeedStopsAtMessageBoundary(t *testing.T) {
	a := encode(t, []byte("first"))
	b := encode(t, []byte("second"))
	r := New(CoAPTCP{}, 0)

	res, msg, err := r.Feed(append(append([]byte{}, a...), b...))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, len(a), res.Consumed)
	assert.Equal(t, a, msg)
}

func TestTLSRecordFraming(t *testing.T) {
	payload := bytes.Repeat([]byte{0x17}, 300)
	record := wire.AppendRecordHeader(nil, wire.RecordHeader{
		Type:    wire.ContentApplicationData,
		Version: 0x0303,
		Length:  uint16(len(payload)),
	})
	record = append(record, payload...)

	r := New(TLSRecord{}, DefaultMaxRecordSize)
	res, _, err := r.Feed(record[:3])
	require.NoError(t, err)
	assert.Equal(t, StatusNeedMore, res.Status)
	assert.Equal(t, 0, r.Expected())

	res, msg, err := r.Feed(record[3:])
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, record, msg)
}

func TestTLSRecordTooLarge(t *testing.T) {
	r := New(TLSRecord{}, 1024)
	_, _, err := r.Feed([]byte{23, 0x03, 0x03, 0x40, 0x00})
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestTLSRecordBadType(t *testing.T) {
	r := New(TLSRecord{}, 0)
	_, _, err := r.Feed([]byte{0x30, 0x03, 0x03, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestFeedAllDeliverError(t *testing.T) {
	stop := errors.New("stop")
	r := New(CoAPTCP{}, 0)
	frame := encode(t, []byte("x"))
	err := r.FeedAll(append(append([]byte{}, frame...), frame...), func([]byte) error { return stop })
	assert.ErrorIs(t, err, stop)
}
