package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingQueueFIFO(t *testing.T) {
	q := NewPendingQueue(0)
	for _, p := range []string{"P1", "P2", "P3"} {
		require.NoError(t, q.Enqueue([]byte(p)))
	}
	assert.Equal(t, 3, q.Len())

	got := q.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, "P1", string(got[0]))
	assert.Equal(t, "P2", string(got[1]))
	assert.Equal(t, "P3", string(got[2]))
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestPendingQueueCopies(t *testing.T) {
	q := NewPendingQueue(0)
	buf := []byte("hello")
	require.NoError(t, q.Enqueue(buf))
	buf[0] = 'j'
	assert.Equal(t, "hello", string(q.Drain()[0]))
}

func TestPendingQueueLimit(t *testing.T) {
	q := NewPendingQueue(2)
	require.NoError(t, q.Enqueue([]byte("a")))
	require.NoError(t, q.Enqueue([]byte("b")))
	assert.ErrorIs(t, q.Enqueue([]byte("c")), ErrQueueFull)
	assert.Equal(t, 2, q.Limit())

	q.Prepend([]byte("csm"))
	got := q.Drain()
	assert.Equal(t, []string{"csm", "a", "b"}, []string{string(got[0]), string(got[1]), string(got[2])})
}

func TestPendingQueueDiscard(t *testing.T) {
	q := NewPendingQueue(-1)
	require.NoError(t, q.Enqueue([]byte("a")))
	require.NoError(t, q.Enqueue([]byte("b")))
	assert.Equal(t, 2, q.Discard())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Limit())
}
