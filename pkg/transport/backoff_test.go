package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsToMax(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2})

	var delays []time.Duration
	for range 5 {
		delays = append(delays, b.Next())
	}
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}, delays)
	assert.Equal(t, 5, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 10*time.Millisecond, b.Current())
}

func TestBackoffJitterBounded(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: 100 * time.Millisecond, Max: 100 * time.Millisecond, Jitter: 0.5})
	for range 50 {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(BackoffConfig{})
	assert.Equal(t, DefaultBackoffInitial, b.Current())
	b.Next()
	assert.Equal(t, 2*DefaultBackoffInitial, b.Current())
}
