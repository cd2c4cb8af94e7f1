package transport

import (
	"math/rand"
	"sync"
	"time"
)

// Dial retry defaults.
const (
	DefaultBackoffInitial    = 100 * time.Millisecond
	DefaultBackoffMax        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultBackoffJitter     = 0.25
)

// BackoffConfig configures exponential backoff between dial attempts.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter is the maximum extra delay as a fraction of the base delay.
	Jitter float64
}

// DefaultBackoffConfig returns the default dial backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    DefaultBackoffInitial,
		Max:        DefaultBackoffMax,
		Multiplier: DefaultBackoffMultiplier,
		Jitter:     DefaultBackoffJitter,
	}
}

// Backoff yields growing delays with random jitter.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	current  time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff. Zero fields take the defaults.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultBackoffInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultBackoffMax
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultBackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{
		cfg:     cfg,
		current: cfg.Initial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next attempt and advances.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	if b.cfg.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.cfg.Jitter * b.rng.Float64())
	}

	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.cfg.Multiplier), b.cfg.Max)
	return delay
}

// Reset starts over from the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.Initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the next base delay without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
