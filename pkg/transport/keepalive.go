package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive defaults for CoAP-over-TCP Ping/Pong signaling.
const (
	DefaultPingInterval   = 30 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures per-session liveness checks.
type KeepAliveConfig struct {
	// PingInterval is the time between pings.
	PingInterval time.Duration

	// PongTimeout is how long a ping waits for its pong.
	PongTimeout time.Duration

	// MaxMissedPongs is the number of unanswered pings that tears the
	// session down.
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return c
}

// DetectionDelay is the longest time a dead peer goes unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	c = c.withDefaults()
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// KeepAliveStats is a snapshot of a KeepAlive.
type KeepAliveStats struct {
	LastPing    time.Time
	LastPong    time.Time
	Latency     time.Duration
	MissedPongs int
	Sequence    uint32
}

// KeepAlive pings one session and reports when it stops answering.
type KeepAlive struct {
	cfg       KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()

	mu       sync.Mutex
	seq      uint32
	awaiting bool
	stats    KeepAliveStats
	stop     chan struct{}
	running  bool
}

// NewKeepAlive creates a keep-alive. sendPing writes a Ping with the given
// sequence; onTimeout is called once after MaxMissedPongs misses.
func NewKeepAlive(cfg KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	return &KeepAlive{
		cfg:       cfg.withDefaults(),
		sendPing:  sendPing,
		onTimeout: onTimeout,
	}
}

// Start launches the ping loop. It stops with ctx or Stop.
func (k *KeepAlive) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return
	}
	k.running = true
	k.stop = make(chan struct{})
	go k.loop(ctx, k.stop)
}

// Stop ends the ping loop. It does not wait for it to exit.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return
	}
	k.running = false
	close(k.stop)
}

// Running reports whether the loop is active.
func (k *KeepAlive) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// Pong records a pong. Pongs for older pings are ignored.
func (k *KeepAlive) Pong(seq uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	k.stats.LastPong = now
	if k.awaiting && seq == k.seq {
		k.awaiting = false
		k.stats.Latency = now.Sub(k.stats.LastPing)
		k.stats.MissedPongs = 0
	}
}

// Stats returns a snapshot.
func (k *KeepAlive) Stats() KeepAliveStats {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.stats
	s.Sequence = k.seq
	return s
}

func (k *KeepAlive) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(k.cfg.PingInterval)
	defer ticker.Stop()

	k.ping()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if k.expired() {
				k.Stop()
				if k.onTimeout != nil {
					k.onTimeout()
				}
				return
			}
			k.ping()
		}
	}
}

// expired counts an unanswered ping and reports whether the limit is hit.
func (k *KeepAlive) expired() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.awaiting || time.Since(k.stats.LastPing) < k.cfg.PongTimeout {
		return false
	}
	k.awaiting = false
	k.stats.MissedPongs++
	return k.stats.MissedPongs >= k.cfg.MaxMissedPongs
}

func (k *KeepAlive) ping() {
	k.mu.Lock()
	k.seq++
	seq := k.seq
	k.stats.LastPing = time.Now()
	k.awaiting = true
	k.mu.Unlock()

	// A failed send is left to the pong timeout.
	_ = k.sendPing(seq)
}
