package transport

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/framing"
	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/session"
)

// Adapter defaults.
const (
	DefaultSendWorkers      = 4
	DefaultSendQueueSize    = 64
	DefaultInboundQueueSize = 256
	DefaultDialTimeout      = 10 * time.Second
	DefaultDialAttempts     = 3
	DefaultWriteTimeout     = 10 * time.Second
	DefaultIdleTimeout      = 5 * time.Minute
)

// ListenerConfig describes one listening socket.
type ListenerConfig struct {
	Adapter endpoint.Adapter

	// Secure listeners run TLS (TCP) or DTLS (UDP).
	Secure bool

	// Address is host:port. An IPv4 or IPv6 literal host binds that family
	// only; port 0 picks a free port.
	Address string
}

// Network returns the net package network for the listener.
func (l ListenerConfig) Network() string {
	return familyNetwork(l.Adapter, l.Address)
}

// Config configures an Adapter.
type Config struct {
	Listeners []ListenerConfig

	// Security configures TLS and DTLS. Nil disables secure endpoints.
	Security *secure.Config

	// MaxPeers bounds simultaneous sessions (0 uses session.DefaultMaxSessions,
	// negative is unlimited).
	MaxPeers int

	// MaxMessageSize bounds CoAP-over-TCP messages.
	MaxMessageSize int

	// PendingLimit caps each session's pending queue, 0 for unbounded.
	PendingLimit int

	// SendCSM sends a CSM when TCP sessions start.
	SendCSM bool

	// KeepAlive enables Ping/Pong on TCP sessions.
	KeepAlive *KeepAliveConfig

	// IdleTimeout closes DTLS sessions without traffic (0 uses
	// DefaultIdleTimeout, negative disables it).
	IdleTimeout time.Duration

	SendWorkers      int
	SendQueueSize    int
	InboundQueueSize int

	DialTimeout  time.Duration
	DialAttempts int
	DialBackoff  BackoffConfig
	WriteTimeout time.Duration

	// SettleTimeout overrides secure.DefaultSettleTimeout.
	SettleTimeout time.Duration

	Logger         *slog.Logger
	ProtocolLogger log.Logger
}

// DefaultListeners returns IPv4 and IPv6 listeners for TCP and UDP on the
// CoAP ports, plus their secure variants when withSecure is set.
func DefaultListeners(withSecure bool) []ListenerConfig {
	var out []ListenerConfig
	for _, host := range []string{"0.0.0.0", "::"} {
		for _, adapter := range []endpoint.Adapter{endpoint.AdapterTCP, endpoint.AdapterUDP} {
			out = append(out, ListenerConfig{
				Adapter: adapter,
				Address: net.JoinHostPort(host, strconv.Itoa(endpoint.DefaultPort)),
			})
			if withSecure {
				out = append(out, ListenerConfig{
					Adapter: adapter,
					Secure:  true,
					Address: net.JoinHostPort(host, strconv.Itoa(endpoint.DefaultSecurePort)),
				})
			}
		}
	}
	return out
}

// DefaultConfig returns a plaintext configuration on the default ports.
func DefaultConfig() Config {
	return Config{
		Listeners:        DefaultListeners(false),
		MaxPeers:         session.DefaultMaxSessions,
		MaxMessageSize:   framing.DefaultMaxMessageSize,
		SendCSM:          true,
		SendWorkers:      DefaultSendWorkers,
		SendQueueSize:    DefaultSendQueueSize,
		InboundQueueSize: DefaultInboundQueueSize,
		DialTimeout:      DefaultDialTimeout,
		DialAttempts:     DefaultDialAttempts,
		DialBackoff:      DefaultBackoffConfig(),
		WriteTimeout:     DefaultWriteTimeout,
		IdleTimeout:      DefaultIdleTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = framing.DefaultMaxMessageSize
	}
	if c.SendWorkers <= 0 {
		c.SendWorkers = DefaultSendWorkers
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.InboundQueueSize <= 0 {
		c.InboundQueueSize = DefaultInboundQueueSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.DialAttempts <= 0 {
		c.DialAttempts = DefaultDialAttempts
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Validate checks the listener set against the security configuration.
func (c *Config) Validate() error {
	for _, l := range c.Listeners {
		if !l.Adapter.IsValid() {
			return fmt.Errorf("listener %q: invalid adapter", l.Address)
		}
		if _, _, err := net.SplitHostPort(l.Address); err != nil {
			return fmt.Errorf("listener %q: %w", l.Address, err)
		}
		if l.Secure && c.Security == nil {
			return fmt.Errorf("listener %s %q: %w", l.Adapter, l.Address, ErrSecureDisabled)
		}
	}
	return nil
}

// familyNetwork picks tcp4/tcp6/udp4/udp6 from an address literal, or the
// dual-stack network for host names.
func familyNetwork(adapter endpoint.Adapter, address string) string {
	network := adapter.Network()
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return network
	}
	ip := net.ParseIP(host)
	switch {
	case ip == nil:
		return network
	case ip.To4() != nil:
		return network + "4"
	default:
		return network + "6"
	}
}
