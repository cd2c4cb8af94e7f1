// Package config loads the YAML configuration of a node and turns it into
// a transport.Config.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iotivity/ca-go/pkg/cert"
	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/transport"
)

// ErrNoIdentity means secure listeners were requested without a
// certificate or PSK.
var ErrNoIdentity = errors.New("config: secure transport needs a certificate or PSK")

// Config is the node configuration file.
type Config struct {
	Listen    []Listener `yaml:"listen"`
	Security  Security   `yaml:"security"`
	Limits    Limits     `yaml:"limits"`
	Signaling Signaling  `yaml:"signaling"`
	Dial      Dial       `yaml:"dial"`
	Logging   Logging    `yaml:"logging"`
	Discovery Discovery  `yaml:"discovery"`
}

// Listener is one listening socket.
type Listener struct {
	Adapter string `yaml:"adapter"`
	Secure  bool   `yaml:"secure"`
	Address string `yaml:"address"`
}

// Security selects the TLS/DTLS material. Files named explicitly take
// precedence over the contents of CertDir.
type Security struct {
	CertDir            string        `yaml:"cert_dir"`
	Certificate        string        `yaml:"certificate"`
	Key                string        `yaml:"key"`
	CA                 string        `yaml:"ca"`
	CRL                string        `yaml:"crl"`
	CipherSuite        string        `yaml:"cipher_suite"`
	FallbackSuites     bool          `yaml:"fallback_suites"`
	ServerName         string        `yaml:"server_name"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	PSK                *PSK          `yaml:"psk"`
	SettleTimeout      time.Duration `yaml:"settle_timeout"`
}

// PSK configures pre-shared keys for DTLS.
type PSK struct {
	IdentityHint string `yaml:"identity_hint"`

	// Keys maps peer identities to hex encoded keys. The empty identity is
	// the fallback.
	Keys map[string]string `yaml:"keys"`
}

// Limits bounds resource use.
type Limits struct {
	MaxPeers       int `yaml:"max_peers"`
	MaxMessageSize int `yaml:"max_message_size"`
	PendingLimit   int `yaml:"pending_limit"`
	SendWorkers    int `yaml:"send_workers"`
	SendQueue      int `yaml:"send_queue"`
	InboundQueue   int `yaml:"inbound_queue"`

	// IdleTimeout closes DTLS sessions without traffic. Negative disables.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Signaling configures CoAP-over-TCP signaling.
type Signaling struct {
	CSM       bool      `yaml:"csm"`
	KeepAlive KeepAlive `yaml:"keepalive"`
}

// KeepAlive configures Ping/Pong liveness checks.
type KeepAlive struct {
	Enabled        bool          `yaml:"enabled"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	MaxMissedPongs int           `yaml:"max_missed_pongs"`
}

// Dial configures outgoing connections.
type Dial struct {
	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`
	Backoff  Backoff       `yaml:"backoff"`
}

// Backoff configures dial retry delays.
type Backoff struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// Logging configures operational and protocol logs.
type Logging struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ProtocolLog string `yaml:"protocol_log"`
}

// Discovery configures DNS-SD advertisement.
type Discovery struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Default returns the configuration used when no file is given: plaintext
// TCP and UDP on the CoAP port.
func Default() *Config {
	tc := transport.DefaultConfig()
	c := &Config{
		Limits: Limits{
			MaxPeers:       tc.MaxPeers,
			MaxMessageSize: tc.MaxMessageSize,
			SendWorkers:    tc.SendWorkers,
			SendQueue:      tc.SendQueueSize,
			InboundQueue:   tc.InboundQueueSize,
			IdleTimeout:    tc.IdleTimeout,
		},
		Signaling: Signaling{
			CSM: tc.SendCSM,
			KeepAlive: KeepAlive{
				PingInterval:   transport.DefaultPingInterval,
				PongTimeout:    transport.DefaultPongTimeout,
				MaxMissedPongs: transport.DefaultMaxMissedPongs,
			},
		},
		Dial: Dial{
			Timeout:  tc.DialTimeout,
			Attempts: tc.DialAttempts,
			Backoff: Backoff{
				Initial:    tc.DialBackoff.Initial,
				Max:        tc.DialBackoff.Max,
				Multiplier: tc.DialBackoff.Multiplier,
				Jitter:     tc.DialBackoff.Jitter,
			},
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
	for _, l := range tc.Listeners {
		c.Listen = append(c.Listen, Listener{
			Adapter: strings.ToLower(l.Adapter.String()),
			Secure:  l.Secure,
			Address: l.Address,
		})
	}
	return c
}

// Parse decodes YAML on top of the defaults. A listen section replaces the
// default listeners.
func Parse(data []byte) (*Config, error) {
	c := Default()
	c.Listen = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if c.Listen == nil {
		c.Listen = Default().Listen
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks listener definitions and log settings.
func (c *Config) Validate() error {
	for i, l := range c.Listen {
		if _, err := endpoint.ParseAdapter(l.Adapter); err != nil {
			return fmt.Errorf("listen[%d]: %w", i, err)
		}
		if _, _, err := net.SplitHostPort(l.Address); err != nil {
			return fmt.Errorf("listen[%d]: %w", i, err)
		}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Security.PSK != nil {
		for id, key := range c.Security.PSK.Keys {
			if _, err := hex.DecodeString(key); err != nil {
				return fmt.Errorf("psk key %q: %w", id, err)
			}
		}
	}
	return nil
}

// HasSecureListener reports whether any listener is secure.
func (c *Config) HasSecureListener() bool {
	for _, l := range c.Listen {
		if l.Secure {
			return true
		}
	}
	return false
}

// SecurityEnabled reports whether TLS/DTLS material is configured.
func (c *Config) SecurityEnabled() bool {
	s := c.Security
	return s.CertDir != "" || s.Certificate != "" || s.PSK != nil
}

// SecureConfig builds the TLS/DTLS configuration. It returns nil when no
// security material is configured.
func (c *Config) SecureConfig(logger *slog.Logger) (*secure.Config, error) {
	if !c.SecurityEnabled() {
		if c.HasSecureListener() {
			return nil, ErrNoIdentity
		}
		return nil, nil
	}
	s := c.Security
	out := &secure.Config{
		CipherSuite:        s.CipherSuite,
		FallbackSuites:     s.FallbackSuites,
		ServerName:         s.ServerName,
		InsecureSkipVerify: s.InsecureSkipVerify,
		Logger:             logger,
	}

	if s.CertDir != "" {
		store := cert.NewFileStore(s.CertDir)
		if err := store.Load(); err != nil {
			return nil, fmt.Errorf("cert dir %s: %w", s.CertDir, err)
		}
		applyStore(out, store)
	}

	if s.Certificate != "" {
		pair, err := cert.LoadKeyPair(s.Certificate, s.Key)
		if err != nil {
			return nil, err
		}
		out.Certificate = &pair
	}
	if s.CA != "" {
		pool, err := cert.LoadCertPool(s.CA)
		if err != nil {
			return nil, err
		}
		out.RootCAs, out.ClientCAs = pool, pool
	}
	if s.CRL != "" {
		crl, err := cert.LoadCRL(s.CRL)
		if err != nil {
			return nil, err
		}
		out.CRL = crl
	}
	if s.PSK != nil {
		out.PSK = pskCallback(s.PSK.Keys)
		out.PSKIdentityHint = []byte(s.PSK.IdentityHint)
	}

	if !out.HasCertificate() && !out.HasPSK() {
		return nil, ErrNoIdentity
	}
	return out, nil
}

// applyStore copies a certificate store's contents into cfg.
func applyStore(cfg *secure.Config, store cert.Store) {
	if id, err := store.Identity(); err == nil {
		pair := id.TLSCertificate()
		cfg.Certificate = &pair
	}
	if pool := cert.TrustPool(store); pool != nil {
		cfg.RootCAs, cfg.ClientCAs = pool, pool
	}
	cfg.CRL = store.CRL()
}

func pskCallback(keys map[string]string) func([]byte) ([]byte, error) {
	decoded := make(map[string][]byte, len(keys))
	for id, k := range keys {
		b, _ := hex.DecodeString(k)
		decoded[id] = b
	}
	return func(hint []byte) ([]byte, error) {
		if k, ok := decoded[string(hint)]; ok {
			return k, nil
		}
		if k, ok := decoded[""]; ok {
			return k, nil
		}
		return nil, fmt.Errorf("no PSK for identity %q", hint)
	}
}

// Transport builds the adapter configuration.
func (c *Config) Transport(logger *slog.Logger, protocol log.Logger) (transport.Config, error) {
	tc := transport.DefaultConfig()
	tc.Listeners = nil
	for _, l := range c.Listen {
		adapter, _ := endpoint.ParseAdapter(l.Adapter)
		tc.Listeners = append(tc.Listeners, transport.ListenerConfig{
			Adapter: adapter,
			Secure:  l.Secure,
			Address: l.Address,
		})
	}

	sec, err := c.SecureConfig(logger)
	if err != nil {
		return transport.Config{}, err
	}
	tc.Security = sec
	tc.SettleTimeout = c.Security.SettleTimeout

	tc.MaxPeers = c.Limits.MaxPeers
	tc.MaxMessageSize = c.Limits.MaxMessageSize
	tc.PendingLimit = c.Limits.PendingLimit
	tc.SendWorkers = c.Limits.SendWorkers
	tc.SendQueueSize = c.Limits.SendQueue
	tc.InboundQueueSize = c.Limits.InboundQueue
	tc.IdleTimeout = c.Limits.IdleTimeout

	tc.SendCSM = c.Signaling.CSM
	if ka := c.Signaling.KeepAlive; ka.Enabled {
		tc.KeepAlive = &transport.KeepAliveConfig{
			PingInterval:   ka.PingInterval,
			PongTimeout:    ka.PongTimeout,
			MaxMissedPongs: ka.MaxMissedPongs,
		}
	}

	tc.DialTimeout = c.Dial.Timeout
	tc.DialAttempts = c.Dial.Attempts
	tc.DialBackoff = transport.BackoffConfig{
		Initial:    c.Dial.Backoff.Initial,
		Max:        c.Dial.Backoff.Max,
		Multiplier: c.Dial.Backoff.Multiplier,
		Jitter:     c.Dial.Backoff.Jitter,
	}

	tc.Logger = logger
	tc.ProtocolLogger = protocol
	return tc, nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "trace":
		return secure.LevelTrace, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", name)
	}
}
