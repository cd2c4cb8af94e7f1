package secure

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pion/dtls/v3"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

// EngineOptions carries the per-session parts of an engine.
type EngineOptions struct {
	// Local and Remote are reported by the engine's connection.
	Local  net.Addr
	Remote net.Addr

	// Sink writes ciphertext to the peer. It may be called from any
	// goroutine.
	Sink func([]byte) error

	// SettleTimeout overrides DefaultSettleTimeout.
	SettleTimeout time.Duration

	Logger *slog.Logger
}

func (o EngineOptions) validate() error {
	if o.Sink == nil {
		return errors.New("secure: engine sink is required")
	}
	return nil
}

// NewTLSEngine creates a crypto/tls engine for a stream connection.
func NewTLSEngine(cfg *tls.Config, client bool, opts EngineOptions) (Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newConduit(conduitConfig{
		packet: false,
		local:  opts.Local,
		remote: opts.Remote,
		sink:   opts.Sink,
		dial: func(p *pipe) (secureConn, error) {
			if client {
				return tls.Client(p, cfg), nil
			}
			return tls.Server(p, cfg), nil
		},
		peers: func(conn secureConn) []*x509.Certificate {
			tc, ok := conn.(*tls.Conn)
			if !ok {
				return nil
			}
			return tc.ConnectionState().PeerCertificates
		},
		settle: opts.SettleTimeout,
		logger: opts.Logger,
	})
}

// NewDTLSEngine creates a pion/dtls engine for a datagram peer.
func NewDTLSEngine(cfg *dtls.Config, client bool, opts EngineOptions) (Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newConduit(conduitConfig{
		packet: true,
		local:  opts.Local,
		remote: opts.Remote,
		sink:   opts.Sink,
		dial: func(p *pipe) (secureConn, error) {
			if client {
				return dtls.Client(p, p.remote, cfg)
			}
			return dtls.Server(p, p.remote, cfg)
		},
		peers: func(conn secureConn) []*x509.Certificate {
			dc, ok := conn.(*dtls.Conn)
			if !ok {
				return nil
			}
			state, ok := dc.ConnectionState()
			if !ok {
				return nil
			}
			chain := make([]*x509.Certificate, 0, len(state.PeerCertificates))
			for _, raw := range state.PeerCertificates {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return chain
				}
				chain = append(chain, cert)
			}
			return chain
		},
		settle: opts.SettleTimeout,
		logger: opts.Logger,
	})
}

// Factory builds engines from one Config: TLS for TCP sessions, DTLS for
// UDP sessions.
type Factory struct {
	tlsServer, tlsClient   *tls.Config
	tlsErr                 error
	dtlsServer, dtlsClient *dtls.Config
	dtlsErr                error
	settle                 time.Duration
	logger                 *slog.Logger
}

// NewFactory validates cfg and prepares per-role configurations. A config
// that serves only one transport (e.g. PSK only) is accepted; engines for the
// other transport fail with the configuration error.
func NewFactory(cfg *Config) (*Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("secure config is required")
	}
	f := &Factory{logger: cfg.Logger}

	if f.tlsServer, f.tlsErr = NewServerTLSConfig(cfg); f.tlsErr == nil {
		f.tlsClient, f.tlsErr = NewClientTLSConfig(cfg)
	}
	if f.dtlsServer, f.dtlsErr = NewDTLSConfig(cfg, false); f.dtlsErr == nil {
		f.dtlsClient, f.dtlsErr = NewDTLSConfig(cfg, true)
	}
	if f.tlsErr != nil && f.dtlsErr != nil {
		return nil, f.tlsErr
	}
	return f, nil
}

// SetSettleTimeout overrides DefaultSettleTimeout for new engines.
func (f *Factory) SetSettleTimeout(d time.Duration) {
	f.settle = d
}

// Supports reports whether engines can be built for the adapter.
func (f *Factory) Supports(adapter endpoint.Adapter) error {
	switch adapter {
	case endpoint.AdapterTCP:
		return f.tlsErr
	case endpoint.AdapterUDP:
		return f.dtlsErr
	default:
		return fmt.Errorf("secure: no engine for adapter %s", adapter)
	}
}

// NewEngine creates an engine for a session on the given adapter.
func (f *Factory) NewEngine(adapter endpoint.Adapter, client bool, opts EngineOptions) (Engine, error) {
	if err := f.Supports(adapter); err != nil {
		return nil, err
	}
	if opts.SettleTimeout == 0 {
		opts.SettleTimeout = f.settle
	}
	if opts.Logger == nil {
		opts.Logger = f.logger
	}

	if adapter == endpoint.AdapterTCP {
		cfg := f.tlsServer
		if client {
			cfg = f.tlsClient
		}
		return NewTLSEngine(cfg, client, opts)
	}
	cfg := f.dtlsServer
	if client {
		cfg = f.dtlsClient
	}
	return NewDTLSEngine(cfg, client, opts)
}
