package secure

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/pion/dtls/v3"
)

// Configuration errors.
var (
	// ErrCertificateRequired indicates a certificate-based role without one.
	ErrCertificateRequired = errors.New("secure: certificate is required")

	// ErrPSKNotSupported indicates a PSK-only configuration on TLS, which
	// crypto/tls does not implement. PSK works on DTLS.
	ErrPSKNotSupported = errors.New("secure: PSK cipher suites need DTLS")

	// ErrUnknownCipherSuite indicates an unrecognised suite name.
	ErrUnknownCipherSuite = errors.New("secure: unknown cipher suite")

	// ErrCertificateRevoked indicates a peer certificate listed in the CRL.
	ErrCertificateRevoked = errors.New("secure: certificate revoked")

	// ErrNoPeerCertificate indicates a handshake that presented no certificate.
	ErrNoPeerCertificate = errors.New("secure: no peer certificate")
)

// Config holds the security material shared by all sessions of an adapter.
type Config struct {
	// Certificate is this node's certificate and key. Required for TLS.
	Certificate *tls.Certificate

	// RootCAs verifies server certificates.
	RootCAs *x509.CertPool

	// ClientCAs verifies client certificates. When set, servers require a
	// client certificate.
	ClientCAs *x509.CertPool

	// CRL lists revoked peer certificates.
	CRL *x509.RevocationList

	// CipherSuite is the preferred suite by IANA name, e.g.
	// "TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8". Empty selects the defaults.
	CipherSuite string

	// FallbackSuites allows the default suites after the preferred one.
	// Without it only CipherSuite is offered.
	FallbackSuites bool

	// PSK returns the pre-shared key for a peer's identity hint (DTLS only).
	PSK func(hint []byte) ([]byte, error)

	// PSKIdentityHint is sent to the peer with PSK suites.
	PSKIdentityHint []byte

	// ServerName is the expected server name for client connections.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool

	// Logger receives operational logs. Nil discards.
	Logger *slog.Logger
}

// HasCertificate reports whether a certificate is configured.
func (c *Config) HasCertificate() bool {
	return c != nil && c.Certificate != nil && len(c.Certificate.Certificate) > 0
}

// HasPSK reports whether a PSK callback is configured.
func (c *Config) HasPSK() bool {
	return c != nil && c.PSK != nil
}

// Default cipher suites, most preferred first.
var (
	defaultTLSSuites = []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	}

	defaultDTLSCertSuites = []dtls.CipherSuiteID{
		dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
		dtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	}

	defaultDTLSPSKSuites = []dtls.CipherSuiteID{
		dtls.TLS_PSK_WITH_AES_128_CCM_8,
		dtls.TLS_PSK_WITH_AES_128_GCM_SHA256,
	}

	knownDTLSSuites = []dtls.CipherSuiteID{
		dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM,
		dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
		dtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		dtls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		dtls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		dtls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		dtls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
		dtls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
		dtls.TLS_PSK_WITH_AES_128_CCM,
		dtls.TLS_PSK_WITH_AES_128_CCM_8,
		dtls.TLS_PSK_WITH_AES_256_CCM_8,
		dtls.TLS_PSK_WITH_AES_128_GCM_SHA256,
		dtls.TLS_PSK_WITH_AES_128_CBC_SHA256,
		dtls.TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256,
	}
)

// TLSCipherSuite resolves a crypto/tls suite by IANA name.
func TLSCipherSuite(name string) (uint16, error) {
	for _, s := range tls.CipherSuites() {
		if strings.EqualFold(s.Name, name) {
			return s.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCipherSuite, name)
}

// DTLSCipherSuite resolves a pion/dtls suite by IANA name.
func DTLSCipherSuite(name string) (dtls.CipherSuiteID, error) {
	for _, id := range knownDTLSSuites {
		if strings.EqualFold(dtls.CipherSuiteName(id), name) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCipherSuite, name)
}

// IsPSKSuite reports whether a suite name denotes a PSK key exchange.
func IsPSKSuite(name string) bool {
	return strings.Contains(strings.ToUpper(name), "_PSK_")
}

func (c *Config) tlsSuites() ([]uint16, error) {
	if c.CipherSuite == "" {
		return defaultTLSSuites, nil
	}
	if IsPSKSuite(c.CipherSuite) {
		return nil, fmt.Errorf("%w: %s", ErrPSKNotSupported, c.CipherSuite)
	}
	id, err := TLSCipherSuite(c.CipherSuite)
	if err != nil {
		return nil, err
	}
	return withFallback(id, defaultTLSSuites, c.FallbackSuites), nil
}

func (c *Config) dtlsSuites() ([]dtls.CipherSuiteID, error) {
	var defaults []dtls.CipherSuiteID
	if c.HasCertificate() {
		defaults = append(defaults, defaultDTLSCertSuites...)
	}
	if c.HasPSK() {
		defaults = append(defaults, defaultDTLSPSKSuites...)
	}
	if c.CipherSuite == "" {
		return defaults, nil
	}
	id, err := DTLSCipherSuite(c.CipherSuite)
	if err != nil {
		return nil, err
	}
	return withFallback(id, defaults, c.FallbackSuites), nil
}

func withFallback[T comparable](preferred T, defaults []T, fallback bool) []T {
	suites := []T{preferred}
	if !fallback {
		return suites
	}
	for _, s := range defaults {
		if s != preferred {
			suites = append(suites, s)
		}
	}
	return suites
}

// verifyPeer builds the VerifyPeerCertificate hook that enforces the CRL.
func (c *Config) verifyPeer() func([][]byte, [][]*x509.Certificate) error {
	if c.CRL == nil {
		return nil
	}
	revoked := make(map[string]struct{}, len(c.CRL.RevokedCertificateEntries))
	for _, entry := range c.CRL.RevokedCertificateEntries {
		revoked[serialKey(entry.SerialNumber)] = struct{}{}
	}

	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return nil
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("failed to parse peer certificate: %w", err)
		}
		if _, ok := revoked[serialKey(leaf.SerialNumber)]; ok {
			return fmt.Errorf("%w: serial %s", ErrCertificateRevoked, leaf.SerialNumber)
		}
		return nil
	}
}

func serialKey(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.Text(16)
}

// NewServerTLSConfig creates the crypto/tls configuration for accepted
// connections.
func NewServerTLSConfig(cfg *Config) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("secure config is required")
	}
	if !cfg.HasCertificate() {
		if cfg.HasPSK() {
			return nil, ErrPSKNotSupported
		}
		return nil, ErrCertificateRequired
	}
	suites, err := cfg.tlsSuites()
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{*cfg.Certificate},
		CipherSuites: suites,

		ClientAuth: tls.NoClientCert,
		ClientCAs:  cfg.ClientCAs,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		SessionTicketsDisabled: true,

		VerifyPeerCertificate: cfg.verifyPeer(),
	}
	if cfg.ClientCAs != nil {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	// A preferred suite without fallback pins TLS 1.2, where suites apply.
	if cfg.CipherSuite != "" && !cfg.FallbackSuites {
		tlsConfig.MaxVersion = tls.VersionTLS12
	}

	// For testing only
	if cfg.InsecureSkipVerify {
		tlsConfig.ClientAuth = tls.RequestClientCert
	}

	return tlsConfig, nil
}

// NewClientTLSConfig creates the crypto/tls configuration for dialled
// connections.
func NewClientTLSConfig(cfg *Config) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("secure config is required")
	}
	if !cfg.HasCertificate() {
		if cfg.HasPSK() {
			return nil, ErrPSKNotSupported
		}
		return nil, ErrCertificateRequired
	}
	suites, err := cfg.tlsSuites()
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{*cfg.Certificate},
		CipherSuites: suites,
		RootCAs:      cfg.RootCAs,
		ServerName:   cfg.ServerName,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		SessionTicketsDisabled: true,

		VerifyPeerCertificate: cfg.verifyPeer(),

		// For testing only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CipherSuite != "" && !cfg.FallbackSuites {
		tlsConfig.MaxVersion = tls.VersionTLS12
	}
	return tlsConfig, nil
}

// NewDTLSConfig creates the pion/dtls configuration for one role.
func NewDTLSConfig(cfg *Config, client bool) (*dtls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("secure config is required")
	}
	if !cfg.HasCertificate() && !cfg.HasPSK() {
		return nil, ErrCertificateRequired
	}
	suites, err := cfg.dtlsSuites()
	if err != nil {
		return nil, err
	}

	dtlsConfig := &dtls.Config{
		CipherSuites:          suites,
		RootCAs:               cfg.RootCAs,
		ClientCAs:             cfg.ClientCAs,
		ServerName:            cfg.ServerName,
		InsecureSkipVerify:    cfg.InsecureSkipVerify,
		ExtendedMasterSecret:  dtls.RequireExtendedMasterSecret,
		VerifyPeerCertificate: cfg.verifyPeer(),
		LoggerFactory:         NewLoggerFactory(cfg.Logger),
	}
	if cfg.HasCertificate() {
		dtlsConfig.Certificates = []tls.Certificate{*cfg.Certificate}
	}
	if cfg.HasPSK() {
		dtlsConfig.PSK = cfg.PSK
		dtlsConfig.PSKIdentityHint = cfg.PSKIdentityHint
		if client && dtlsConfig.PSKIdentityHint == nil {
			dtlsConfig.PSKIdentityHint = []byte{}
		}
	}
	if !client && cfg.HasCertificate() {
		switch {
		case cfg.InsecureSkipVerify:
			dtlsConfig.ClientAuth = dtls.RequestClientCert
		case cfg.ClientCAs != nil:
			dtlsConfig.ClientAuth = dtls.RequireAndVerifyClientCert
		}
	}
	return dtlsConfig, nil
}
