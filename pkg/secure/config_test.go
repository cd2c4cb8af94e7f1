package secure

import (
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"testing"

	"github.com/pion/dtls/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

func TestNewServerTLSConfig(t *testing.T) {
	cert := generateTestCertificate(t, "server", 1)

	tlsConfig, err := NewServerTLSConfig(&Config{Certificate: &cert})
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", tlsConfig.MinVersion)
	}
	if tlsConfig.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want NoClientCert", tlsConfig.ClientAuth)
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)
	tlsConfig, err = NewServerTLSConfig(&Config{Certificate: &cert, ClientCAs: pool})
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, tlsConfig.ClientAuth)
}

func TestNewServerTLSConfigNoCert(t *testing.T) {
	_, err := NewServerTLSConfig(&Config{})
	assert.ErrorIs(t, err, ErrCertificateRequired)

	_, err = NewServerTLSConfig(nil)
	assert.Error(t, err)
}

func TestTLSConfigRejectsPSK(t *testing.T) {
	psk := func([]byte) ([]byte, error) { return []byte("k"), nil }

	_, err := NewClientTLSConfig(&Config{PSK: psk})
	assert.ErrorIs(t, err, ErrPSKNotSupported)

	cert := generateTestCertificate(t, "c", 1)
	_, err = NewClientTLSConfig(&Config{Certificate: &cert, CipherSuite: "TLS_PSK_WITH_AES_128_CCM_8"})
	assert.ErrorIs(t, err, ErrPSKNotSupported)
}

func TestPreferredSuite(t *testing.T) {
	cert := generateTestCertificate(t, "c", 1)

	cfg := &Config{Certificate: &cert, CipherSuite: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384"}
	tlsConfig, err := NewClientTLSConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384}, tlsConfig.CipherSuites)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MaxVersion)

	cfg.FallbackSuites = true
	tlsConfig, err = NewClientTLSConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, tlsConfig.CipherSuites[0])
	assert.Len(t, tlsConfig.CipherSuites, len(defaultTLSSuites))
	assert.Zero(t, tlsConfig.MaxVersion)
}

func TestUnknownSuite(t *testing.T) {
	cert := generateTestCertificate(t, "c", 1)
	_, err := NewServerTLSConfig(&Config{Certificate: &cert, CipherSuite: "TLS_NOPE"})
	assert.ErrorIs(t, err, ErrUnknownCipherSuite)

	_, err = DTLSCipherSuite("TLS_NOPE")
	assert.ErrorIs(t, err, ErrUnknownCipherSuite)
}

func TestNewDTLSConfig(t *testing.T) {
	psk := func([]byte) ([]byte, error) { return []byte("k"), nil }

	client, err := NewDTLSConfig(&Config{PSK: psk}, true)
	require.NoError(t, err)
	assert.Equal(t, defaultDTLSPSKSuites, client.CipherSuites)
	assert.NotNil(t, client.PSKIdentityHint, "pion requires a client identity hint")
	assert.NotNil(t, client.LoggerFactory)

	cert := generateTestCertificate(t, "s", 1)
	server, err := NewDTLSConfig(&Config{Certificate: &cert, PSK: psk, InsecureSkipVerify: true}, false)
	require.NoError(t, err)
	assert.Equal(t, dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8, server.CipherSuites[0])
	assert.Contains(t, server.CipherSuites, dtls.TLS_PSK_WITH_AES_128_CCM_8)
	assert.Equal(t, dtls.RequestClientCert, server.ClientAuth)

	_, err = NewDTLSConfig(&Config{}, false)
	assert.ErrorIs(t, err, ErrCertificateRequired)
}

func TestFactorySupports(t *testing.T) {
	psk := func([]byte) ([]byte, error) { return []byte("k"), nil }
	f, err := NewFactory(&Config{PSK: psk})
	require.NoError(t, err)

	assert.NoError(t, f.Supports(endpoint.AdapterUDP))
	assert.ErrorIs(t, f.Supports(endpoint.AdapterTCP), ErrPSKNotSupported)

	_, err = f.NewEngine(endpoint.AdapterTCP, true, EngineOptions{Sink: func([]byte) error { return nil }})
	assert.ErrorIs(t, err, ErrPSKNotSupported)

	_, err = NewFactory(&Config{})
	assert.Error(t, err)
}

func TestCRLVerification(t *testing.T) {
	revoked := generateTestCertificate(t, "revoked", 42)
	good := generateTestCertificate(t, "good", 43)

	cfg := &Config{CRL: &x509.RevocationList{
		RevokedCertificateEntries: []x509.RevocationListEntry{{SerialNumber: big.NewInt(42)}},
	}}
	verify := cfg.verifyPeer()
	require.NotNil(t, verify)

	assert.ErrorIs(t, verify([][]byte{revoked.Certificate[0]}, nil), ErrCertificateRevoked)
	assert.NoError(t, verify([][]byte{good.Certificate[0]}, nil))
	assert.NoError(t, verify(nil, nil))

	assert.Nil(t, (&Config{}).verifyPeer())
}
