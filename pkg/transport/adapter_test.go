package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/secure"
)

type received struct {
	ep      endpoint.Endpoint
	payload []byte
}

// startEcho starts an adapter that sends every message back to its sender.
func startEcho(t *testing.T, cfg Config, got chan<- received) *Adapter {
	t.Helper()
	var a *Adapter
	h := HandlerFuncs{
		Message: func(ep endpoint.Endpoint, payload []byte) {
			got <- received{ep: ep, payload: payload}
			if err := a.Send(ep, payload); err != nil {
				t.Errorf("echo: %v", err)
			}
		},
	}
	a, err := New(cfg, h)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop() })
	return a
}

func collectHandler(got chan<- received) Handler {
	return HandlerFuncs{
		Message: func(ep endpoint.Endpoint, payload []byte) {
			got <- received{ep: ep, payload: payload}
		},
	}
}

func testConfig(listeners ...ListenerConfig) Config {
	cfg := DefaultConfig()
	cfg.Listeners = listeners
	cfg.SendCSM = false
	cfg.DialAttempts = 1
	return cfg
}

func startAdapter(t *testing.T, cfg Config, h Handler) *Adapter {
	t.Helper()
	a, err := New(cfg, h)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop() })
	return a
}

func endpointFor(t *testing.T, adapter endpoint.Adapter, addr net.Addr, secureFlag bool) endpoint.Endpoint {
	t.Helper()
	ep, err := endpoint.FromAddr(adapter, addr, secureFlag)
	require.NoError(t, err)
	return ep
}

func waitReceived(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return received{}
	}
}

func TestAdapterTCPEcho(t *testing.T) {
	serverGot := make(chan received, 4)
	server := startEcho(t, testConfig(ListenerConfig{Adapter: endpoint.AdapterTCP, Address: "127.0.0.1:0"}), serverGot)

	clientGot := make(chan received, 4)
	client := startAdapter(t, testConfig(), collectHandler(clientGot))

	ep := endpointFor(t, endpoint.AdapterTCP, server.Addr(endpoint.AdapterTCP, false), false)
	frame := getFrame(t, 9)
	require.NoError(t, client.Send(ep, frame))

	assert.Equal(t, frame, waitReceived(t, serverGot).payload)
	echo := waitReceived(t, clientGot)
	assert.Equal(t, frame, echo.payload)
	assert.True(t, echo.ep.Matches(ep))

	sessions := client.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Connected)
	assert.Equal(t, "CLIENT", sessions[0].Role.String())
}

func TestAdapterUDPEcho(t *testing.T) {
	serverGot := make(chan received, 4)
	server := startEcho(t, testConfig(ListenerConfig{Adapter: endpoint.AdapterUDP, Address: "127.0.0.1:0"}), serverGot)

	clientGot := make(chan received, 4)
	client := startAdapter(t, testConfig(), collectHandler(clientGot))

	ep := endpointFor(t, endpoint.AdapterUDP, server.Addr(endpoint.AdapterUDP, false), false)
	dgram := []byte{0x40, 0x01, 0x00, 0x07, 0xB1, 'a'}
	require.NoError(t, client.Send(ep, dgram))

	assert.Equal(t, dgram, waitReceived(t, serverGot).payload)
	assert.Equal(t, dgram, waitReceived(t, clientGot).payload)

	// Plaintext datagrams never occupy a session slot.
	assert.Empty(t, server.Sessions())
	assert.Empty(t, client.Sessions())
}

func TestAdapterTLSEcho(t *testing.T) {
	serverCert := testCertificate(t, "server")
	clientCert := testCertificate(t, "client")

	serverCfg := testConfig(ListenerConfig{Adapter: endpoint.AdapterTCP, Secure: true, Address: "127.0.0.1:0"})
	serverCfg.Security = &secure.Config{Certificate: &serverCert, InsecureSkipVerify: true}

	serverGot := make(chan received, 4)
	server := startEcho(t, serverCfg, serverGot)

	clientCfg := testConfig()
	clientCfg.Security = &secure.Config{Certificate: &clientCert, InsecureSkipVerify: true}
	clientGot := make(chan received, 4)
	client := startAdapter(t, clientCfg, collectHandler(clientGot))

	ep := endpointFor(t, endpoint.AdapterTCP, server.Addr(endpoint.AdapterTCP, true), true)
	frame := getFrame(t, 5)

	// Sent before the handshake; delivered after it.
	require.NoError(t, client.Send(ep, frame))

	assert.Equal(t, frame, waitReceived(t, serverGot).payload)
	assert.Equal(t, frame, waitReceived(t, clientGot).payload)
}

func TestAdapterSendErrors(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Send(tcpPeer(false), getFrame(t, 1)), ErrNotRunning)

	require.NoError(t, a.Start(context.Background()))
	assert.ErrorIs(t, a.Start(context.Background()), ErrAlreadyRunning)
	assert.ErrorIs(t, a.Send(tcpPeer(false), []byte{0xFF}), ErrInvalidMessage)

	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
	assert.ErrorIs(t, a.Send(tcpPeer(false), getFrame(t, 1)), ErrNotRunning)
}

func TestAdapterReportsDialFailure(t *testing.T) {
	// Reserve a port, then free it so nothing listens there.
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr()
	require.NoError(t, l.Close())

	rec := &recorder{}
	cfg := testConfig()
	cfg.DialTimeout = time.Second
	a := startAdapter(t, cfg, rec)

	require.NoError(t, a.Send(endpointFor(t, endpoint.AdapterTCP, addr, false), getFrame(t, 1)))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sendErrors) == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.ErrorIs(t, rec.sendErrors[0], ErrConnectFailed)
}

func TestAdapterSecureListenerNeedsSecurity(t *testing.T) {
	_, err := New(testConfig(ListenerConfig{Adapter: endpoint.AdapterTCP, Secure: true, Address: "127.0.0.1:0"}), nil)
	assert.ErrorIs(t, err, ErrSecureDisabled)
}

func TestAdapterStopClosesSessions(t *testing.T) {
	serverGot := make(chan received, 4)
	server := startAdapter(t, testConfig(ListenerConfig{Adapter: endpoint.AdapterTCP, Address: "127.0.0.1:0"}),
		collectHandler(serverGot))

	client := startAdapter(t, testConfig(), nil)
	ep := endpointFor(t, endpoint.AdapterTCP, server.Addr(endpoint.AdapterTCP, false), false)
	require.NoError(t, client.Send(ep, getFrame(t, 1)))
	waitReceived(t, serverGot)
	require.Len(t, server.Sessions(), 1)

	// Stopping the client releases the connection; the server notices.
	require.NoError(t, client.Stop())
	assert.Empty(t, client.Sessions())
	require.Eventually(t, func() bool { return len(server.Sessions()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestListenerNetwork(t *testing.T) {
	assert.Equal(t, "tcp4", ListenerConfig{Adapter: endpoint.AdapterTCP, Address: "0.0.0.0:5683"}.Network())
	assert.Equal(t, "udp6", ListenerConfig{Adapter: endpoint.AdapterUDP, Address: "[::]:5683"}.Network())
	assert.Equal(t, "tcp", ListenerConfig{Adapter: endpoint.AdapterTCP, Address: "localhost:5683"}.Network())
}

func TestDefaultListeners(t *testing.T) {
	assert.Len(t, DefaultListeners(false), 4)
	secureListeners := 0
	for _, l := range DefaultListeners(true) {
		if l.Secure {
			secureListeners++
			assert.Contains(t, l.Address, "5684")
		}
	}
	assert.Equal(t, 4, secureListeners)
}

func testCertificate(t *testing.T, cn string) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}

func trackedStreams(a *Adapter) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.streams)
}

// A connection refused by the peer limit is closed and forgotten.
func TestAdapterRejectedStreamReleased(t *testing.T) {
	cfg := testConfig(ListenerConfig{Adapter: endpoint.AdapterTCP, Address: "127.0.0.1:0"})
	cfg.MaxPeers = 1
	server := startAdapter(t, cfg, nil)
	addr := server.Addr(endpoint.AdapterTCP, false).String()

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return len(server.Sessions()) == 1 }, 5*time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = second.Read(make([]byte, 1))
	require.Error(t, err)
	var ne net.Error
	assert.False(t, errors.As(err, &ne) && ne.Timeout(), "refused connection was not closed")

	require.Eventually(t, func() bool { return trackedStreams(server) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, server.Sessions(), 1)
}
