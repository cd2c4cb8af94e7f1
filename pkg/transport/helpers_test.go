package transport

import (
	"context"
	"net"
	"sync"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/session"
)

// fakeSocket records writes instead of sending them.
type fakeSocket struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	started bool
	err     error
}

func (f *fakeSocket) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	return nil
}

func (f *fakeSocket) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5683}
}
func (f *fakeSocket) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 40000}
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeSocket) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// dialerFunc adapts a function to Dialer.
type dialerFunc func(ctx context.Context, ep endpoint.Endpoint) (session.Socket, error)

func (f dialerFunc) Dial(ctx context.Context, ep endpoint.Endpoint) (session.Socket, error) {
	return f(ctx, ep)
}

// socketDialer hands out fresh fake sockets and remembers them.
type socketDialer struct {
	mu      sync.Mutex
	sockets []*fakeSocket
}

func (d *socketDialer) Dial(context.Context, endpoint.Endpoint) (session.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeSocket{}
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *socketDialer) last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}

// engineFactory returns pre-built engines in order.
type engineFactory struct {
	mu      sync.Mutex
	engines []secure.Engine
	opts    []secure.EngineOptions
}

func (f *engineFactory) Supports(endpoint.Adapter) error { return nil }

func (f *engineFactory) NewEngine(_ endpoint.Adapter, _ bool, opts secure.EngineOptions) (secure.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.engines[0]
	f.engines = f.engines[1:]
	f.opts = append(f.opts, opts)
	return e, nil
}

type stateChange struct {
	ep        endpoint.Endpoint
	connected bool
	client    bool
}

// recorder is a Handler that keeps every callback.
type recorder struct {
	mu         sync.Mutex
	messages   [][]byte
	states     []stateChange
	sendErrors []error
}

func (r *recorder) OnMessage(_ endpoint.Endpoint, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, payload)
}

func (r *recorder) OnConnectionStateChanged(ep endpoint.Endpoint, connected bool, isClient bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, stateChange{ep: ep, connected: connected, client: isClient})
}

func (r *recorder) OnSendError(_ endpoint.Endpoint, _ []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendErrors = append(r.sendErrors, err)
}

func (r *recorder) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

func (r *recorder) States() []stateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stateChange(nil), r.states...)
}

func tcpPeer(secureFlag bool) endpoint.Endpoint {
	flags := endpoint.FlagIPv4
	if secureFlag {
		flags |= endpoint.FlagSecure
	}
	return endpoint.New(endpoint.AdapterTCP, flags, "10.0.0.2", 40000)
}

func udpPeer() endpoint.Endpoint {
	return endpoint.New(endpoint.AdapterUDP, endpoint.FlagIPv4, "10.0.0.3", 5683)
}

// tlsRecord wraps body in an application-data record header.
func tlsRecord(body []byte) []byte {
	out := []byte{23, 0x03, 0x03, byte(len(body) >> 8), byte(len(body))}
	return append(out, body...)
}
