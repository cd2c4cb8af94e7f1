package session

import (
	"net"
	"sync"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

// fakeSocket records everything sent through it.
type fakeSocket struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	err    error
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
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5684}
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

func tcpEndpoint(addr string, port uint16, flags endpoint.Flags) endpoint.Endpoint {
	return endpoint.New(endpoint.AdapterTCP, flags|endpoint.FlagIPv4, addr, port)
}
