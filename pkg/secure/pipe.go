package secure

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/transport/v3/deadline"
)

// signal is a broadcast: every waiter holding the current channel is
// released when broadcast is called.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *signal) broadcast() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// pipe connects a TLS or DTLS implementation to the adapter's sockets.
// Inbound ciphertext is pushed by Feed; outbound ciphertext goes straight to
// sink. In packet mode every push is one datagram.
//
// It implements net.Conn for crypto/tls and net.PacketConn for pion/dtls.
type pipe struct {
	mu       sync.Mutex
	packet   bool
	stream   []byte
	packets  [][]byte
	waiting  bool
	received bool
	closed   bool
	avail    chan struct{}

	progress     *signal
	sink         func([]byte) error
	readDeadline *deadline.Deadline

	local  net.Addr
	remote net.Addr
}

func newPipe(packet bool, local, remote net.Addr, sink func([]byte) error, progress *signal) *pipe {
	return &pipe{
		packet:       packet,
		avail:        make(chan struct{}),
		progress:     progress,
		sink:         sink,
		readDeadline: deadline.New(),
		local:        local,
		remote:       remote,
	}
}

// push queues inbound ciphertext.
func (p *pipe) push(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return net.ErrClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	if p.packet {
		p.packets = append(p.packets, buf)
	} else {
		p.stream = append(p.stream, buf...)
	}
	p.received = true
	close(p.avail)
	p.avail = make(chan struct{})
	p.mu.Unlock()

	p.progress.broadcast()
	return nil
}

// idle reports whether the reader is blocked with nothing left to consume.
func (p *pipe) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed || (p.waiting && len(p.stream) == 0 && len(p.packets) == 0)
}

func (p *pipe) hasReceived() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

func (p *pipe) next(b []byte) (int, error) {
	p.mu.Lock()
	for {
		if p.packet && len(p.packets) > 0 {
			n := copy(b, p.packets[0])
			p.packets = p.packets[1:]
			p.waiting = false
			p.mu.Unlock()
			return n, nil
		}
		if !p.packet && len(p.stream) > 0 {
			n := copy(b, p.stream)
			p.stream = p.stream[n:]
			p.waiting = false
			p.mu.Unlock()
			return n, nil
		}
		if p.closed {
			p.waiting = false
			p.mu.Unlock()
			return 0, io.EOF
		}

		p.waiting = true
		avail := p.avail
		p.mu.Unlock()
		p.progress.broadcast()

		select {
		case <-avail:
		case <-p.readDeadline.Done():
			p.mu.Lock()
			p.waiting = false
			p.mu.Unlock()
			return 0, os.ErrDeadlineExceeded
		}
		p.mu.Lock()
	}
}

func (p *pipe) Read(b []byte) (int, error) {
	return p.next(b)
}

func (p *pipe) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := p.next(b)
	return n, p.remote, err
}

func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, net.ErrClosed
	}
	if err := p.sink(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p *pipe) WriteTo(b []byte, _ net.Addr) (int, error) {
	return p.Write(b)
}

func (p *pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.avail)
	p.avail = make(chan struct{})
	p.mu.Unlock()

	p.progress.broadcast()
	return nil
}

func (p *pipe) LocalAddr() net.Addr  { return p.local }
func (p *pipe) RemoteAddr() net.Addr { return p.remote }

func (p *pipe) SetDeadline(t time.Time) error {
	return p.SetReadDeadline(t)
}

func (p *pipe) SetReadDeadline(t time.Time) error {
	p.readDeadline.Set(t)
	return nil
}

// Writes go straight to the socket sink and never block on the pipe.
func (p *pipe) SetWriteDeadline(time.Time) error {
	return nil
}

// Compile-time interface checks.
var (
	_ net.Conn       = (*pipe)(nil)
	_ net.PacketConn = (*pipe)(nil)
)
