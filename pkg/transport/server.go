package transport

import (
	"errors"
	"net"
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

const (
	// streamReadSize is the read buffer for TCP connections.
	streamReadSize = 16 << 10

	// packetReadSize fits any UDP datagram.
	packetReadSize = 64 << 10

	acceptRetryDelay = 50 * time.Millisecond
)

// listener is one bound socket: a stream listener for TCP or a packet
// socket for UDP.
type listener struct {
	cfg    ListenerConfig
	stream net.Listener
	packet net.PacketConn
}

func (l *listener) Addr() net.Addr {
	if l.stream != nil {
		return l.stream.Addr()
	}
	return l.packet.LocalAddr()
}

func (l *listener) Close() error {
	if l.stream != nil {
		return l.stream.Close()
	}
	return l.packet.Close()
}

func (a *Adapter) listen(lc ListenerConfig) (*listener, error) {
	l := &listener{cfg: lc}
	var err error
	switch lc.Adapter {
	case endpoint.AdapterTCP:
		l.stream, err = net.Listen(lc.Network(), lc.Address)
	case endpoint.AdapterUDP:
		l.packet, err = net.ListenPacket(lc.Network(), lc.Address)
	default:
		err = ErrInvalidEndpoint
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// acceptLoop accepts TCP connections and hands them to the receiver loop.
// Reading starts once the dispatcher has attached a session.
func (a *Adapter) acceptLoop(l *listener) {
	defer a.wg.Done()

	for a.running.Load() {
		conn, err := l.stream.Accept()
		if err != nil {
			if !a.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			a.logger.Warn("accept", "addr", l.Addr(), "error", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		ep, err := endpoint.FromAddr(endpoint.AdapterTCP, conn.RemoteAddr(), l.cfg.Secure)
		if err != nil {
			a.logger.Warn("accept: bad remote address", "remote", conn.RemoteAddr(), "error", err)
			_ = conn.Close()
			continue
		}
		sock := a.newStream(ep, conn)
		if !a.post(inbound{kind: inboundAccept, ep: ep, sock: sock}) {
			_ = sock.Close()
			return
		}
	}
}

// packetLoop reads datagrams from pc. Every datagram carries the socket
// that answers its sender.
func (a *Adapter) packetLoop(pc net.PacketConn, secure bool) {
	defer a.wg.Done()

	buf := make([]byte, packetReadSize)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if !a.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			a.logger.Debug("read datagram", "addr", pc.LocalAddr(), "error", err)
			continue
		}
		if n == 0 {
			continue
		}

		ep, err := endpoint.FromAddr(endpoint.AdapterUDP, addr, secure)
		if err != nil {
			continue
		}
		ev := inbound{
			kind: inboundData,
			ep:   ep,
			sock: &datagramSocket{pc: pc, addr: addr},
			data: append([]byte(nil), buf[:n]...),
		}
		if !a.post(ev) {
			return
		}
	}
}

// newStream wraps conn and tracks it until it is closed or its reader
// exits.
func (a *Adapter) newStream(ep endpoint.Endpoint, conn net.Conn) *streamSocket {
	s := &streamSocket{conn: conn, ep: ep, writeTimeout: a.cfg.WriteTimeout}
	s.start = func() {
		a.wg.Add(1)
		go a.streamLoop(s)
	}
	s.release = func() { a.untrack(s) }

	a.mu.Lock()
	a.streams[s] = struct{}{}
	a.mu.Unlock()
	return s
}

func (a *Adapter) untrack(s *streamSocket) {
	a.mu.Lock()
	delete(a.streams, s)
	a.mu.Unlock()
}

// streamLoop reads from a TCP connection until it fails. A read error of
// any kind, including EOF, ends the session bound to the socket.
func (a *Adapter) streamLoop(s *streamSocket) {
	defer a.wg.Done()
	defer a.untrack(s)

	buf := make([]byte, streamReadSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			ev := inbound{kind: inboundData, ep: s.ep, sock: s, data: append([]byte(nil), buf[:n]...)}
			if !a.post(ev) {
				return
			}
		}
		if err != nil {
			a.post(inbound{kind: inboundClosed, ep: s.ep, sock: s})
			return
		}
	}
}
