package transport

import (
	"net"
	"sync"
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/session"
)

// streamSocket is a TCP connection owned by one session.
type streamSocket struct {
	conn         net.Conn
	ep           endpoint.Endpoint
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	startOnce sync.Once
	start     func()
	release   func()
}

func (s *streamSocket) Send(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	_, err := s.conn.Write(b)
	return err
}

func (s *streamSocket) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *streamSocket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *streamSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		if s.release != nil {
			s.release()
		}
	})
	return err
}

// Start begins reading. Reading waits until the owning session is in the
// table so the first bytes find it.
func (s *streamSocket) Start() {
	s.startOnce.Do(func() {
		if s.start != nil {
			s.start()
		}
	})
}

// datagramSocket addresses one peer through a shared packet socket.
type datagramSocket struct {
	pc   net.PacketConn
	addr net.Addr
}

func (s *datagramSocket) Send(b []byte) error {
	_, err := s.pc.WriteTo(b, s.addr)
	return err
}

func (s *datagramSocket) LocalAddr() net.Addr  { return s.pc.LocalAddr() }
func (s *datagramSocket) RemoteAddr() net.Addr { return s.addr }

// Close is a no-op; the packet socket belongs to its listener.
func (s *datagramSocket) Close() error { return nil }

var (
	_ session.Socket = (*streamSocket)(nil)
	_ session.Socket = (*datagramSocket)(nil)
	_ starter        = (*streamSocket)(nil)
)
