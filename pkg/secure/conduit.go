package secure

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Engine timing defaults.
const (
	// DefaultSettleTimeout bounds how long a step waits for the engine to
	// consume fed ciphertext before reporting ErrWantRead.
	DefaultSettleTimeout = 200 * time.Millisecond

	// readBufferSize fits the largest TLS record or DTLS datagram.
	readBufferSize = 1 << 15
)

// secureConn is what crypto/tls and pion/dtls connections have in common.
type secureConn interface {
	HandshakeContext(ctx context.Context) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// dialFunc wraps a fresh pipe in a TLS or DTLS connection.
type dialFunc func(p *pipe) (secureConn, error)

// conduit runs a blocking TLS/DTLS connection on a private goroutine and
// exposes it through the non-blocking Engine contract.
//
// The goroutine performs the handshake and then reads plaintext into a
// queue. Handshake and Read wait until that goroutine has consumed all fed
// ciphertext (or the settle timeout elapses) and report what it produced.
type conduit struct {
	mu       sync.Mutex
	progress *signal
	packet   bool
	local    net.Addr
	remote   net.Addr
	sink     func([]byte) error
	dial     dialFunc
	peers    func(secureConn) []*x509.Certificate
	settle   time.Duration
	logger   *slog.Logger

	gen     uint64
	conn    secureConn
	pipe    *pipe
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	hsDone  bool
	hsErr   error
	plain   [][]byte
	readErr error
	wakeup  func()
	closed  bool
}

type conduitConfig struct {
	packet bool
	local  net.Addr
	remote net.Addr
	sink   func([]byte) error
	dial   dialFunc
	peers  func(secureConn) []*x509.Certificate
	settle time.Duration
	logger *slog.Logger
}

func newConduit(cfg conduitConfig) (*conduit, error) {
	c := &conduit{
		progress: newSignal(),
		packet:   cfg.packet,
		local:    cfg.local,
		remote:   cfg.remote,
		sink:     cfg.sink,
		dial:     cfg.dial,
		peers:    cfg.peers,
		settle:   cfg.settle,
		logger:   cfg.logger,
	}
	if c.settle <= 0 {
		c.settle = DefaultSettleTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if err := c.renew(); err != nil {
		return nil, err
	}
	return c, nil
}

// renew replaces pipe and connection. Caller holds mu or owns c exclusively.
func (c *conduit) renew() error {
	p := newPipe(c.packet, c.local, c.remote, c.sink, c.progress)
	conn, err := c.dial(p)
	if err != nil {
		return err
	}
	c.gen++
	c.pipe = p
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.started = false
	c.hsDone = false
	c.hsErr = nil
	c.plain = nil
	c.readErr = nil
	return nil
}

func (c *conduit) run(gen uint64, conn secureConn, ctx context.Context) {
	err := conn.HandshakeContext(ctx)
	if !c.report(gen, func() {
		c.hsDone = true
		c.hsErr = err
	}) || err != nil {
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		ok := c.report(gen, func() {
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				c.plain = append(c.plain, chunk)
			}
			if err != nil {
				c.readErr = err
			}
		})
		if !ok || err != nil {
			return
		}
	}
}

// report applies update if gen is still current and wakes the owner.
func (c *conduit) report(gen uint64, update func()) bool {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return false
	}
	update()
	wake := c.wakeup
	c.mu.Unlock()

	c.progress.broadcast()
	if wake != nil {
		wake()
	}
	return true
}

// start launches the connection goroutine once per generation.
func (c *conduit) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go c.run(c.gen, c.conn, c.ctx)
}

// quiet waits until the connection goroutine is blocked on input with
// nothing left to consume, or ready reports true.
func (c *conduit) quiet(ready func() bool) {
	timer := time.NewTimer(c.settle)
	defer timer.Stop()

	for {
		wait := c.progress.wait()

		c.mu.Lock()
		done := c.closed || ready()
		p := c.pipe
		c.mu.Unlock()
		if done || p.idle() {
			return
		}

		select {
		case <-wait:
		case <-timer.C:
			return
		}
	}
}

func (c *conduit) Handshake() error {
	c.start()
	c.quiet(func() bool { return c.hsDone })

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrEngineClosed
	case !c.hsDone:
		return ErrWantRead
	case c.hsErr == nil:
		return nil
	case errors.Is(c.hsErr, io.EOF) && !c.pipe.hasReceived():
		return ErrClosedBeforeStart
	default:
		return c.hsErr
	}
}

func (c *conduit) Feed(ciphertext []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrEngineClosed
	}
	p := c.pipe
	c.mu.Unlock()
	return p.push(ciphertext)
}

func (c *conduit) Read(b []byte) (int, error) {
	c.quiet(func() bool { return len(c.plain) > 0 || c.readErr != nil })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrEngineClosed
	}
	if len(c.plain) > 0 {
		n := copy(b, c.plain[0])
		if n < len(c.plain[0]) {
			c.plain[0] = c.plain[0][n:]
		} else {
			c.plain = c.plain[1:]
		}
		return n, nil
	}
	if c.readErr != nil {
		if errors.Is(c.readErr, io.EOF) {
			return 0, ErrPeerClosed
		}
		return 0, c.readErr
	}
	return 0, ErrWantRead
}

func (c *conduit) Write(b []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrEngineClosed
	}
	if !c.hsDone || c.hsErr != nil {
		c.mu.Unlock()
		return 0, ErrWantWrite
	}
	conn := c.conn
	c.mu.Unlock()
	return conn.Write(b)
}

func (c *conduit) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrEngineClosed
	}
	oldConn, oldPipe, oldCancel := c.conn, c.pipe, c.cancel
	err := c.renew()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	oldCancel()
	_ = oldPipe.Close()
	_ = oldConn.Close()
	c.progress.broadcast()
	return nil
}

func (c *conduit) PeerCertificates() []*x509.Certificate {
	c.mu.Lock()
	done := c.hsDone && c.hsErr == nil
	conn := c.conn
	c.mu.Unlock()
	if !done || c.peers == nil {
		return nil
	}
	return c.peers(conn)
}

func (c *conduit) SetWakeup(fn func()) {
	c.mu.Lock()
	c.wakeup = fn
	c.mu.Unlock()
}

func (c *conduit) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, p, cancel := c.conn, c.pipe, c.cancel
	established := c.hsDone && c.hsErr == nil
	c.mu.Unlock()

	if !established {
		cancel()
	}
	// close_notify is written through the pipe, so it must still be open.
	err := conn.Close()
	cancel()
	_ = p.Close()
	c.progress.broadcast()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("secure close", "remote", c.remote, "error", err)
	}
	return nil
}
