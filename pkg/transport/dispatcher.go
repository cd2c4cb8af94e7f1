package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/framing"
	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/session"
	"github.com/iotivity/ca-go/pkg/wire"
)

// plainBufferSize fits any decrypted TLS record or DTLS datagram.
const plainBufferSize = 1 << 16

// errSessionEnded stops message processing after a Release or Abort tore
// the session down. It never reaches a caller.
var errSessionEnded = errors.New("session ended by peer signal")

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Handler receives messages and connection state changes.
	Handler Handler

	// Dialer opens sockets for sends to unknown endpoints. Without one,
	// Send only reaches existing sessions.
	Dialer Dialer

	// Engines creates TLS/DTLS engines. Without one, secure endpoints are
	// rejected with ErrSecureDisabled.
	Engines EngineFactory

	// Table is the session table. Nil creates one with MaxPeers.
	Table *session.Table

	// MaxPeers bounds the session count when Table is nil.
	MaxPeers int

	// MaxMessageSize bounds reassembled CoAP-over-TCP messages.
	MaxMessageSize int

	// MaxRecordSize bounds TLS records.
	MaxRecordSize int

	// PendingLimit caps each session's pending queue, 0 for unbounded.
	PendingLimit int

	// SendCSM sends a Capabilities and Settings Message when a TCP session
	// starts, ahead of any application data.
	SendCSM bool

	// KeepAlive enables Ping/Pong liveness checks on TCP sessions.
	KeepAlive *KeepAliveConfig

	// IdleTimeout closes DTLS sessions that saw no traffic for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	// Wakeup is called when an engine makes progress on its own. It must
	// not block. Nil resumes the session on a new goroutine.
	Wakeup func(ep endpoint.Endpoint)

	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events. Nil disables them.
	ProtocolLogger log.Logger
}

// Dispatcher routes application payloads to sessions and reassembled
// messages to the Handler.
//
// Every entry point takes the session lock for the whole operation and
// re-checks that the session is still in the table after acquiring it.
// Handler callbacks are collected while the lock is held and invoked after
// it is released.
type Dispatcher struct {
	cfg      DispatcherConfig
	handler  Handler
	table    *session.Table
	driver   *session.Driver
	logger   *slog.Logger
	protocol log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	bufs   sync.Pool

	kaMu       sync.Mutex
	keepalives map[*session.Session]*KeepAlive
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	handler := cfg.Handler
	if handler == nil {
		handler = HandlerFuncs{}
	}
	table := cfg.Table
	if table == nil {
		table = session.NewTable(cfg.MaxPeers)
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = framing.DefaultMaxMessageSize
	}
	if cfg.MaxRecordSize <= 0 {
		cfg.MaxRecordSize = framing.DefaultMaxRecordSize
	}
	protocol := log.OrNoop(cfg.ProtocolLogger)

	d := &Dispatcher{
		cfg:        cfg,
		handler:    handler,
		table:      table,
		logger:     logger,
		protocol:   protocol,
		keepalives: make(map[*session.Session]*KeepAlive),
		driver: session.NewDriver(session.DriverConfig{
			Table:          table,
			Logger:         logger,
			ProtocolLogger: protocol,
		}),
		bufs: sync.Pool{New: func() any {
			b := make([]byte, plainBufferSize)
			return &b
		}},
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	if cfg.IdleTimeout > 0 {
		go d.reapIdle()
	}
	return d
}

// Table returns the session table.
func (d *Dispatcher) Table() *session.Table {
	return d.table
}

// Close tears down every session and stops keep-alives.
func (d *Dispatcher) Close() {
	d.DisconnectAll(nil)
	d.cancel()
}

// outbox collects Handler calls while a session lock is held.
type outbox []func(Handler)

func (o *outbox) message(ep endpoint.Endpoint, msg []byte) {
	payload := append([]byte(nil), msg...)
	*o = append(*o, func(h Handler) { h.OnMessage(ep, payload) })
}

func (o *outbox) state(ep endpoint.Endpoint, connected, client bool) {
	*o = append(*o, func(h Handler) { h.OnConnectionStateChanged(ep, connected, client) })
}

func (d *Dispatcher) flush(o outbox) {
	for _, call := range o {
		call(d.handler)
	}
}

// Send delivers payload to ep, opening a client session if needed.
func (d *Dispatcher) Send(ep endpoint.Endpoint, payload []byte) error {
	return d.SendContext(context.Background(), ep, payload)
}

// SendContext delivers payload to ep. ctx bounds dialing a new session.
//
// On an established session the payload is written immediately. Otherwise
// it is queued and the handshake is stepped; nil then means the payload was
// accepted for delivery, not that it is on the wire. For TCP, payload must
// be exactly one framed CoAP-over-TCP message.
func (d *Dispatcher) SendContext(ctx context.Context, ep endpoint.Endpoint, payload []byte) error {
	if err := checkPayload(ep, payload); err != nil {
		return err
	}
	if isDatagram(ep) {
		return translate(d.sendDatagram(ctx, ep, payload))
	}

	for range 2 {
		s, err := d.open(ctx, ep)
		if err != nil {
			return translate(err)
		}

		var o outbox
		s.Lock()
		if s.Closed() {
			s.Unlock()
			continue
		}
		err = d.sendLocked(s, payload, &o)
		s.Unlock()
		d.flush(o)
		return translate(err)
	}
	return ErrSessionClosed
}

// checkPayload rejects invalid endpoints and, for TCP, anything other than
// exactly one framed message.
func checkPayload(ep endpoint.Endpoint, payload []byte) error {
	if !ep.IsValid() {
		return ErrInvalidEndpoint
	}
	if ep.Adapter == endpoint.AdapterTCP {
		if total, err := wire.TotalLength(payload); err != nil || total != len(payload) {
			return ErrInvalidMessage
		}
	} else if len(payload) == 0 {
		return ErrInvalidMessage
	}
	return nil
}

// isDatagram reports whether ep is plaintext UDP. Those peers have no
// session: datagrams go straight to the handler and sends straight to a
// socket, so unauthenticated sources cannot fill the table.
func isDatagram(ep endpoint.Endpoint) bool {
	return ep.Adapter == endpoint.AdapterUDP && !ep.IsSecure()
}

func (d *Dispatcher) sendDatagram(ctx context.Context, ep endpoint.Endpoint, payload []byte) error {
	if d.cfg.Dialer == nil {
		return ErrNoRoute
	}
	sock, err := d.cfg.Dialer.Dial(ctx, ep)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnectFailed, ep, err)
	}
	defer sock.Close()

	if err := sock.Send(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	d.logDatagram(ep, log.DirectionOut, payload)
	return nil
}

func (d *Dispatcher) sendLocked(s *session.Session, payload []byte, o *outbox) error {
	s.Touch()
	if s.State() == session.StateEstablished {
		if err := s.Write(payload); err != nil {
			d.closeSession(s, "write: "+err.Error(), nil, o)
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		if !s.Secure() {
			d.logFrame(s, log.DirectionOut, payload)
		}
		d.logMessage(s, log.DirectionOut, payload)
		return nil
	}

	if err := s.Pending().Enqueue(payload); err != nil {
		return err
	}
	d.logMessage(s, log.DirectionOut, payload)
	return d.advance(s, o)
}

// open returns the session for ep, dialing a client session if none exists.
func (d *Dispatcher) open(ctx context.Context, ep endpoint.Endpoint) (*session.Session, error) {
	if s := d.table.Find(ep); s != nil {
		if ep.IsSecure() && !s.Secure() {
			return nil, fmt.Errorf("%w: %s", ErrSecurityMismatch, ep)
		}
		return s, nil
	}
	if d.cfg.Dialer == nil {
		return nil, ErrNoRoute
	}
	if err := d.secureSupported(ep); err != nil {
		return nil, err
	}
	if limit := d.table.MaxSessions(); limit > 0 && d.table.Count() >= limit {
		return nil, ErrPeerLimit
	}

	sock, err := d.cfg.Dialer.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, ep, err)
	}

	s, err := d.attachAndFlush(ep, sock, session.RoleClient)
	if errors.Is(err, session.ErrDuplicateIdentity) {
		// Another sender won the race.
		if existing := d.table.Find(ep); existing != nil {
			if ep.IsSecure() && !existing.Secure() {
				return nil, fmt.Errorf("%w: %s", ErrSecurityMismatch, ep)
			}
			return existing, nil
		}
	}
	return s, err
}

func (d *Dispatcher) secureSupported(ep endpoint.Endpoint) error {
	if !ep.IsSecure() {
		return nil
	}
	if d.cfg.Engines == nil {
		return ErrSecureDisabled
	}
	if err := d.cfg.Engines.Supports(ep.Adapter); err != nil {
		return fmt.Errorf("%w: %v", ErrSecureDisabled, err)
	}
	return nil
}

func (d *Dispatcher) attachAndFlush(ep endpoint.Endpoint, sock session.Socket, role session.Role) (*session.Session, error) {
	var o outbox
	s, err := d.attach(ep, sock, role, &o)
	d.flush(o)
	return s, err
}

// attach creates a session for sock and inserts it into the table. On
// failure sock is closed.
func (d *Dispatcher) attach(ep endpoint.Endpoint, sock session.Socket, role session.Role, o *outbox) (*session.Session, error) {
	if err := d.secureSupported(ep); err != nil {
		_ = sock.Close()
		return nil, err
	}

	var s *session.Session
	var engine secure.Engine
	if ep.IsSecure() {
		var err error
		engine, err = d.cfg.Engines.NewEngine(ep.Adapter, role == session.RoleClient, secure.EngineOptions{
			Local:  sock.LocalAddr(),
			Remote: sock.RemoteAddr(),
			Sink: func(b []byte) error {
				d.logFrame(s, log.DirectionOut, b)
				return sock.Send(b)
			},
			Logger: d.logger,
		})
		if err != nil {
			_ = sock.Close()
			return nil, fmt.Errorf("%w: %v", ErrSecureDisabled, err)
		}
	}

	s = session.New(session.Options{
		Endpoint:       ep,
		Role:           role,
		Socket:         sock,
		Engine:         engine,
		MaxMessageSize: d.cfg.MaxMessageSize,
		MaxRecordSize:  d.cfg.MaxRecordSize,
		PendingLimit:   d.cfg.PendingLimit,
	})
	if err := d.table.Insert(s); err != nil {
		if engine != nil {
			_ = engine.Close()
		}
		_ = sock.Close()
		return nil, err
	}
	if engine != nil {
		engine.SetWakeup(func() { d.wake(ep) })
	}

	s.Lock()
	d.logConnection(s, "", "OPEN", "")
	d.logger.Debug("session opened", "remote", ep, "role", role, "conn_id", s.ConnID())
	if !s.Secure() {
		d.established(s, o)
		if csm := d.csm(s); csm != nil {
			if err := s.Write(csm); err != nil {
				d.closeSession(s, "csm: "+err.Error(), nil, o)
			} else {
				d.logFrame(s, log.DirectionOut, csm)
				d.logSignal(s, log.DirectionOut, wire.CodeCSM, 0)
			}
		}
	} else if csm := d.csm(s); csm != nil {
		s.Pending().Prepend(csm)
	}
	s.Unlock()

	if st, ok := sock.(starter); ok {
		st.Start()
	}
	return s, nil
}

func (d *Dispatcher) csm(s *session.Session) []byte {
	if !d.cfg.SendCSM || s.Endpoint().Adapter != endpoint.AdapterTCP {
		return nil
	}
	b, err := wire.EncodeCSM(uint32(d.cfg.MaxMessageSize))
	if err != nil {
		return nil
	}
	return b
}

// Accept registers an inbound stream connection. A stale session for the
// same endpoint is torn down first.
func (d *Dispatcher) Accept(ep endpoint.Endpoint, sock session.Socket) error {
	if !ep.IsValid() {
		_ = sock.Close()
		return ErrInvalidEndpoint
	}
	if stale := d.table.Find(ep); stale != nil {
		d.teardown(stale, "replaced by new connection", nil)
	}
	_, err := d.attachAndFlush(ep, sock, session.RoleServer)
	return translate(err)
}

// Receive processes bytes read from sock for ep. Unknown endpoints get a
// server session bound to sock. Zero-length input on TCP is a graceful
// close by the peer.
func (d *Dispatcher) Receive(ep endpoint.Endpoint, sock session.Socket, raw []byte) error {
	if len(raw) == 0 {
		if ep.Adapter == endpoint.AdapterTCP {
			d.peerClosed(ep, sock)
		}
		return nil
	}
	if isDatagram(ep) {
		d.logDatagram(ep, log.DirectionIn, raw)
		d.handler.OnMessage(ep, append([]byte(nil), raw...))
		return nil
	}

	for range 2 {
		s := d.table.Find(ep)
		if s != nil && ep.Adapter == endpoint.AdapterTCP && sock != nil && s.Socket() != sock {
			// Bytes from a connection that no longer owns the identity.
			return ErrSessionClosed
		}
		if s == nil {
			if sock == nil {
				return ErrNoRoute
			}
			var err error
			s, err = d.attachAndFlush(ep, sock, session.RoleServer)
			if errors.Is(err, session.ErrDuplicateIdentity) {
				continue
			}
			if err != nil {
				return translate(err)
			}
		}

		var o outbox
		s.Lock()
		if s.Closed() {
			s.Unlock()
			continue
		}
		err := d.receiveLocked(s, raw, &o)
		s.Unlock()
		d.flush(o)
		return translate(err)
	}
	return ErrSessionClosed
}

func (d *Dispatcher) receiveLocked(s *session.Session, raw []byte, o *outbox) error {
	s.Touch()
	d.logFrame(s, log.DirectionIn, raw)
	if !s.Secure() {
		return d.plaintext(s, raw, o)
	}

	engine := s.Engine()
	var err error
	if records := s.Records(); records != nil {
		err = records.FeedAll(raw, engine.Feed)
	} else {
		err = engine.Feed(raw)
	}
	if err != nil {
		d.closeSession(s, err.Error(), d.abort(s), o)
		return err
	}
	return d.advance(s, o)
}

// advance steps the handshake of a secure session and, once established,
// drains the engine's plaintext.
func (d *Dispatcher) advance(s *session.Session, o *outbox) error {
	if !s.Secure() {
		return nil
	}
	if s.State() != session.StateEstablished {
		state, err := d.driver.Step(s)
		if errors.Is(err, session.ErrHandshakeFailed) || errors.Is(err, session.ErrFlushFailed) {
			d.closeSession(s, err.Error(), nil, o)
			return err
		}
		if err != nil {
			return err
		}
		if state != session.StateEstablished {
			return nil
		}
		d.established(s, o)
	}
	return d.readPlain(s, o)
}

func (d *Dispatcher) readPlain(s *session.Session, o *outbox) error {
	buf := d.bufs.Get().(*[]byte)
	defer d.bufs.Put(buf)

	for !s.Closed() {
		n, err := s.Engine().Read(*buf)
		if n > 0 {
			if perr := d.plaintext(s, (*buf)[:n], o); perr != nil {
				return perr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, secure.ErrWantRead):
			return nil
		case errors.Is(err, secure.ErrPeerClosed):
			d.closeSession(s, "peer closed", nil, o)
			return nil
		default:
			d.closeSession(s, "read: "+err.Error(), nil, o)
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	return nil
}

// plaintext splits decrypted or plaintext bytes into messages.
func (d *Dispatcher) plaintext(s *session.Session, data []byte, o *outbox) error {
	messages := s.Messages()
	if messages == nil {
		return d.handleMessage(s, data, o)
	}

	err := messages.FeedAll(data, func(msg []byte) error {
		return d.handleMessage(s, msg, o)
	})
	switch {
	case err == nil, errors.Is(err, errSessionEnded):
		return nil
	case errors.Is(err, framing.ErrProtocolViolation):
		d.logger.Warn("protocol violation", "remote", s.Endpoint(), "error", err)
		d.logError(s, log.LayerMessage, "reassembly", err)
		d.closeSession(s, err.Error(), d.abort(s), o)
		return err
	default:
		d.closeSession(s, err.Error(), nil, o)
		return err
	}
}

func (d *Dispatcher) handleMessage(s *session.Session, msg []byte, o *outbox) error {
	if s.Endpoint().Adapter == endpoint.AdapterTCP {
		if code, ok := wire.PeekCode(msg); ok && wire.IsSignal(code) {
			return d.handleSignal(s, msg, o)
		}
	}
	d.logMessage(s, log.DirectionIn, msg)
	o.message(s.Endpoint(), msg)
	return nil
}

// established records a session becoming usable.
func (d *Dispatcher) established(s *session.Session, o *outbox) {
	if s.SetConnected(true) {
		return
	}
	o.state(s.Endpoint(), true, s.IsClient())
	d.logConnection(s, "OPEN", "CONNECTED", "")

	attrs := []any{"remote", s.Endpoint(), "role", s.Role(), "secure", s.Secure()}
	if id, ok := s.PeerID(); ok {
		attrs = append(attrs, "peer", id)
	}
	d.logger.Info("session connected", attrs...)
	d.startKeepAlive(s)
}

// Resume drives a secure session after its engine made progress on its own.
func (d *Dispatcher) Resume(ep endpoint.Endpoint) error {
	s := d.table.Find(ep)
	if s == nil || !s.Secure() {
		return nil
	}

	var o outbox
	s.Lock()
	if s.Closed() {
		s.Unlock()
		return nil
	}
	err := d.advance(s, &o)
	s.Unlock()
	d.flush(o)
	return translate(err)
}

func (d *Dispatcher) wake(ep endpoint.Endpoint) {
	if d.cfg.Wakeup != nil {
		d.cfg.Wakeup(ep)
		return
	}
	go func() {
		if err := d.Resume(ep); err != nil {
			d.logger.Debug("resume", "remote", ep, "error", err)
		}
	}()
}

// PeerClosed tears down the session for ep after the peer closed the
// connection.
func (d *Dispatcher) PeerClosed(ep endpoint.Endpoint) {
	d.peerClosed(ep, nil)
}

func (d *Dispatcher) peerClosed(ep endpoint.Endpoint, sock session.Socket) {
	s := d.table.Find(ep)
	if s == nil {
		return
	}
	if sock != nil && s.Socket() != sock {
		return
	}
	d.teardown(s, "peer closed", nil)
}

// Disconnect closes the session for ep: a Release signal on TCP or
// close_notify on secure sessions, best effort, then removal. Disconnecting
// an unknown endpoint is a no-op.
func (d *Dispatcher) Disconnect(ep endpoint.Endpoint) error {
	s := d.table.Remove(ep)
	if s == nil {
		return nil
	}
	d.teardown(s, "disconnect", d.release(s))
	return nil
}

// DisconnectAll closes every session passing filter (nil for all) and
// returns how many were closed.
func (d *Dispatcher) DisconnectAll(filter endpoint.Filter) int {
	removed := d.table.RemoveMatching(filter)
	for _, s := range removed {
		d.teardown(s, "disconnect all", d.release(s))
	}
	return len(removed)
}

// reapIdle runs expireIdle until the dispatcher is closed.
func (d *Dispatcher) reapIdle() {
	interval := max(d.cfg.IdleTimeout/4, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-ticker.C:
			if n := d.expireIdle(now); n > 0 {
				d.logger.Debug("idle sessions closed", "count", n)
			}
		}
	}
}

// expireIdle closes UDP sessions without traffic since now minus
// IdleTimeout and returns how many it closed. TCP sessions end with their
// connection and are left alone.
func (d *Dispatcher) expireIdle(now time.Time) int {
	cutoff := now.Add(-d.cfg.IdleTimeout)
	var n int
	for _, s := range d.table.Snapshot() {
		if s.Endpoint().Adapter != endpoint.AdapterUDP || s.LastActive().After(cutoff) {
			continue
		}
		if d.table.Delete(s) {
			d.teardown(s, "idle timeout", nil)
			n++
		}
	}
	return n
}

func (d *Dispatcher) release(s *session.Session) []byte {
	if s.Endpoint().Adapter != endpoint.AdapterTCP {
		return nil
	}
	b, _ := wire.EncodeRelease()
	return b
}

func (d *Dispatcher) abort(s *session.Session) []byte {
	if s.Endpoint().Adapter != endpoint.AdapterTCP {
		return nil
	}
	b, _ := wire.EncodeAbort()
	return b
}

// teardown locks s and closes it.
func (d *Dispatcher) teardown(s *session.Session, reason string, farewell []byte) {
	var o outbox
	s.Lock()
	d.closeSession(s, reason, farewell, &o)
	s.Unlock()
	d.flush(o)
}

// closeSession removes s from the table and releases it. farewell, if any,
// is written to an established peer first. Caller holds the session lock.
func (d *Dispatcher) closeSession(s *session.Session, reason string, farewell []byte, o *outbox) {
	d.table.Delete(s)
	if !s.Retire() {
		return
	}
	d.stopKeepAlive(s)

	state := s.State()
	engine := s.Engine()
	if farewell != nil && state == session.StateEstablished {
		if engine != nil {
			_, _ = engine.Write(farewell)
		} else {
			_ = s.Socket().Send(farewell)
		}
	}
	s.Pending().Discard()
	if engine != nil && state != session.StateFailed {
		_ = engine.Close()
	}
	_ = s.Socket().Close()

	wasConnected := s.SetConnected(false)
	if wasConnected || state == session.StateFailed {
		o.state(s.Endpoint(), false, s.IsClient())
	}
	d.logConnection(s, state.String(), "CLOSED", reason)
	d.logger.Debug("session closed", "remote", s.Endpoint(), "reason", reason)
}
