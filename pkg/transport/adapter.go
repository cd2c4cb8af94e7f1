package transport

import (
	"context"
	"fmt"
	"hash/maphash"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/session"
)

type inboundKind uint8

const (
	inboundAccept inboundKind = iota
	inboundData
	inboundClosed
	inboundResume
)

// inbound is one unit of work for the receiver loop.
type inbound struct {
	kind inboundKind
	ep   endpoint.Endpoint
	sock session.Socket
	data []byte
}

type outbound struct {
	ep      endpoint.Endpoint
	payload []byte
}

// SessionInfo is a snapshot of one session.
type SessionInfo struct {
	Endpoint  endpoint.Endpoint
	Role      session.Role
	State     session.State
	ConnID    uuid.UUID
	PeerID    string
	Created   time.Time
	Active    time.Time
	Connected bool
}

// Adapter owns the listening sockets, the receiver loop and the send
// workers around a Dispatcher.
//
// All inbound work (accepted connections, received bytes, closes and engine
// wakeups) funnels through one receiver goroutine. Sends are hashed by
// endpoint onto a fixed set of workers so each peer sees its payloads in
// order. An Adapter cannot be restarted after Stop.
type Adapter struct {
	cfg        Config
	handler    Handler
	dispatcher *Dispatcher
	logger     *slog.Logger

	events chan inbound
	shards []chan outbound
	seed   maphash.Seed

	mu        sync.Mutex
	listeners []*listener
	clientPCs map[string]net.PacketConn
	streams   map[*streamSocket]struct{}

	started atomic.Bool
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an Adapter. handler may be nil.
func New(cfg Config, handler Handler) (*Adapter, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}

	a := &Adapter{
		cfg:       cfg,
		handler:   handler,
		logger:    cfg.Logger,
		events:    make(chan inbound, cfg.InboundQueueSize),
		seed:      maphash.MakeSeed(),
		clientPCs: make(map[string]net.PacketConn),
		streams:   make(map[*streamSocket]struct{}),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	dcfg := DispatcherConfig{
		Handler:        handler,
		Dialer:         a,
		MaxPeers:       cfg.MaxPeers,
		MaxMessageSize: cfg.MaxMessageSize,
		PendingLimit:   cfg.PendingLimit,
		SendCSM:        cfg.SendCSM,
		KeepAlive:      cfg.KeepAlive,
		IdleTimeout:    max(cfg.IdleTimeout, 0),
		Wakeup:         a.postResume,
		Logger:         cfg.Logger,
		ProtocolLogger: cfg.ProtocolLogger,
	}
	if cfg.Security != nil {
		factory, err := secure.NewFactory(cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("security: %w", err)
		}
		if cfg.SettleTimeout > 0 {
			factory.SetSettleTimeout(cfg.SettleTimeout)
		}
		dcfg.Engines = factory
	}
	a.dispatcher = NewDispatcher(dcfg)
	return a, nil
}

// Start opens the listeners and starts the receiver loop and send workers.
// ctx cancellation stops the adapter as Stop does.
func (a *Adapter) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	for _, lc := range a.cfg.Listeners {
		l, err := a.listen(lc)
		if err != nil {
			for _, opened := range a.listeners {
				_ = opened.Close()
			}
			a.listeners = nil
			return fmt.Errorf("listen %s %s: %w", lc.Adapter, lc.Address, err)
		}
		a.listeners = append(a.listeners, l)
		a.logger.Info("listening", "adapter", lc.Adapter, "secure", lc.Secure, "addr", l.Addr())
	}
	a.running.Store(true)

	a.wg.Add(1)
	go a.receiveLoop()

	a.shards = make([]chan outbound, a.cfg.SendWorkers)
	for i := range a.shards {
		a.shards[i] = make(chan outbound, a.cfg.SendQueueSize)
		a.wg.Add(1)
		go a.sendLoop(a.shards[i])
	}

	for _, l := range a.listeners {
		a.wg.Add(1)
		if l.stream != nil {
			go a.acceptLoop(l)
		} else {
			go a.packetLoop(l.packet, l.cfg.Secure)
		}
	}

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = a.Stop()
			case <-a.ctx.Done():
			}
		}()
	}
	return nil
}

// Stop closes the listeners and every session and waits for the adapter's
// goroutines to exit.
func (a *Adapter) Stop() error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}
	a.cancel()

	for _, l := range a.listeners {
		_ = l.Close()
	}
	a.dispatcher.Close()

	a.mu.Lock()
	for _, pc := range a.clientPCs {
		_ = pc.Close()
	}
	streams := make([]*streamSocket, 0, len(a.streams))
	for s := range a.streams {
		streams = append(streams, s)
	}
	a.mu.Unlock()
	for _, s := range streams {
		_ = s.Close()
	}

	a.wg.Wait()
	a.logger.Info("adapter stopped")
	return nil
}

// Running reports whether the adapter is started and not stopped.
func (a *Adapter) Running() bool {
	return a.running.Load()
}

// Dispatcher returns the underlying dispatcher.
func (a *Adapter) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Addrs returns the bound listener addresses.
func (a *Adapter) Addrs() []net.Addr {
	out := make([]net.Addr, 0, len(a.listeners))
	for _, l := range a.listeners {
		out = append(out, l.Addr())
	}
	return out
}

// Addr returns the address of the first listener matching adapter and
// secure, or nil.
func (a *Adapter) Addr(adapter endpoint.Adapter, secure bool) net.Addr {
	for _, l := range a.listeners {
		if l.cfg.Adapter == adapter && l.cfg.Secure == secure {
			return l.Addr()
		}
	}
	return nil
}

// Send queues payload for ep. It fails fast on invalid input or a full send
// queue; delivery errors are reported through SendErrorHandler.
func (a *Adapter) Send(ep endpoint.Endpoint, payload []byte) error {
	if !a.running.Load() {
		return ErrNotRunning
	}
	if err := checkPayload(ep, payload); err != nil {
		return err
	}

	job := outbound{ep: ep, payload: append([]byte(nil), payload...)}
	select {
	case a.shards[a.shard(ep)] <- job:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (a *Adapter) shard(ep endpoint.Endpoint) int {
	var h maphash.Hash
	h.SetSeed(a.seed)
	h.WriteByte(byte(ep.Adapter))
	h.WriteString(ep.HostPort())
	return int(h.Sum64() % uint64(len(a.shards)))
}

// Disconnect closes the session for ep.
func (a *Adapter) Disconnect(ep endpoint.Endpoint) error {
	return a.dispatcher.Disconnect(ep)
}

// DisconnectAll closes every session passing filter (nil for all).
func (a *Adapter) DisconnectAll(filter endpoint.Filter) int {
	return a.dispatcher.DisconnectAll(filter)
}

// Sessions returns a snapshot of the session table.
func (a *Adapter) Sessions() []SessionInfo {
	sessions := a.dispatcher.Table().Snapshot()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		info := SessionInfo{
			Endpoint:  s.Endpoint(),
			Role:      s.Role(),
			State:     s.State(),
			ConnID:    s.ConnID(),
			Created:   s.Created(),
			Active:    s.LastActive(),
			Connected: s.Connected(),
		}
		s.Lock()
		if id, ok := s.PeerID(); ok {
			info.PeerID = id.String()
		}
		s.Unlock()
		out = append(out, info)
	}
	return out
}

func (a *Adapter) sendLoop(jobs <-chan outbound) {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case job := <-jobs:
			a.deliver(job)
		}
	}
}

func (a *Adapter) deliver(job outbound) {
	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.DialTimeout*time.Duration(a.cfg.DialAttempts))
	defer cancel()

	ep, err := resolveEndpoint(ctx, job.ep)
	if err == nil {
		err = a.dispatcher.SendContext(ctx, ep, job.payload)
	}
	if err == nil {
		return
	}
	a.logger.Debug("send failed", "remote", job.ep, "error", err)
	if h, ok := a.handler.(SendErrorHandler); ok {
		h.OnSendError(job.ep, job.payload, err)
	}
}

func (a *Adapter) receiveLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case ev := <-a.events:
			a.handle(ev)
		}
	}
}

func (a *Adapter) handle(ev inbound) {
	var err error
	switch ev.kind {
	case inboundAccept:
		err = a.dispatcher.Accept(ev.ep, ev.sock)
	case inboundData:
		err = a.dispatcher.Receive(ev.ep, ev.sock, ev.data)
	case inboundClosed:
		a.dispatcher.peerClosed(ev.ep, ev.sock)
	case inboundResume:
		err = a.dispatcher.Resume(ev.ep)
	}
	if err != nil {
		a.logger.Debug("inbound", "remote", ev.ep, "error", err)
	}
}

// post hands ev to the receiver loop, blocking while its queue is full.
func (a *Adapter) post(ev inbound) bool {
	select {
	case a.events <- ev:
		return true
	case <-a.ctx.Done():
		return false
	}
}

// postResume is the dispatcher's wakeup hook. It must not block: engines
// call it while the receiver loop may itself be waiting on them.
func (a *Adapter) postResume(ep endpoint.Endpoint) {
	ev := inbound{kind: inboundResume, ep: ep}
	select {
	case a.events <- ev:
	default:
		go a.post(ev)
	}
}
