package transport

import (
	"context"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/session"
)

// Handler receives upstream events. Callbacks run on adapter goroutines,
// never with a session lock held.
type Handler interface {
	// OnMessage is called once per complete application message, in
	// arrival order for each peer. payload is owned by the callee.
	OnMessage(ep endpoint.Endpoint, payload []byte)

	// OnConnectionStateChanged is called when a session becomes usable and
	// when a connected session (or a failed handshake) is torn down.
	OnConnectionStateChanged(ep endpoint.Endpoint, connected bool, isClient bool)
}

// SendErrorHandler is optionally implemented by a Handler to learn about
// asynchronous send failures from the adapter's send workers.
type SendErrorHandler interface {
	OnSendError(ep endpoint.Endpoint, payload []byte, err error)
}

// HandlerFuncs adapts functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Message         func(ep endpoint.Endpoint, payload []byte)
	ConnectionState func(ep endpoint.Endpoint, connected bool, isClient bool)
	SendError       func(ep endpoint.Endpoint, payload []byte, err error)
}

// OnMessage calls h.Message.
func (h HandlerFuncs) OnMessage(ep endpoint.Endpoint, payload []byte) {
	if h.Message != nil {
		h.Message(ep, payload)
	}
}

// OnConnectionStateChanged calls h.ConnectionState.
func (h HandlerFuncs) OnConnectionStateChanged(ep endpoint.Endpoint, connected bool, isClient bool) {
	if h.ConnectionState != nil {
		h.ConnectionState(ep, connected, isClient)
	}
}

// OnSendError calls h.SendError.
func (h HandlerFuncs) OnSendError(ep endpoint.Endpoint, payload []byte, err error) {
	if h.SendError != nil {
		h.SendError(ep, payload, err)
	}
}

// Dialer opens client sockets for endpoints without a session.
// Implemented by Adapter.
type Dialer interface {
	Dial(ctx context.Context, ep endpoint.Endpoint) (session.Socket, error)
}

// EngineFactory creates TLS/DTLS engines.
// Implemented by *secure.Factory.
type EngineFactory interface {
	Supports(adapter endpoint.Adapter) error
	NewEngine(adapter endpoint.Adapter, client bool, opts secure.EngineOptions) (secure.Engine, error)
}

// SessionDispatcher is the entry point set of the dispatcher.
// Implemented by Dispatcher.
type SessionDispatcher interface {
	Send(ep endpoint.Endpoint, payload []byte) error
	SendContext(ctx context.Context, ep endpoint.Endpoint, payload []byte) error
	Accept(ep endpoint.Endpoint, sock session.Socket) error
	Receive(ep endpoint.Endpoint, sock session.Socket, raw []byte) error
	Resume(ep endpoint.Endpoint) error
	PeerClosed(ep endpoint.Endpoint)
	Disconnect(ep endpoint.Endpoint) error
	DisconnectAll(filter endpoint.Filter) int
}

// starter is implemented by sockets whose reader must not run before the
// session owning them is in the table.
type starter interface {
	Start()
}

// Compile-time interface satisfaction checks.
var (
	_ Handler           = HandlerFuncs{}
	_ SendErrorHandler  = HandlerFuncs{}
	_ EngineFactory     = (*secure.Factory)(nil)
	_ SessionDispatcher = (*Dispatcher)(nil)
	_ Dialer            = (*Adapter)(nil)
)
