package transport

import (
	"time"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/session"
	"github.com/iotivity/ca-go/pkg/wire"
)

func (d *Dispatcher) capturing() bool {
	_, noop := d.protocol.(log.NoopLogger)
	return !noop
}

// event fills the fields shared by every event of s. The peer ID is read
// under the session lock, so callers outside it pass withPeer false.
func event(s *session.Session, dir log.Direction, layer log.Layer, cat log.Category, withPeer bool) log.Event {
	e := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.ConnID().String(),
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		LocalRole:    session.LogRole(s.Role()),
		Remote:       s.Endpoint().String(),
	}
	if withPeer {
		if id, ok := s.PeerID(); ok {
			e.PeerID = id.String()
		}
	}
	return e
}

// logFrame records raw socket bytes. It may run on an engine goroutine.
func (d *Dispatcher) logFrame(s *session.Session, dir log.Direction, b []byte) {
	if s == nil || !d.capturing() {
		return
	}
	e := event(s, dir, log.LayerTransport, log.CategoryMessage, false)
	e.Frame = log.NewFrameEvent(b)
	d.protocol.Log(e)
}

func (d *Dispatcher) logMessage(s *session.Session, dir log.Direction, msg []byte) {
	if !d.capturing() {
		return
	}
	me := &log.MessageEvent{Size: len(msg)}
	if s.Endpoint().Adapter == endpoint.AdapterTCP {
		if m, err := wire.Decode(msg); err == nil {
			me.Code, me.Token = wire.FormatCode(m.Code), append([]byte(nil), m.Token...)
		}
	} else if code, token, ok := wire.PeekDatagram(msg); ok {
		me.Code, me.Token = wire.FormatCode(code), append([]byte(nil), token...)
	}

	e := event(s, dir, log.LayerMessage, log.CategoryMessage, true)
	e.Message = me
	d.protocol.Log(e)
}

// logDatagram records a plaintext UDP message, which has no session.
func (d *Dispatcher) logDatagram(ep endpoint.Endpoint, dir log.Direction, msg []byte) {
	if !d.capturing() {
		return
	}
	me := &log.MessageEvent{Size: len(msg)}
	if code, token, ok := wire.PeekDatagram(msg); ok {
		me.Code, me.Token = wire.FormatCode(code), append([]byte(nil), token...)
	}
	d.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     log.LayerMessage,
		Category:  log.CategoryMessage,
		Remote:    ep.String(),
		Message:   me,
	})
}

func (d *Dispatcher) logSignal(s *session.Session, dir log.Direction, code wire.Code, seq uint32) {
	if !d.capturing() {
		return
	}
	var typ log.SignalType
	switch code {
	case wire.CodeCSM:
		typ = log.SignalCSM
	case wire.CodePing:
		typ = log.SignalPing
	case wire.CodePong:
		typ = log.SignalPong
	case wire.CodeRelease:
		typ = log.SignalRelease
	case wire.CodeAbort:
		typ = log.SignalAbort
	default:
		return
	}
	e := event(s, dir, log.LayerMessage, log.CategoryControl, true)
	e.Signal = &log.SignalEvent{Type: typ, Sequence: seq}
	d.protocol.Log(e)
}

func (d *Dispatcher) logConnection(s *session.Session, from, to, reason string) {
	if !d.capturing() {
		return
	}
	e := event(s, log.DirectionIn, log.LayerTransport, log.CategoryState, true)
	e.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: from,
		NewState: to,
		Reason:   reason,
	}
	d.protocol.Log(e)
}

func (d *Dispatcher) logError(s *session.Session, layer log.Layer, context string, err error) {
	if !d.capturing() {
		return
	}
	e := event(s, log.DirectionIn, layer, log.CategoryError, true)
	e.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
		Fatal:   true,
	}
	d.protocol.Log(e)
}
