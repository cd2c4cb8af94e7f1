package transport

import (
	"fmt"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/framing"
	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/session"
	"github.com/iotivity/ca-go/pkg/wire"
)

// handleSignal consumes a CoAP-over-TCP signaling message (RFC 8323
// Section 5). Caller holds the session lock.
func (d *Dispatcher) handleSignal(s *session.Session, msg []byte, o *outbox) error {
	m, err := wire.Decode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", framing.ErrProtocolViolation, err)
	}
	seq, _ := wire.TokenSequence(m.Token)
	d.logSignal(s, log.DirectionIn, m.Code, seq)

	switch m.Code {
	case wire.CodePing:
		pong, err := wire.EncodePong(m.Token)
		if err != nil {
			return err
		}
		if err := s.Write(pong); err != nil {
			return fmt.Errorf("%w: pong: %v", ErrConnectionLost, err)
		}
		d.logSignal(s, log.DirectionOut, wire.CodePong, seq)

	case wire.CodePong:
		if ka := d.keepAlive(s); ka != nil {
			ka.Pong(seq)
		}

	case wire.CodeRelease, wire.CodeAbort:
		d.closeSession(s, "peer sent "+wire.SignalName(m.Code), nil, o)
		return errSessionEnded

	case wire.CodeCSM:
		if size, ok := wire.CSMMaxMessageSize(m); ok {
			d.logger.Debug("peer capabilities", "remote", s.Endpoint(), "max_message_size", size)
		}

	default:
		d.logger.Debug("unknown signal ignored", "remote", s.Endpoint(), "code", m.Code)
	}
	return nil
}

func (d *Dispatcher) startKeepAlive(s *session.Session) {
	if d.cfg.KeepAlive == nil || s.Endpoint().Adapter != endpoint.AdapterTCP {
		return
	}
	ka := NewKeepAlive(*d.cfg.KeepAlive,
		func(seq uint32) error { return d.ping(s, seq) },
		func() {
			d.logger.Info("keep-alive timeout", "remote", s.Endpoint())
			d.teardown(s, "keep-alive timeout", nil)
		},
	)

	d.kaMu.Lock()
	d.keepalives[s] = ka
	d.kaMu.Unlock()
	ka.Start(d.ctx)
}

func (d *Dispatcher) stopKeepAlive(s *session.Session) {
	d.kaMu.Lock()
	ka := d.keepalives[s]
	delete(d.keepalives, s)
	d.kaMu.Unlock()
	if ka != nil {
		ka.Stop()
	}
}

func (d *Dispatcher) keepAlive(s *session.Session) *KeepAlive {
	d.kaMu.Lock()
	defer d.kaMu.Unlock()
	return d.keepalives[s]
}

func (d *Dispatcher) ping(s *session.Session, seq uint32) error {
	b, err := wire.EncodePing(seq)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	if s.Closed() {
		return ErrSessionClosed
	}
	if err := s.Write(b); err != nil {
		return err
	}
	d.logSignal(s, log.DirectionOut, wire.CodePing, seq)
	return nil
}
