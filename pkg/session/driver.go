package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/secure"
)

// Driver advances session handshakes one step at a time.
type Driver struct {
	table    *Table
	logger   *slog.Logger
	protocol log.Logger
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	// Table is where failed sessions are removed from.
	Table *Table

	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives handshake state events. Nil disables them.
	ProtocolLogger log.Logger
}

// NewDriver creates a Driver.
func NewDriver(cfg DriverConfig) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		table:    cfg.Table,
		logger:   logger,
		protocol: log.OrNoop(cfg.ProtocolLogger),
	}
}

// Step performs one handshake step on s and returns the resulting state.
// The caller holds the session lock.
//
// Want-read, want-write and closed-before-start leave the state unchanged.
// A hello-verify request resets the engine and steps once more. On success
// the pending queue is written through the engine in order; the first write
// error discards the rest and returns ErrFlushFailed with the session still
// established. Any other error fails the session: the engine is closed and
// the session removed from the table, and ErrHandshakeFailed is returned.
//
// Established and failed sessions are returned as is without stepping.
func (d *Driver) Step(s *Session) (State, error) {
	if s.Closed() {
		return s.State(), ErrClosed
	}
	if s.engine == nil {
		return s.State(), ErrNoEngine
	}

	switch state := s.State(); state {
	case StateEstablished:
		return state, nil
	case StateFailed:
		return state, ErrHandshakeFailed
	case StateNotStarted:
		s.SetState(StateInProgress)
		d.logState(s, StateNotStarted, StateInProgress, "")
	}

	err := s.engine.Handshake()
	if errors.Is(err, secure.ErrHelloVerifyRequired) {
		d.logger.Debug("hello verify requested, restarting handshake", "remote", s.endpoint)
		if err = s.engine.Reset(); err == nil {
			err = s.engine.Handshake()
		}
		if errors.Is(err, secure.ErrHelloVerifyRequired) {
			return s.State(), nil
		}
	}

	switch {
	case err == nil:
		return d.establish(s)
	case secure.IsPending(err):
		return s.State(), nil
	default:
		return d.fail(s, err)
	}
}

func (d *Driver) establish(s *Session) (State, error) {
	s.SetState(StateEstablished)
	d.logState(s, StateInProgress, StateEstablished, "")

	if chain := s.engine.PeerCertificates(); len(chain) > 0 {
		id, err := secure.PeerID(chain)
		if err != nil {
			d.logger.Warn("no peer UUID in certificate", "remote", s.endpoint, "subject", chain[0].Subject.String())
		} else {
			s.SetPeerID(id)
			d.logger.Debug("peer UUID bound", "remote", s.endpoint, "peer", id)
		}
	}

	pending := s.pending.Drain()
	for i, payload := range pending {
		if _, err := s.engine.Write(payload); err != nil {
			dropped := len(pending) - i - 1
			d.logger.Warn("pending flush failed", "remote", s.endpoint, "dropped", dropped, "error", err)
			return StateEstablished, fmt.Errorf("%w: %w", ErrFlushFailed, err)
		}
	}
	if len(pending) > 0 {
		d.logger.Debug("pending writes flushed", "remote", s.endpoint, "count", len(pending))
	}
	return StateEstablished, nil
}

func (d *Driver) fail(s *Session, cause error) (State, error) {
	prev := s.SetState(StateFailed)
	d.logState(s, prev, StateFailed, cause.Error())
	d.logger.Info("handshake failed", "remote", s.endpoint, "role", s.role, "error", cause)

	s.pending.Discard()
	_ = s.engine.Close()
	if d.table != nil {
		d.table.Delete(s)
	}
	return StateFailed, fmt.Errorf("%w: %w", ErrHandshakeFailed, cause)
}

func (d *Driver) logState(s *Session, from, to State, reason string) {
	d.protocol.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID.String(),
		Layer:        log.LayerSecure,
		Category:     log.CategoryState,
		LocalRole:    LogRole(s.role),
		Remote:       s.endpoint.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityHandshake,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

// LogRole converts a session role for protocol events.
func LogRole(r Role) log.Role {
	if r == RoleClient {
		return log.RoleClient
	}
	return log.RoleServer
}
